package main

import (
	"os"

	"github.com/dgnsrekt/tabgrouper/internal/config"
	"github.com/dgnsrekt/tabgrouper/internal/inventory"
	"github.com/dgnsrekt/tabgrouper/internal/ui"
	"github.com/spf13/cobra"
)

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List tabs in standard windows with their groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		b, err := connectBrowser(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		inv := inventory.New(b, nil)
		snap, err := inv.Snapshot(ctx)
		if err != nil {
			return err
		}
		groups, err := inv.ListExistingGroups(ctx)
		if err != nil {
			return err
		}
		ui.PrintTabs(os.Stdout, snap.Tabs, groups, snap.Excluded)
		return nil
	},
}
