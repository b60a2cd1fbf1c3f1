package main

import (
	"fmt"
	"os"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/controller"
	"github.com/dgnsrekt/tabgrouper/internal/ui"
	"github.com/spf13/cobra"
)

var dryRun bool

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Classify ungrouped tabs and group them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, store, err := openStore()
		if err != nil {
			return err
		}
		providers, err := controller.LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return err
		}
		cdp, err := connectBrowser(ctx, cfg)
		if err != nil {
			return err
		}
		defer cdp.Close()

		var b browser.Browser = cdp
		var dry *browser.DryRun
		if dryRun {
			dry = browser.NewDryRun(cdp)
			b = dry
		}
		svc := controller.NewService(b, store, providers, controller.Options{})

		sp := ui.NewSpinner("Grouping tabs...")
		sp.Start()
		report, err := svc.GroupTabs(ctx)
		if err != nil {
			sp.Fail("Grouping failed")
			return err
		}
		if len(report.Failed) > 0 {
			sp.Fail(fmt.Sprintf("%d groups failed", len(report.Failed)))
		} else {
			sp.Success("Done")
		}

		ui.PrintReport(os.Stdout, report)
		if dry != nil {
			for _, p := range dry.Planned() {
				fmt.Fprintln(os.Stdout, "  plan: "+p)
			}
		}
		return nil
	},
}

func init() {
	groupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and show the plan without changing any tab groups")
}
