package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/tabgrouper/internal/browser"
	"github.com/dgnsrekt/tabgrouper/internal/config"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tabctl",
	Short: "Group browser tabs with an LLM from the command line",
	Long: `tabctl drives the tab grouper directly against a browser started with
--remote-debugging-port and the tab grouper extension loaded.

Examples:
  tabctl tabs
  tabctl group --dry-run
  tabctl settings set-key deepseek sk-...
  tabctl settings set-provider openrouter
  tabctl settings clear`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline steps to stderr")

	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(tabsCmd)
	rootCmd.AddCommand(settingsCmd)
}

// Execute is the entry point called from main. Interrupts cancel the
// running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func openStore() (*config.Config, *settings.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store, err := settings.NewStore(cfg.SettingsPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func connectBrowser(ctx context.Context, cfg *config.Config) (*browser.CDPBrowser, error) {
	b := browser.NewCDPBrowser(cfg.CDPURL(), cfg.ExtensionID, time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	return b, nil
}
