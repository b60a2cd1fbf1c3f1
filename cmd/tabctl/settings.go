package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dgnsrekt/tabgrouper/internal/controller"
	"github.com/dgnsrekt/tabgrouper/internal/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage provider credentials",
}

var showSettingsCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings with keys masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		c, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		c = c.Masked()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Provider:         %s\n", orUnset(c.AIProvider))
		fmt.Fprintf(out, "DeepSeek API key: %s\n", orUnset(c.DeepSeekAPIKey))
		fmt.Fprintf(out, "OpenRouter key:   %s\n", orUnset(c.OpenRouterAPIKey))
		fmt.Fprintf(out, "OpenRouter model: %s\n", orUnset(c.OpenRouterModel))
		fmt.Fprintf(out, "Settings file:    %s\n", store.Path())
		return nil
	},
}

var setProviderCmd = &cobra.Command{
	Use:   "set-provider <deepseek|openrouter>",
	Short: "Select the active provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openStore()
		if err != nil {
			return err
		}
		providers, err := controller.LoadProviders(cfg.ProvidersFile)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(args[0])
		if !slices.Contains(providers.Names(), name) {
			return fmt.Errorf("unknown provider %q (want one of %s)", name, strings.Join(providers.Names(), ", "))
		}
		if _, err := store.Apply(cmd.Context(), settings.Update{Provider: &name}); err != nil {
			return fmt.Errorf("failed to save provider: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Provider set to %s.\n", name)
		return nil
	},
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <deepseek|openrouter> <api-key>",
	Short: "Set a provider API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		key := args[1]
		var u settings.Update
		switch args[0] {
		case settings.ProviderDeepSeek:
			u.DeepSeekAPIKey = &key
		case settings.ProviderOpenRouter:
			u.OpenRouterAPIKey = &key
		default:
			return fmt.Errorf("unknown provider %q", args[0])
		}
		if _, err := store.Apply(cmd.Context(), u); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key saved successfully.")
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model-name>",
	Short: "Set the OpenRouter model (e.g. openai/gpt-4o-mini)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		model := args[0]
		if _, err := store.Apply(cmd.Context(), settings.Update{OpenRouterModel: &model}); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OpenRouter model set to %s.\n", model)
		return nil
	},
}

var clearSettingsCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored provider and API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Save(cmd.Context(), settings.Credentials{}); err != nil {
			return fmt.Errorf("failed to clear settings: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared.")
		return nil
	},
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func init() {
	settingsCmd.AddCommand(showSettingsCmd)
	settingsCmd.AddCommand(setProviderCmd)
	settingsCmd.AddCommand(setKeyCmd)
	settingsCmd.AddCommand(setModelCmd)
	settingsCmd.AddCommand(clearSettingsCmd)
}
