package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cardsignal_backend/internal/app/di"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print the recorded decisions of a session (newest first)",
		Long:  "Reads decisions from the configured history backend. The memory backend only lives inside a running server, so use redis or sql.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.History.Backend == "memory" {
				return fmt.Errorf("history backend %q is not shared with the server; configure redis or sql", cfg.History.Backend)
			}
			stores, err := di.OpenStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			recorder, err := di.NewRecorder(cfg.History, stores.Redis, stores.DB)
			if err != nil {
				return err
			}
			results, err := recorder.History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}
