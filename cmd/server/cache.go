package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardsignal_backend/internal/app/di"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the comparable-price cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired comparable-price entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stores, err := di.OpenStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			cache := di.NewComparableCache(cfg.Cache, stores.Redis, stores.DB)
			n, err := di.RunPurge(cmd.Context(), cache, nil)
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired entries\n", n)
			return nil
		},
	})
	return cmd
}
