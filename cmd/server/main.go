// Command server はライブオークション解析APIサーバーとその運用コマンドです。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cardsignal_backend/internal/app/config"
	"cardsignal_backend/internal/platform/logger"
)

// commandContext はサブコマンド間で共有するフラグと読み込み済み設定です。
type commandContext struct {
	configPath string
	cfg        *config.Config
}

// ensureConfig は設定を1回だけ読み込み、ロガーを初期化します。
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(os.Stdout, cfg.Log); err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}
	root := &cobra.Command{
		Use:           "server",
		Short:         "Live auction card analysis API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// サブコマンドなしはserveと同じ
			return runServe(cmd.Context(), ctx)
		},
	}
	root.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Path to config file (default ./config.yaml)")

	root.AddCommand(
		newServeCommand(ctx),
		newCacheCommand(ctx),
		newHistoryCommand(ctx),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
