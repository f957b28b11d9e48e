package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meililab/backend/internal/app"
	"github.com/meililab/backend/internal/config"
	"github.com/meililab/backend/internal/database"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tooling for orders, referrals and commissions",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(ordersCmd())
	rootCmd.AddCommand(referralCmd())
	rootCmd.AddCommand(commissionsCmd())
	return rootCmd
}

// connect opens the database named by DATABASE_URL and wires the services.
// Logs go to stderr so command output stays pipeable.
func connect(ctx context.Context) (*app.App, func(), error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := config.Load()
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, pool, nil, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return a, pool.Close, nil
}
