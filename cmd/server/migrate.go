package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidtube/backend/internal/app"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/pkg/logger"
)

var migrateTimeout = 2 * time.Minute

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, false)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations that have not been applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, true)
		},
	})
	return cmd
}

func runMigrate(cmd *cobra.Command, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
	defer cancel()

	names, err := app.Migrate(ctx, cfg, log, dryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case len(names) == 0 && dryRun:
		fmt.Fprintln(out, "schema is up to date")
	case len(names) == 0:
		fmt.Fprintln(out, "no migrations to apply")
	default:
		verb := "applied"
		if dryRun {
			verb = "pending"
		}
		for _, n := range names {
			fmt.Fprintf(out, "%s\t%s\n", verb, n)
		}
	}
	return nil
}
