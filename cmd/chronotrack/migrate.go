// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/database"
)

type migrateFunc func(db *sql.DB, dialect string) error

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{Name: "up", Usage: "Apply all pending migrations", Action: migrateAction(database.RunMigrations)},
			{Name: "down", Usage: "Roll back the last migration", Action: migrateAction(database.MigrateDown)},
			{Name: "reset", Usage: "Roll back all migrations", Action: migrateAction(database.MigrateReset)},
			{Name: "status", Usage: "Show applied migrations", Action: migrateAction(database.MigrateStatus)},
		},
	}
}

func migrateAction(run migrateFunc) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		dialect := database.Dialect(cfg.Database.DSN)

		db, err := database.Connect(cfg.Database.DSN, 1)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("failed to close database", "error", closeErr)
			}
		}()

		if err := run(db.DB, dialect); err != nil {
			return fmt.Errorf("migrate %s: %w", cmd.Name, err)
		}
		slog.Info("migrate", "command", cmd.Name, "dialect", dialect)
		return nil
	}
}
