package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"change-risk/backend/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down <version>|version]",
	Short: "Apply or roll back database migrations",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		dsn := cfg.DSN()
		if dsn == "" {
			return errors.New("db.host is not configured")
		}
		m, err := repository.NewMigrator(dsn)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		switch args[0] {
		case "up":
			if err := m.Up(ctx); err != nil {
				return err
			}
		case "down":
			if len(args) != 2 {
				return errors.New("down requires a target version")
			}
			target, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid target version %q: %w", args[1], err)
			}
			if err := m.Down(ctx, target); err != nil {
				return err
			}
		case "version":
		default:
			return fmt.Errorf("unknown migrate action %q", args[0])
		}

		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		logger.Info("Database schema", "version", v)
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}
