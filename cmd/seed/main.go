package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"change-risk/backend/internal/config"
	"change-risk/backend/internal/logging"
	"change-risk/backend/internal/repository"
)

var (
	configPath    string
	referencePath string
)

var rootCmd = &cobra.Command{
	Use:          "seed",
	Short:        "Load reference data from a YAML snapshot into PostgreSQL",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.Flags().StringVarP(&referencePath, "file", "f", "", "reference data file (defaults to reference_data.file)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logging.Options{Level: cfg.Server.LogLevel, Development: true, Service: "change-risk-seed"})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	dsn := cfg.DSN()
	if dsn == "" {
		return errors.New("db.host is not configured")
	}

	file := referencePath
	if file == "" {
		file = cfg.ReferenceData.File
	}
	snap, err := repository.LoadSnapshot(file)
	if err != nil {
		return err
	}

	m, err := repository.NewMigrator(dsn)
	if err != nil {
		return err
	}
	if err := m.Up(ctx); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)

	var cache cacheInvalidator
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = repository.NewCachedHistoricalChangeLog(store, client, cfg.Redis.TTL, logger)
	}

	counts, err := seed(ctx, snap, store, cache, logger)
	if err != nil {
		return err
	}

	logger.Info("Seeding completed",
		"file", file,
		"historical_changes", counts.history,
		"scheduled_changes", counts.scheduled,
		"maintenance_windows", counts.windows,
	)
	return nil
}
