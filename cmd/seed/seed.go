package main

import (
	"context"
	"fmt"

	"change-risk/backend/internal/logging"
	"change-risk/backend/internal/repository"
	"change-risk/backend/pkg/models"
)

// referenceWriter is the write side of the reference data store.
type referenceWriter interface {
	UpsertHistoricalChange(ctx context.Context, c models.HistoricalChange) error
	UpsertScheduledChange(ctx context.Context, c models.ScheduledChange) error
	UpsertMaintenanceWindow(ctx context.Context, w models.MaintenanceWindow) error
}

// cacheInvalidator drops cached reference queries.
type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type seedCounts struct {
	history   int
	scheduled int
	windows   int
}

// seed upserts every record of snap into store. When cache is set it is
// invalidated afterwards so running servers stop serving the old history.
func seed(ctx context.Context, snap *repository.Snapshot, store referenceWriter, cache cacheInvalidator, logger *logging.Logger) (seedCounts, error) {
	var counts seedCounts

	for _, c := range snap.HistoricalChanges() {
		if err := store.UpsertHistoricalChange(ctx, c); err != nil {
			return counts, fmt.Errorf("historical change %s: %w", c.ID, err)
		}
		counts.history++
	}

	for _, c := range snap.ScheduledChanges() {
		if err := store.UpsertScheduledChange(ctx, c); err != nil {
			return counts, fmt.Errorf("scheduled change %s: %w", c.ID, err)
		}
		counts.scheduled++
	}

	windows, err := snap.QueryMaintenanceWindows(ctx)
	if err != nil {
		return counts, err
	}
	for _, w := range windows {
		if err := store.UpsertMaintenanceWindow(ctx, w); err != nil {
			return counts, fmt.Errorf("maintenance window %s: %w", w.ID, err)
		}
		counts.windows++
	}

	if cache != nil {
		if err := cache.Invalidate(ctx); err != nil {
			return counts, fmt.Errorf("invalidate historical cache: %w", err)
		}
		logger.Info("Historical change cache invalidated")
	}
	return counts, nil
}
