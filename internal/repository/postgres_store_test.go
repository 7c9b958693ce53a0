package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"change-risk/backend/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("change-risk"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	migrator, err := NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	require.NoError(t, store.Ping(ctx))

	day := func(d, h int) time.Time { return time.Date(2025, time.July, d, h, 0, 0, 0, time.UTC) }

	t.Run("Historical changes", func(t *testing.T) {
		require.NoError(t, store.UpsertHistoricalChange(ctx, models.HistoricalChange{
			ID: "CHG1", BusinessApplicationGroup: "Billing", Type: models.ChangeTypeStandard, Outcome: models.OutcomeSuccess,
		}))
		require.NoError(t, store.UpsertHistoricalChange(ctx, models.HistoricalChange{
			ID: "CHG2", BusinessApplicationGroup: "Billing", Type: models.ChangeTypeStandard, Outcome: models.OutcomeIncident,
			IncidentDetails: &models.IncidentDetails{Resolved: false},
		}))
		require.NoError(t, store.UpsertHistoricalChange(ctx, models.HistoricalChange{
			ID: "CHG3", BusinessApplicationGroup: "Billing", Type: models.ChangeTypeNormal, Outcome: models.OutcomeSuccess,
		}))

		changes, err := store.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeStandard)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Nil(t, changes[0].IncidentDetails)
		require.NotNil(t, changes[1].IncidentDetails)
		assert.False(t, changes[1].IncidentDetails.Resolved)
	})

	t.Run("Scheduled changes", func(t *testing.T) {
		require.NoError(t, store.UpsertScheduledChange(ctx, models.ScheduledChange{
			ID: "CHG10", BusinessApplicationGroup: "Network", Start: day(15, 23), End: day(16, 1),
		}))
		require.NoError(t, store.UpsertScheduledChange(ctx, models.ScheduledChange{
			ID: "CHG11", BusinessApplicationGroup: "Payments", Start: day(16, 3), End: day(16, 5),
		}))

		changes, err := store.QueryOverlappingChanges(ctx, day(15, 22), day(16, 3))
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "CHG10", changes[0].ID)
		assert.True(t, changes[0].Start.Equal(day(15, 23)))
	})

	t.Run("Maintenance windows", func(t *testing.T) {
		require.NoError(t, store.UpsertMaintenanceWindow(ctx, models.MaintenanceWindow{
			ID: "MW1", Name: "Weekend", Weekdays: []time.Weekday{time.Saturday, time.Sunday}, StartHour: 0, EndHour: 6,
		}))

		windows, err := store.QueryMaintenanceWindows(ctx)
		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, windows[0].Weekdays)
		assert.Equal(t, 6, windows[0].EndHour)
	})

	t.Run("Assessment archive", func(t *testing.T) {
		_, err := store.GetAssessment(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		older := archivedRecord("11111111-1111-1111-1111-111111111111", day(15, 10))
		newer := archivedRecord("22222222-2222-2222-2222-222222222222", day(15, 12))
		require.NoError(t, store.SaveAssessment(ctx, older))
		require.NoError(t, store.SaveAssessment(ctx, newer))

		got, err := store.GetAssessment(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, older.State, got.State)
		assert.Equal(t, older.Request.ID, got.Request.ID)

		list, err := store.ListAssessments(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
	})

	t.Run("Migrations roll back", func(t *testing.T) {
		require.NoError(t, migrator.Down(ctx, 0))
		version, err := migrator.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), version)
	})
}
