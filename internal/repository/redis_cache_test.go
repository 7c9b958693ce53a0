package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"change-risk/backend/pkg/models"
)

// countingLog counts calls to the wrapped log.
type countingLog struct {
	calls   int
	changes []models.HistoricalChange
	err     error
}

func (c *countingLog) QuerySimilarChanges(context.Context, string, models.ChangeType) ([]models.HistoricalChange, error) {
	c.calls++
	return c.changes, c.err
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any)      {}
func (l *recordingLogger) Warn(msg string, _ ...any) { l.warnings = append(l.warnings, msg) }

func TestCachedHistoricalChangeLog_FallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	defer client.Close()

	next := &countingLog{changes: []models.HistoricalChange{{ID: "CHG1"}}}
	logger := &recordingLogger{}
	cache := NewCachedHistoricalChangeLog(next, client, time.Minute, logger)

	for i := 0; i < 2; i++ {
		changes, err := cache.QuerySimilarChanges(context.Background(), "Billing", models.ChangeTypeStandard)
		require.NoError(t, err)
		assert.Len(t, changes, 1)
	}
	assert.Equal(t, 2, next.calls)
	assert.NotEmpty(t, logger.warnings)
}

func TestCachedHistoricalChangeLog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	addr, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	next := &countingLog{changes: []models.HistoricalChange{
		{ID: "CHG1", BusinessApplicationGroup: "Billing", Type: models.ChangeTypeStandard, Outcome: models.OutcomeIncident,
			IncidentDetails: &models.IncidentDetails{Resolved: true}},
	}}
	cache := NewCachedHistoricalChangeLog(next, client, time.Minute, nil)

	t.Run("Read through", func(t *testing.T) {
		first, err := cache.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeStandard)
		require.NoError(t, err)
		second, err := cache.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeStandard)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("Keys are per group and type", func(t *testing.T) {
		_, err := cache.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeNormal)
		require.NoError(t, err)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx))
		_, err := cache.QuerySimilarChanges(ctx, "Billing", models.ChangeTypeStandard)
		require.NoError(t, err)
		assert.Equal(t, 3, next.calls)
	})

	t.Run("Errors are not cached", func(t *testing.T) {
		failing := &countingLog{err: errors.New("db down")}
		c := NewCachedHistoricalChangeLog(failing, client, time.Minute, nil)
		_, err := c.QuerySimilarChanges(ctx, "Search", models.ChangeTypeNormal)
		assert.Error(t, err)
		_, err = c.QuerySimilarChanges(ctx, "Search", models.ChangeTypeNormal)
		assert.Error(t, err)
		assert.Equal(t, 2, failing.calls)
	})
}
