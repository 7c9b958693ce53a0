package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"change-risk/backend/pkg/models"
)

// Logger is the logging surface used by repository decorators.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// CachedHistoricalChangeLog is a read-through Redis cache in front of a
// HistoricalChangeLog. Cache failures are logged and fall through to the
// underlying log; they never fail a query.
type CachedHistoricalChangeLog struct {
	next    HistoricalChangeLog
	client  *redis.Client
	logger  Logger
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

var _ HistoricalChangeLog = (*CachedHistoricalChangeLog)(nil)

// NewCachedHistoricalChangeLog wraps next with a cache stored in client.
func NewCachedHistoricalChangeLog(next HistoricalChangeLog, client *redis.Client, ttl time.Duration, logger Logger) *CachedHistoricalChangeLog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedHistoricalChangeLog{
		next:    next,
		client:  client,
		logger:  logger,
		prefix:  "changerisk:history:",
		ttl:     ttl,
		timeout: 250 * time.Millisecond,
	}
}

// QuerySimilarChanges serves from cache when possible.
func (c *CachedHistoricalChangeLog) QuerySimilarChanges(ctx context.Context, group string, changeType models.ChangeType) ([]models.HistoricalChange, error) {
	key := c.prefix + string(changeType) + ":" + group

	if cached, ok := c.lookup(ctx, key); ok {
		return cached, nil
	}

	changes, err := c.next.QuerySimilarChanges(ctx, group, changeType)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, changes)
	return changes, nil
}

// Invalidate drops every cached query.
func (c *CachedHistoricalChangeLog) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedHistoricalChangeLog) lookup(ctx context.Context, key string) ([]models.HistoricalChange, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logRedisError("get", err)
		}
		return nil, false
	}
	var changes []models.HistoricalChange
	if err := json.Unmarshal(data, &changes); err != nil {
		c.logRedisError("decode", err)
		return nil, false
	}
	if c.logger != nil {
		c.logger.Debug("historical cache hit", "key", key)
	}
	return changes, true
}

func (c *CachedHistoricalChangeLog) store(ctx context.Context, key string, changes []models.HistoricalChange) {
	data, err := json.Marshal(changes)
	if err != nil {
		c.logRedisError("encode", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logRedisError("set", err)
	}
}

func (c *CachedHistoricalChangeLog) logRedisError(op string, err error) {
	if c.logger != nil {
		c.logger.Warn("historical cache unavailable", "op", op, "error", err)
	}
}
