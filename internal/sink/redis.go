// Package sink mirrors every regenerated quote snapshot into external systems
// so other processes can read or subscribe to it.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketdash/internal/config"
	"marketdash/internal/pubsub"
	"marketdash/pkg/models"
)

const (
	DefaultRedisKey     = "quotes:latest"
	DefaultRedisChannel = "quotes"
)

// RedisClient is the part of *redis.Client the sink uses.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// Redis stores the latest snapshot under one key and publishes it on a
// channel in the same pipeline.
type Redis struct {
	client  RedisClient
	key     string
	channel string
	logger  *zap.Logger
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedis(client RedisClient, key, channel string, logger *zap.Logger) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, key: key, channel: channel, logger: logger}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) QuotesRefreshed(ctx context.Context, quotes []models.Quote, at time.Time) error {
	payload, err := json.Marshal(pubsub.Snapshot{Quotes: quotes, UpdatedAt: at})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key, payload, 0)
	pipe.Publish(ctx, r.channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	r.logger.Debug("Snapshot mirrored to Redis",
		zap.String("key", r.key),
		zap.Int("quotes", len(quotes)))
	return nil
}

// Latest reads back the stored snapshot. ok is false when nothing has been
// stored yet.
func (r *Redis) Latest(ctx context.Context) (snap pubsub.Snapshot, ok bool, err error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return pubsub.Snapshot{}, false, nil
	}
	if err != nil {
		return pubsub.Snapshot{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return pubsub.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
