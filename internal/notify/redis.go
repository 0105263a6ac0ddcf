package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohamedkhairy/crypto-trader/pkg/logger"
)

// streamAppender is the slice of the Redis client the notifier needs.
// *redis.Client satisfies it.
type streamAppender interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisConfig holds configuration for the Redis stream notifier.
type RedisConfig struct {
	StreamName     string
	MaxLen         int64 // approximate stream cap, 0 = unbounded
	PublishTimeout time.Duration
}

// DefaultRedisConfig returns default configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		StreamName:     "trader.events",
		MaxLen:         10000,
		PublishTimeout: 2 * time.Second,
	}
}

// RedisNotifier publishes events to a Redis stream. Delivery is best-effort:
// errors are counted and logged, never retried, so a Redis outage cannot
// stall a trading cycle.
type RedisNotifier struct {
	config RedisConfig
	client streamAppender
}

// NewRedisNotifier creates a notifier backed by the given Redis client.
func NewRedisNotifier(client *redis.Client, config RedisConfig) *RedisNotifier {
	return &RedisNotifier{config: config, client: client}
}

// Publish appends the event to the stream within the configured timeout.
func (n *RedisNotifier) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.PublishTimeout)
	defer cancel()

	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.config.StreamName,
		MaxLen: n.config.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event": string(payload),
		},
	}).Err()
	if err != nil {
		logger.NotifyFailuresTotal.Inc()
		logger.Warn("Failed to publish notification",
			logger.ErrorField(err),
			logger.String("stream", n.config.StreamName),
			logger.String("type", event.Type),
		)
		return fmt.Errorf("publish to %s: %w", n.config.StreamName, err)
	}

	logger.Debug("Published notification",
		logger.String("stream", n.config.StreamName),
		logger.String("type", event.Type),
		logger.String("market", event.Market),
	)
	return nil
}

// Close is a no-op; the underlying Redis client is owned by the caller.
func (n *RedisNotifier) Close() error { return nil }
