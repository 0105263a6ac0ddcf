package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKeyPrefix is the default prefix for daily risk state keys
	DefaultRedisKeyPrefix = "risk:day:"
	// DefaultRedisTTL keeps a day's state long enough to survive restarts
	// and post-mortems without accumulating forever
	DefaultRedisTTL = 72 * time.Hour
)

// RedisStoreConfig holds configuration for RedisStore
type RedisStoreConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// DefaultRedisStoreConfig returns default configuration
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{
		KeyPrefix: DefaultRedisKeyPrefix,
		TTL:       DefaultRedisTTL,
	}
}

// RedisStore persists daily risk state as JSON under risk:day:{date}. A
// restart mid-session reloads the day's losses and halt flag from here.
type RedisStore struct {
	client *redis.Client
	config RedisStoreConfig
}

// NewRedisStore creates a Redis-backed risk state store
func NewRedisStore(client *redis.Client, config RedisStoreConfig) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisKeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultRedisTTL
	}
	return &RedisStore{client: client, config: config}, nil
}

func (s *RedisStore) Load(ctx context.Context, date string) (*DayState, error) {
	raw, err := s.client.Get(ctx, s.config.KeyPrefix+date).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load risk state for %s: %w", date, err)
	}

	var state DayState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode risk state for %s: %w", date, err)
	}
	if state.ConsecutiveLosses == nil {
		state.ConsecutiveLosses = make(map[string]int)
	}
	if state.BannedMarkets == nil {
		state.BannedMarkets = make(map[string]bool)
	}
	return &state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *DayState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode risk state: %w", err)
	}
	if err := s.client.Set(ctx, s.config.KeyPrefix+state.Date, raw, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save risk state for %s: %w", state.Date, err)
	}
	return nil
}
