// Package redisstate keeps the last known telemetry record per aircraft in Redis.
package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/redis/go-redis/v9"
)

// RedisClientInterface defines the Redis operations used by the store
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Close() error
}

// Store implements telemetry.LastKnown.
type Store struct {
	client RedisClientInterface
	ttl    time.Duration
}

// New connects to Redis at addr and checks the connection.
func New(ctx context.Context, addr string, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient creates a store over an existing client (useful for testing)
func NewWithClient(client RedisClientInterface, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func key(serial string) string {
	return fmt.Sprintf("tacmap:telemetry:%s", serial)
}

// Put stores rec as the latest record for its serial.
func (s *Store) Put(ctx context.Context, rec core.TelemetryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}
	return s.client.Set(ctx, key(rec.Serial), data, s.ttl).Err()
}

// Get returns the stored records for serials. Missing and unreadable
// entries are skipped.
func (s *Store) Get(ctx context.Context, serials []string) ([]core.TelemetryRecord, error) {
	if len(serials) == 0 {
		return nil, nil
	}
	keys := make([]string, len(serials))
	for i, serial := range serials {
		keys[i] = key(serial)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get telemetry: %w", err)
	}

	out := make([]core.TelemetryRecord, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec core.TelemetryRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
