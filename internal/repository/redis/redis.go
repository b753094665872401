package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fleetview/backend/internal/domain"
)

// Connect opens a client and pings it
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

// TrailStore implements domain.TrailStore on Redis strings. Each trail is
// stored wholesale as a JSON array of [lat,lng] pairs.
type TrailStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewTrailStore creates a store. A zero ttl keeps trails until deleted.
func NewTrailStore(client goredis.UniversalClient, ttl time.Duration) *TrailStore {
	return &TrailStore{client: client, ttl: ttl}
}

// Load reads the trail stored under key
func (s *TrailStore) Load(ctx context.Context, key string) (domain.Trail, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrTrailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get %s: %w", key, err)
	}

	var trail domain.Trail
	if err := json.Unmarshal(raw, &trail); err != nil {
		return nil, fmt.Errorf("redis: failed to decode %s: %w", key, err)
	}
	return trail, nil
}

// Save overwrites the trail stored under key
func (s *TrailStore) Save(ctx context.Context, key string, trail domain.Trail) error {
	raw, err := json.Marshal(trail)
	if err != nil {
		return fmt.Errorf("redis: failed to encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes the trail stored under key
func (s *TrailStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete %s: %w", key, err)
	}
	return nil
}

// Health checks Redis connectivity
func (s *TrailStore) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: health check failed: %w", err)
	}
	return nil
}
