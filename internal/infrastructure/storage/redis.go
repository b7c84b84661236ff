package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cookeasy/recipe-client/internal/core/ports"
)

const (
	connectTimeout = 5 * time.Second
	credentialsKey = "cookeasy:session"
)

// RedisConfig captures the settings for establishing a Redis connection.
type RedisConfig struct {
	Addr string
	DB   int
}

// ConnectRedis initialises a Redis client and validates connectivity with a
// ping.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisStore keeps the credential pair under a single key as one JSON blob;
// SET and DEL on one key give the both-or-neither guarantee for free.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an established Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, creds ports.Credentials) error {
	encoded, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.client.Set(ctx, credentialsKey, encoded, 0).Err(); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*ports.Credentials, error) {
	raw, err := s.client.Get(ctx, credentialsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	var creds ports.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if creds.Token == "" {
		return nil, nil
	}
	return &creds, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, credentialsKey).Err(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
