package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"islamai-relay/internal/config"
	"islamai-relay/internal/models"
)

// RedisStore keeps settings as fields of one hash so several relay
// instances can share credentials.
type RedisStore struct {
	client *redis.Client
	hash   string
}

// OpenRedis connects and verifies the server is reachable.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client, hash: cfg.Prefix + "settings"}, nil
}

func (s *RedisStore) GetKey(ctx context.Context, p models.ProviderName) (string, error) {
	if err := checkProvider(p); err != nil {
		return "", err
	}
	return s.get(ctx, keyName(p), "")
}

func (s *RedisStore) SetKey(ctx context.Context, p models.ProviderName, value string) error {
	if err := checkProvider(p); err != nil {
		return err
	}
	return s.set(ctx, keyName(p), value)
}

func (s *RedisStore) ActiveModel(ctx context.Context) (string, error) {
	return s.get(ctx, activeModelKey, DefaultActiveModel)
}

func (s *RedisStore) SetActiveModel(ctx context.Context, alias string) error {
	return s.set(ctx, activeModelKey, alias)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, field, fallback string) (string, error) {
	value, err := s.client.HGet(ctx, s.hash, field).Result()
	if errors.Is(err, redis.Nil) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %q: %w", field, err)
	}
	return value, nil
}

func (s *RedisStore) set(ctx context.Context, field, value string) error {
	if err := s.client.HSet(ctx, s.hash, field, value).Err(); err != nil {
		return fmt.Errorf("write setting %q: %w", field, err)
	}
	return nil
}
