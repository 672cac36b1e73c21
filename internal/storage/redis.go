package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisTimeout = 2 * time.Second

// RedisBackend keeps client storage in Redis under client:<id>:<key>
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires untouched client keys; zero keeps them forever
	TTL time.Duration
}

// NewRedisBackend connects and pings Redis
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBackend{client: client, ttl: cfg.TTL}, nil
}

// For returns the storage of clientID
func (b *RedisBackend) For(clientID string) (LocalStorage, error) {
	if !validName(clientID) {
		return nil, ErrInvalidKey
	}
	return &redisStorage{backend: b, prefix: "client:" + clientID + ":"}, nil
}

// Close closes the Redis connection pool
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

type redisStorage struct {
	backend *RedisBackend
	prefix  string
}

func (s *redisStorage) GetItem(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	value, err := s.backend.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *redisStorage) SetItem(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.backend.client.Set(ctx, s.prefix+key, value, s.backend.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *redisStorage) RemoveItem(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.backend.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
