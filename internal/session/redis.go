package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the token under eventify:session:<profile>, letting a
// shared terminal keep its session outside the local disk.
type RedisBackend struct {
	client redis.UniversalClient
	key    string
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient, profile string) *RedisBackend {
	return &RedisBackend{client: client, key: RedisKey(profile)}
}

// DialRedis parses a redis:// URL and returns a backend for profile.
func DialRedis(redisURL, profile string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisBackend(redis.NewClient(opt), profile), nil
}

// RedisKey returns the key holding profile's token.
func RedisKey(profile string) string {
	return "eventify:session:" + profile
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Load(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *RedisBackend) Save(ctx context.Context, token string) error {
	return r.client.Set(ctx, r.key, token, 0).Err()
}

func (r *RedisBackend) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

// Close releases the client connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// Ping checks the connection to the redis server.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
