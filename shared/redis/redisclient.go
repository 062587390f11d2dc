package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by GetJSON when the key does not exist
var ErrNotFound = errors.New("redis: key not found")

// Config holds all configuration for the Redis client
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisClient is a wrapper around the go-redis client.
// It provides the key/value, pub/sub and stream calls used by the portal.
type RedisClient struct {
	client *redis.Client
	config *Config
}

// NewClient creates and connects a new RedisClient.
func NewClient(cfg *Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{
		client: rdb,
		config: cfg,
	}, nil
}

// Close gracefully closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// SetJSON stores raw JSON under key with the given TTL (0 keeps it forever).
func (c *RedisClient) SetJSON(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

// GetJSON returns the raw value stored under key, or ErrNotFound.
func (c *RedisClient) GetJSON(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", key, err)
	}
	return val, nil
}

// SetNX stores payload under key only if the key does not exist and reports whether it was set.
func (c *RedisClient) SetNX(ctx context.Context, key string, payload []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to SETNX %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes key. Missing keys are not an error.
func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to DEL %s: %w", key, err)
	}
	return nil
}

// Publish sends payload to a pub/sub channel and returns the number of receivers.
func (c *RedisClient) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	n, err := c.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to PUBLISH to %s: %w", channel, err)
	}
	return n, nil
}

// PublishStreamEvent adds an event to a stream using XADD.
// 'data' should be a map[string]interface{} representing the event.
func (c *RedisClient) PublishStreamEvent(ctx context.Context, streamName string, data map[string]interface{}) (string, error) {
	// '*' as the ID lets Redis generate a timestamp-based ID.
	args := &redis.XAddArgs{
		Stream: streamName,
		Values: data,
	}

	msgID, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to XADD to stream %s: %w", streamName, err)
	}
	return msgID, nil
}

// GetStreamLength returns the current stream length
func (c *RedisClient) GetStreamLength(ctx context.Context, streamName string) (int64, error) {
	return c.client.XLen(ctx, streamName).Result()
}

// HealthCheck verifies Redis connectivity
func (c *RedisClient) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
