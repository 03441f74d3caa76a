// Package redis implements the KV and progress-publisher ports on top of a
// Redis server. It is the production backend; the memory package covers
// local development and tests.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis using a redis:// URL and verifies the
// connection with a ping.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// KV adapts a Redis client to the key-value port.
type KV struct {
	client *redis.Client
}

// NewKV wraps an existing Redis client.
func NewKV(client *redis.Client) *KV {
	return &KV{client: client}
}

// Get retrieves a value. Returns ("", false, nil) for a missing key.
func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := kv.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores a value with the given TTL. A zero TTL means no expiry.
func (kv *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := kv.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (kv *KV) Delete(ctx context.Context, key string) error {
	if err := kv.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// SAdd adds members to the set at key.
func (kv *KV) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := kv.client.SAdd(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", key, err)
	}
	return nil
}

// SRem removes members from the set at key.
func (kv *KV) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := kv.client.SRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("redis srem %s: %w", key, err)
	}
	return nil
}

// SMembers returns the members of the set at key.
func (kv *KV) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := kv.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key, err)
	}
	return members, nil
}
