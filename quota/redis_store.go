/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix is prepended to all keys created by RedisStore.
const DefaultRedisKeyPrefix = "geogate:quota:"

// fixedWindowLua increments the window counter and starts the window expiration on the first hit.
// Returns {count, remaining_ms}.
// KEYS[1] = window key. ARGV[1] = window size in milliseconds.
const fixedWindowLua = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var fixedWindowScript = redis.NewScript(fixedWindowLua)

// RedisStoreOpts represents options for RedisStore.
type RedisStoreOpts struct {
	KeyPrefix string
}

// RedisStore keeps windows in Redis, so the quota is shared by all instances using the same Redis.
// Window expiration is delegated to Redis key expiration, so window starts are measured by the Redis clock.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new RedisStore with default options.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return NewRedisStoreWithOpts(client, RedisStoreOpts{})
}

// NewRedisStoreWithOpts creates a new RedisStore with the given options.
func NewRedisStoreWithOpts(client redis.UniversalClient, opts RedisStoreOpts) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: opts.KeyPrefix}
}

// Increment implements Store.
func (s *RedisStore) Increment(
	ctx context.Context, identity, action string, windowSize time.Duration, now time.Time,
) (Window, error) {
	windowMs := windowSize.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	// Script.Run uses EVALSHA and falls back to EVAL when the script is not cached by the server yet.
	vals, err := fixedWindowScript.Run(ctx, s.client, []string{s.keyPrefix + makeKey(identity, action)}, windowMs).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("run fixed window script: %w", err)
	}
	if len(vals) != 2 {
		return Window{}, fmt.Errorf("unexpected fixed window script result: %v", vals)
	}
	remaining := time.Duration(vals[1]) * time.Millisecond
	return Window{
		Identity:    identity,
		Action:      action,
		Count:       vals[0],
		WindowStart: now.Add(remaining - windowSize),
	}, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
