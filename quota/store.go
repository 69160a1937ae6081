/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/lrucache"
	"github.com/acronis/go-geogate/retry"
)

const redisConnectRetryInterval = 500 * time.Millisecond

// NewStoreFromConfig creates the store configured by cfg.
// For the Redis backend, it waits until Redis responds to PING, making up to cfg.Redis.ConnectAttempts attempts.
// The returned close function releases the underlying connections.
func NewStoreFromConfig(
	ctx context.Context, cfg *Config, logger log.FieldLogger, cacheMetrics lrucache.MetricsCollector,
) (store Store, closeFn func() error, err error) {
	switch cfg.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Address,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		redisStore := NewRedisStoreWithOpts(client, RedisStoreOpts{KeyPrefix: cfg.Redis.KeyPrefix})
		if err = connectRedis(ctx, redisStore, cfg.Redis.ConnectAttempts, logger); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return redisStore, client.Close, nil

	case BackendMemory, "":
		memStore, memErr := NewMemoryStoreWithOpts(MemoryStoreOpts{MaxKeys: cfg.MaxKeys, MetricsCollector: cacheMetrics})
		if memErr != nil {
			return nil, nil, fmt.Errorf("create memory quota store: %w", memErr)
		}
		return memStore, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown quota backend %q", cfg.Backend)
}

func connectRedis(ctx context.Context, store *RedisStore, attempts int, logger log.FieldLogger) error {
	var err error
	if attempts <= 1 {
		err = store.Ping(ctx)
	} else {
		policy := retry.NewConstantBackoffPolicy(redisConnectRetryInterval, attempts-1)
		notify := func(err error, next time.Duration) {
			logger.Warn("redis quota store is not available yet, retrying",
				log.Error(err), log.Duration("next_attempt_in", next))
		}
		err = retry.DoWithRetry(ctx, policy, nil, backoff.Notify(notify), store.Ping)
	}
	if err != nil {
		return fmt.Errorf("connect to redis quota store: %w", err)
	}
	return nil
}
