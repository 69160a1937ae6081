/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/log/logtest"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, closeFn, err := NewStoreFromConfig(context.Background(), NewDefaultConfig(), logtest.NewRecorder(), nil)
		require.NoError(t, err)
		require.IsType(t, &MemoryStore{}, store)
		require.NoError(t, closeFn())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := NewDefaultConfig()
		cfg.Backend = BackendRedis
		cfg.Redis.Address = mr.Addr()

		store, closeFn, err := NewStoreFromConfig(context.Background(), cfg, logtest.NewRecorder(), nil)
		require.NoError(t, err)
		require.IsType(t, &RedisStore{}, store)
		require.NoError(t, store.Ping(context.Background()))
		require.NoError(t, closeFn())
	})

	t.Run("redis is unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := NewDefaultConfig()
		cfg.Backend = BackendRedis
		cfg.Redis.Address = addr
		cfg.Redis.DialTimeout = 100 * time.Millisecond
		cfg.Redis.ConnectAttempts = 2

		logger := logtest.NewRecorder()
		_, _, err := NewStoreFromConfig(context.Background(), cfg, logger, nil)
		require.ErrorContains(t, err, "connect to redis quota store")
		_, found := logger.FindEntry("redis quota store is not available yet, retrying")
		require.True(t, found)
	})
}
