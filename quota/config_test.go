/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/config"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(""), config.DataTypeYAML, cfg))
		require.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("redis backend", func(t *testing.T) {
		cfgData := `
quota:
  limit: 100
  window: 60000
  backend: Redis
  redis:
    address: localhost:6379
    db: 2
    keyPrefix: "gw:"
`
		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg))
		require.Equal(t, 100, cfg.Limit)
		require.Equal(t, time.Minute, cfg.Window)
		require.Equal(t, BackendRedis, cfg.Backend)
		require.Equal(t, "localhost:6379", cfg.Redis.Address)
		require.Equal(t, 2, cfg.Redis.DB)
		require.Equal(t, "gw:", cfg.Redis.KeyPrefix)
		require.Equal(t, DefaultRedisDialTimeout, cfg.Redis.DialTimeout)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			cfgData string
			wantErr string
		}{
			{"quota:\n  limit: 0\n", "quota.limit: must be positive"},
			{"quota:\n  window: 0\n", "quota.window: must be at least 1ms"},
			{"quota:\n  backend: etcd\n", "quota.backend: unknown value"},
			{"quota:\n  backend: redis\n", "quota.redis.address: must be set"},
			{"quota:\n  maxKeys: -1\n", "quota.maxKeys: must be positive"},
		}
		for _, tt := range tests {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			require.ErrorContains(t, err, tt.wantErr)
		}
	})
}
