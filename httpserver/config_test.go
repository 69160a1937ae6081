/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-geogate/config"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(""), config.DataTypeYAML, cfg))
		require.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("yaml config", func(t *testing.T) {
		cfgData := `
server:
  address: "127.0.0.1:8080"
  timeouts:
    write: 1h
    read: 7m
    readHeader: 1m
    idle: 20m
    shutdown: 30s
  limits:
    maxBodySize: 1M
  log:
    requestStart: true
    excludedEndpoints: ["/healthz"]
    slowRequestThreshold: 2s
  tls:
    enabled: true
    cert: "/test/path"
    key: "/test/path"
`
		expectedCfg := NewDefaultConfig()
		expectedCfg.Address = "127.0.0.1:8080"
		expectedCfg.Timeouts.Write = config.TimeDuration(time.Hour)
		expectedCfg.Timeouts.Read = config.TimeDuration(time.Minute * 7)
		expectedCfg.Timeouts.ReadHeader = config.TimeDuration(time.Minute)
		expectedCfg.Timeouts.Idle = config.TimeDuration(time.Minute * 20)
		expectedCfg.Timeouts.Shutdown = config.TimeDuration(time.Second * 30)
		expectedCfg.Limits.MaxBodySizeBytes = 1024 * 1024
		expectedCfg.Log.RequestStart = true
		expectedCfg.Log.ExcludedEndpoints = []string{"/healthz"}
		expectedCfg.Log.SlowRequestThreshold = config.TimeDuration(2 * time.Second)
		expectedCfg.TLS.Enabled = true
		expectedCfg.TLS.Certificate = "/test/path"
		expectedCfg.TLS.Key = "/test/path"

		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg))
		require.Equal(t, expectedCfg, cfg)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		cfg := NewConfig(WithKeyPrefix("public"))
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(
			bytes.NewBufferString("public:\n  address: \":9090\"\n"), config.DataTypeYAML, cfg))
		require.Equal(t, ":9090", cfg.Address)
		require.Equal(t, "public", cfg.KeyPrefix())
	})

	t.Run("yaml unmarshal", func(t *testing.T) {
		var cfg Config
		require.NoError(t, yaml.Unmarshal([]byte("address: \":8081\"\ntimeouts:\n  shutdown: 3s\nlimits:\n  maxBodySize: 2K\n"), &cfg))
		require.Equal(t, ":8081", cfg.Address)
		require.Equal(t, config.TimeDuration(3*time.Second), cfg.Timeouts.Shutdown)
		require.Equal(t, config.ByteSize(2048), cfg.Limits.MaxBodySizeBytes)
	})
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfgData string
		wantErr string
	}{
		{
			name:    "no address",
			cfgData: "server:\n  address: \"\"\n",
			wantErr: "server.address: either address or unixSocketPath should be set",
		},
		{
			name:    "tls without key",
			cfgData: "server:\n  tls:\n    enabled: true\n    cert: /cert\n",
			wantErr: "server.tls.key: both cert and key should be set",
		},
		{
			name:    "negative timeout",
			cfgData: "server:\n  timeouts:\n    idle: -1s\n",
			wantErr: "server.timeouts.idle: cannot be negative",
		},
		{
			name:    "invalid body size",
			cfgData: "server:\n  limits:\n    maxBodySize: lots\n",
			wantErr: "server.limits.maxBodySize",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
