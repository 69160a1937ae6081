/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/config"
	"github.com/acronis/go-geogate/log/logtest"
	"github.com/acronis/go-geogate/testutil"
)

func TestProfServer(t *testing.T) {
	addr := testutil.GetLocalAddrWithFreeTCPPort()
	srv := New(&Config{Enabled: true, Address: addr}, logtest.NewRecorder())

	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(addr, 3*time.Second))

	resp, err := http.Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body)

	require.NoError(t, srv.Stop(true))
	testutil.RequireNoErrorInChannel(t, fatalErr)
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(""), config.DataTypeYAML, cfg))
		require.Equal(t, NewDefaultConfig(), cfg)
		require.False(t, cfg.Enabled)
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := NewConfig()
		cfgData := "profServer:\n  enabled: true\n  address: 0.0.0.0:6060\n"
		require.NoError(t, config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg))
		require.True(t, cfg.Enabled)
		require.Equal(t, "0.0.0.0:6060", cfg.Address)
	})

	t.Run("enabled without address", func(t *testing.T) {
		cfgData := "profServer:\n  enabled: true\n  address: \"\"\n"
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, NewConfig())
		require.ErrorContains(t, err, "profServer.address: must be set")
	})
}
