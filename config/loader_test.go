/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testCacheConfig struct {
	SizeLimit int
	TTL       time.Duration
}

func (c *testCacheConfig) KeyPrefix() string {
	return "cache"
}

func (c *testCacheConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("sizeLimit", 1000)
	dp.SetDefault("ttl", "1h")
}

func (c *testCacheConfig) Set(dp DataProvider) (err error) {
	if c.SizeLimit, err = dp.GetInt("sizeLimit"); err != nil {
		return err
	}
	if c.TTL, err = dp.GetDuration("ttl"); err != nil {
		return err
	}
	return nil
}

type testAppConfig struct {
	Cache   *testCacheConfig
	NilPart *testCacheConfig
	Debug   bool
}

func (c *testAppConfig) SetProviderDefaults(dp DataProvider) {
	CallSetProviderDefaultsForFields(c, dp)
}

func (c *testAppConfig) Set(dp DataProvider) (err error) {
	if err = CallSetForFields(c, dp); err != nil {
		return err
	}
	c.Debug, err = dp.GetBool("debug")
	return err
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &testCacheConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, 1000, cfg.SizeLimit)
		require.Equal(t, time.Hour, cfg.TTL)
	})

	t.Run("yaml with key prefix", func(t *testing.T) {
		cfg := &testCacheConfig{}
		yamlData := "cache:\n  sizeLimit: 50\n  ttl: 90s\n"
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(yamlData), DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, 50, cfg.SizeLimit)
		require.Equal(t, 90*time.Second, cfg.TTL)
	})

	t.Run("integer durations are milliseconds", func(t *testing.T) {
		cfg := &testCacheConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"cache":{"ttl":60000}}`), DataTypeJSON, cfg)
		require.NoError(t, err)
		require.Equal(t, time.Minute, cfg.TTL)
	})

	t.Run("nested configs", func(t *testing.T) {
		cfg := &testAppConfig{Cache: &testCacheConfig{}}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"debug":true,"cache":{"sizeLimit":7}}`), DataTypeJSON, cfg)
		require.NoError(t, err)
		require.True(t, cfg.Debug)
		require.Equal(t, 7, cfg.Cache.SizeLimit)
		require.Nil(t, cfg.NilPart)
	})

	t.Run("invalid value", func(t *testing.T) {
		cfg := &testCacheConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"cache":{"sizeLimit":"many"}}`), DataTypeJSON, cfg)
		require.ErrorContains(t, err, "cache.sizeLimit")
	})
}

func TestLoader_Load_EnvVars(t *testing.T) {
	t.Setenv("GEOGATETEST_CACHE_SIZELIMIT", "42")
	t.Setenv("GEOGATETEST_CACHE_TTL", "1500")

	cfg := &testCacheConfig{}
	require.NoError(t, NewDefaultLoader("geogatetest").Load(cfg))
	require.Equal(t, 42, cfg.SizeLimit)
	require.Equal(t, 1500*time.Millisecond, cfg.TTL)
}
