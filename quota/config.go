/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-geogate/config"
)

const cfgDefaultKeyPrefix = "quota"

const (
	cfgKeyLimit                = "limit"
	cfgKeyWindow               = "window"
	cfgKeyBackend              = "backend"
	cfgKeyMaxKeys              = "maxKeys"
	cfgKeyCleanupInterval      = "cleanupInterval"
	cfgKeyRedisAddress         = "redis.address"
	cfgKeyRedisPassword        = "redis.password" //nolint:gosec // not a credential
	cfgKeyRedisDB              = "redis.db"
	cfgKeyRedisKeyPrefix       = "redis.keyPrefix"
	cfgKeyRedisDialTimeout     = "redis.dialTimeout"
	cfgKeyRedisConnectAttempts = "redis.connectAttempts"
)

// Backend is a type of the quota store.
type Backend string

// Quota store backends.
const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Default values.
const (
	DefaultLimit                = 10
	DefaultWindow               = time.Minute
	DefaultCleanupInterval      = time.Minute
	DefaultRedisDialTimeout     = 5 * time.Second
	DefaultRedisConnectAttempts = 5
)

// Config represents a set of configuration parameters for the admission controller.
type Config struct {
	Limit           int           `mapstructure:"limit" yaml:"limit" json:"limit"`
	Window          time.Duration `mapstructure:"window" yaml:"window" json:"window"`
	Backend         Backend       `mapstructure:"backend" yaml:"backend" json:"backend"`
	MaxKeys         int           `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`
	Redis           RedisConfig   `mapstructure:"redis" yaml:"redis" json:"redis"`

	keyPrefix string
}

// RedisConfig represents connection parameters of the Redis quota store.
type RedisConfig struct {
	Address         string        `mapstructure:"address" yaml:"address" json:"address"`
	Password        string        `mapstructure:"password" yaml:"password" json:"password"`
	DB              int           `mapstructure:"db" yaml:"db" json:"db"`
	KeyPrefix       string        `mapstructure:"keyPrefix" yaml:"keyPrefix" json:"keyPrefix"`
	DialTimeout     time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout" json:"dialTimeout"`
	ConnectAttempts int           `mapstructure:"connectAttempts" yaml:"connectAttempts" json:"connectAttempts"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{keyPrefix: cfgDefaultKeyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		keyPrefix:       cfgDefaultKeyPrefix,
		Limit:           DefaultLimit,
		Window:          DefaultWindow,
		Backend:         BackendMemory,
		MaxKeys:         DefaultMemoryStoreMaxKeys,
		CleanupInterval: DefaultCleanupInterval,
		Redis: RedisConfig{
			KeyPrefix:       DefaultRedisKeyPrefix,
			DialTimeout:     DefaultRedisDialTimeout,
			ConnectAttempts: DefaultRedisConnectAttempts,
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLimit, DefaultLimit)
	dp.SetDefault(cfgKeyWindow, DefaultWindow.String())
	dp.SetDefault(cfgKeyBackend, string(BackendMemory))
	dp.SetDefault(cfgKeyMaxKeys, DefaultMemoryStoreMaxKeys)
	dp.SetDefault(cfgKeyCleanupInterval, DefaultCleanupInterval.String())
	dp.SetDefault(cfgKeyRedisKeyPrefix, DefaultRedisKeyPrefix)
	dp.SetDefault(cfgKeyRedisDialTimeout, DefaultRedisDialTimeout.String())
	dp.SetDefault(cfgKeyRedisConnectAttempts, DefaultRedisConnectAttempts)
}

// Set sets quota configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Limit, err = dp.GetInt(cfgKeyLimit); err != nil {
		return err
	}
	if c.Limit < 1 {
		return dp.WrapKeyErr(cfgKeyLimit, fmt.Errorf("must be positive"))
	}

	if c.Window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if c.Window < time.Millisecond {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("must be at least 1ms"))
	}

	backend, err := dp.GetStringFromSet(cfgKeyBackend, []string{string(BackendMemory), string(BackendRedis)}, true)
	if err != nil {
		return err
	}
	c.Backend = Backend(strings.ToLower(backend))

	if c.MaxKeys, err = dp.GetInt(cfgKeyMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys < 1 {
		return dp.WrapKeyErr(cfgKeyMaxKeys, fmt.Errorf("must be positive"))
	}

	if c.CleanupInterval, err = dp.GetDuration(cfgKeyCleanupInterval); err != nil {
		return err
	}
	if c.CleanupInterval < 0 {
		return dp.WrapKeyErr(cfgKeyCleanupInterval, fmt.Errorf("cannot be negative"))
	}

	return c.setRedisConfig(dp)
}

func (c *Config) setRedisConfig(dp config.DataProvider) error {
	var err error

	if c.Redis.Address, err = dp.GetString(cfgKeyRedisAddress); err != nil {
		return err
	}
	if c.Backend == BackendRedis && c.Redis.Address == "" {
		return dp.WrapKeyErr(cfgKeyRedisAddress, fmt.Errorf("must be set for %q backend", BackendRedis))
	}
	if c.Redis.Password, err = dp.GetString(cfgKeyRedisPassword); err != nil {
		return err
	}
	if c.Redis.DB, err = dp.GetInt(cfgKeyRedisDB); err != nil {
		return err
	}
	if c.Redis.KeyPrefix, err = dp.GetString(cfgKeyRedisKeyPrefix); err != nil {
		return err
	}
	if c.Redis.DialTimeout, err = dp.GetDuration(cfgKeyRedisDialTimeout); err != nil {
		return err
	}
	if c.Redis.ConnectAttempts, err = dp.GetInt(cfgKeyRedisConnectAttempts); err != nil {
		return err
	}
	if c.Redis.ConnectAttempts < 1 {
		return dp.WrapKeyErr(cfgKeyRedisConnectAttempts, fmt.Errorf("must be positive"))
	}
	return nil
}
