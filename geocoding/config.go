/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package geocoding

import (
	"fmt"
	"time"

	"github.com/acronis/go-geogate/config"
)

const (
	cfgDefaultKeyPrefix      = "geocoding"
	cfgDefaultCacheKeyPrefix = "cache"
)

const (
	cfgKeyMinQueryLen       = "minQueryLen"
	cfgKeyMaxQueryLen       = "maxQueryLen"
	cfgKeyDefaultLimit      = "defaultLimit"
	cfgKeyMaxLimit          = "maxLimit"
	cfgKeyClientCacheMaxAge = "clientCacheMaxAge"

	cfgKeyCacheSizeLimit       = "sizeLimit"
	cfgKeyCacheTTL             = "ttl"
	cfgKeyCacheCleanupInterval = "cleanupInterval"
)

// Default values.
const (
	DefaultMinQueryLen       = 3
	DefaultMaxQueryLen       = 200
	DefaultDefaultLimit      = 5
	DefaultMaxLimit          = 10
	DefaultClientCacheMaxAge = time.Hour

	DefaultCacheSizeLimit       = 1000
	DefaultCacheTTL             = time.Hour
	DefaultCacheCleanupInterval = 5 * time.Minute
)

// Config represents query validation and response settings.
type Config struct {
	MinQueryLen       int           `mapstructure:"minQueryLen" yaml:"minQueryLen" json:"minQueryLen"`
	MaxQueryLen       int           `mapstructure:"maxQueryLen" yaml:"maxQueryLen" json:"maxQueryLen"`
	DefaultLimit      int           `mapstructure:"defaultLimit" yaml:"defaultLimit" json:"defaultLimit"`
	MaxLimit          int           `mapstructure:"maxLimit" yaml:"maxLimit" json:"maxLimit"`
	ClientCacheMaxAge time.Duration `mapstructure:"clientCacheMaxAge" yaml:"clientCacheMaxAge" json:"clientCacheMaxAge"`

	keyPrefix string
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
		keyPrefix:         cfgDefaultKeyPrefix,
		MinQueryLen:       DefaultMinQueryLen,
		MaxQueryLen:       DefaultMaxQueryLen,
		DefaultLimit:      DefaultDefaultLimit,
		MaxLimit:          DefaultMaxLimit,
		ClientCacheMaxAge: DefaultClientCacheMaxAge,
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
	dp.SetDefault(cfgKeyMinQueryLen, DefaultMinQueryLen)
	dp.SetDefault(cfgKeyMaxQueryLen, DefaultMaxQueryLen)
	dp.SetDefault(cfgKeyDefaultLimit, DefaultDefaultLimit)
	dp.SetDefault(cfgKeyMaxLimit, DefaultMaxLimit)
	dp.SetDefault(cfgKeyClientCacheMaxAge, DefaultClientCacheMaxAge.String())
}

// Set sets geocoding configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MinQueryLen, err = dp.GetInt(cfgKeyMinQueryLen); err != nil {
		return err
	}
	if c.MinQueryLen < 1 {
		return dp.WrapKeyErr(cfgKeyMinQueryLen, fmt.Errorf("must be positive"))
	}
	if c.MaxQueryLen, err = dp.GetInt(cfgKeyMaxQueryLen); err != nil {
		return err
	}
	if c.MaxQueryLen < c.MinQueryLen {
		return dp.WrapKeyErr(cfgKeyMaxQueryLen, fmt.Errorf("cannot be less than %s", cfgKeyMinQueryLen))
	}

	if c.MaxLimit, err = dp.GetInt(cfgKeyMaxLimit); err != nil {
		return err
	}
	if c.MaxLimit < 1 {
		return dp.WrapKeyErr(cfgKeyMaxLimit, fmt.Errorf("must be positive"))
	}
	if c.DefaultLimit, err = dp.GetInt(cfgKeyDefaultLimit); err != nil {
		return err
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return dp.WrapKeyErr(cfgKeyDefaultLimit, fmt.Errorf("must be within [1, %s]", cfgKeyMaxLimit))
	}

	if c.ClientCacheMaxAge, err = dp.GetDuration(cfgKeyClientCacheMaxAge); err != nil {
		return err
	}
	if c.ClientCacheMaxAge < 0 {
		return dp.WrapKeyErr(cfgKeyClientCacheMaxAge, fmt.Errorf("cannot be negative"))
	}
	return nil
}

// CacheConfig represents result cache settings.
type CacheConfig struct {
	SizeLimit       int           `mapstructure:"sizeLimit" yaml:"sizeLimit" json:"sizeLimit"`
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval" yaml:"cleanupInterval" json:"cleanupInterval"`

	keyPrefix string
}

var _ config.Config = (*CacheConfig)(nil)
var _ config.KeyPrefixProvider = (*CacheConfig)(nil)

// NewCacheConfig creates a new instance of the CacheConfig.
func NewCacheConfig() *CacheConfig {
	return &CacheConfig{keyPrefix: cfgDefaultCacheKeyPrefix}
}

// NewDefaultCacheConfig creates a new instance of the CacheConfig with default values.
func NewDefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		keyPrefix:       cfgDefaultCacheKeyPrefix,
		SizeLimit:       DefaultCacheSizeLimit,
		TTL:             DefaultCacheTTL,
		CleanupInterval: DefaultCacheCleanupInterval,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *CacheConfig) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultCacheKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *CacheConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyCacheSizeLimit, DefaultCacheSizeLimit)
	dp.SetDefault(cfgKeyCacheTTL, DefaultCacheTTL.String())
	dp.SetDefault(cfgKeyCacheCleanupInterval, DefaultCacheCleanupInterval.String())
}

// Set sets cache configuration values from config.DataProvider.
func (c *CacheConfig) Set(dp config.DataProvider) error {
	var err error

	if c.SizeLimit, err = dp.GetInt(cfgKeyCacheSizeLimit); err != nil {
		return err
	}
	if c.SizeLimit < 1 {
		return dp.WrapKeyErr(cfgKeyCacheSizeLimit, fmt.Errorf("must be positive"))
	}
	if c.TTL, err = dp.GetDuration(cfgKeyCacheTTL); err != nil {
		return err
	}
	if c.TTL <= 0 {
		return dp.WrapKeyErr(cfgKeyCacheTTL, fmt.Errorf("must be positive"))
	}
	if c.CleanupInterval, err = dp.GetDuration(cfgKeyCacheCleanupInterval); err != nil {
		return err
	}
	if c.CleanupInterval < 0 {
		return dp.WrapKeyErr(cfgKeyCacheCleanupInterval, fmt.Errorf("cannot be negative"))
	}
	return nil
}
