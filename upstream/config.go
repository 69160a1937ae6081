/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package upstream

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-geogate/config"
)

const cfgDefaultKeyPrefix = "api"

const (
	cfgKeyBaseURL                 = "baseURL"
	cfgKeyUserAgent               = "userAgent"
	cfgKeyTimeout                 = "timeout"
	cfgKeyMaxRetries              = "maxRetries"
	cfgKeyMinRequestInterval      = "minRequestInterval"
	cfgKeyMaxResponseSize         = "maxResponseSize"
	cfgKeyBackoffInitialInterval  = "backoff.initialInterval"
	cfgKeyBackoffMaxInterval      = "backoff.maxInterval"
	cfgKeyLogMode                 = "log.mode"
	cfgKeyLogSlowRequestThreshold = "log.slowRequestThreshold"
)

// Default values.
const (
	DefaultBaseURL                = "https://nominatim.openstreetmap.org"
	DefaultUserAgent              = "go-geogate/1.0"
	DefaultTimeout                = 10 * time.Second
	DefaultMaxRetries             = 3
	DefaultMinRequestInterval     = time.Second
	DefaultMaxResponseSize        = 5 * 1024 * 1024
	DefaultBackoffInitialInterval = time.Second
	DefaultBackoffMaxInterval     = 10 * time.Second
)

// Config represents a set of configuration parameters for the upstream provider.
type Config struct {
	BaseURL            string          `mapstructure:"baseURL" yaml:"baseURL" json:"baseURL"`
	UserAgent          string          `mapstructure:"userAgent" yaml:"userAgent" json:"userAgent"`
	Timeout            time.Duration   `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MaxRetries         int             `mapstructure:"maxRetries" yaml:"maxRetries" json:"maxRetries"`
	MinRequestInterval time.Duration   `mapstructure:"minRequestInterval" yaml:"minRequestInterval" json:"minRequestInterval"`
	MaxResponseSize    config.ByteSize `mapstructure:"maxResponseSize" yaml:"maxResponseSize" json:"maxResponseSize"`
	Backoff            BackoffConfig   `mapstructure:"backoff" yaml:"backoff" json:"backoff"`
	Log                LogConfig       `mapstructure:"log" yaml:"log" json:"log"`

	keyPrefix string
}

// BackoffConfig configures delays between attempts when the provider gives no Retry-After hint.
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initialInterval" yaml:"initialInterval" json:"initialInterval"`
	MaxInterval     time.Duration `mapstructure:"maxInterval" yaml:"maxInterval" json:"maxInterval"`
}

// LogConfig configures logging of outbound requests.
type LogConfig struct {
	Mode                 LoggingMode   `mapstructure:"mode" yaml:"mode" json:"mode"`
	SlowRequestThreshold time.Duration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"`
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
		keyPrefix:          cfgDefaultKeyPrefix,
		BaseURL:            DefaultBaseURL,
		UserAgent:          DefaultUserAgent,
		Timeout:            DefaultTimeout,
		MaxRetries:         DefaultMaxRetries,
		MinRequestInterval: DefaultMinRequestInterval,
		MaxResponseSize:    DefaultMaxResponseSize,
		Backoff: BackoffConfig{
			InitialInterval: DefaultBackoffInitialInterval,
			MaxInterval:     DefaultBackoffMaxInterval,
		},
		Log: LogConfig{Mode: LoggingModeFailed},
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
	dp.SetDefault(cfgKeyBaseURL, DefaultBaseURL)
	dp.SetDefault(cfgKeyUserAgent, DefaultUserAgent)
	dp.SetDefault(cfgKeyTimeout, DefaultTimeout.String())
	dp.SetDefault(cfgKeyMaxRetries, DefaultMaxRetries)
	dp.SetDefault(cfgKeyMinRequestInterval, DefaultMinRequestInterval.String())
	dp.SetDefault(cfgKeyMaxResponseSize, config.ByteSize(DefaultMaxResponseSize).String())
	dp.SetDefault(cfgKeyBackoffInitialInterval, DefaultBackoffInitialInterval.String())
	dp.SetDefault(cfgKeyBackoffMaxInterval, DefaultBackoffMaxInterval.String())
	dp.SetDefault(cfgKeyLogMode, string(LoggingModeFailed))
}

// Set sets upstream configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.BaseURL, err = dp.GetString(cfgKeyBaseURL); err != nil {
		return err
	}
	if u, parseErr := url.Parse(c.BaseURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		return dp.WrapKeyErr(cfgKeyBaseURL, fmt.Errorf("must be an absolute URL, got %q", c.BaseURL))
	}

	if c.UserAgent, err = dp.GetString(cfgKeyUserAgent); err != nil {
		return err
	}
	if c.UserAgent == "" {
		return dp.WrapKeyErr(cfgKeyUserAgent, fmt.Errorf("cannot be empty"))
	}

	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, fmt.Errorf("must be positive"))
	}

	if c.MaxRetries, err = dp.GetInt(cfgKeyMaxRetries); err != nil {
		return err
	}
	if c.MaxRetries < 1 {
		return dp.WrapKeyErr(cfgKeyMaxRetries, fmt.Errorf("must be >= 1"))
	}

	if c.MinRequestInterval, err = dp.GetDuration(cfgKeyMinRequestInterval); err != nil {
		return err
	}
	if c.MinRequestInterval < 0 {
		return dp.WrapKeyErr(cfgKeyMinRequestInterval, fmt.Errorf("cannot be negative"))
	}

	maxRespSize, err := dp.GetSizeInBytes(cfgKeyMaxResponseSize)
	if err != nil {
		return err
	}
	if maxRespSize == 0 {
		return dp.WrapKeyErr(cfgKeyMaxResponseSize, fmt.Errorf("must be positive"))
	}
	c.MaxResponseSize = config.ByteSize(maxRespSize)

	if c.Backoff.InitialInterval, err = dp.GetDuration(cfgKeyBackoffInitialInterval); err != nil {
		return err
	}
	if c.Backoff.MaxInterval, err = dp.GetDuration(cfgKeyBackoffMaxInterval); err != nil {
		return err
	}
	if c.Backoff.InitialInterval <= 0 || c.Backoff.MaxInterval < c.Backoff.InitialInterval {
		return dp.WrapKeyErr(cfgKeyBackoffMaxInterval, fmt.Errorf("must be >= initial interval (%s)", c.Backoff.InitialInterval))
	}

	modeStr, err := dp.GetStringFromSet(cfgKeyLogMode,
		[]string{string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed)}, true)
	if err != nil {
		return err
	}
	c.Log.Mode = LoggingMode(strings.ToLower(modeStr))
	if c.Log.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLogSlowRequestThreshold); err != nil {
		return err
	}
	return nil
}
