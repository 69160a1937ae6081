/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"path/filepath"
	"strings"

	"github.com/acronis/go-geogate/config"
	"github.com/acronis/go-geogate/geocoding"
	"github.com/acronis/go-geogate/httpserver"
	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/profserver"
	"github.com/acronis/go-geogate/quota"
	"github.com/acronis/go-geogate/upstream"
)

const envVarsPrefix = "GEOGATE"

// AppConfig aggregates configurations of all gateway components.
type AppConfig struct {
	Server     *httpserver.Config
	Log        *log.Config
	Geocoding  *geocoding.Config
	Cache      *geocoding.CacheConfig
	API        *upstream.Config
	Quota      *quota.Config
	ProfServer *profserver.Config
}

var _ config.Config = (*AppConfig)(nil)

// NewAppConfig creates a new AppConfig with all sections ready to be loaded.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Server:     httpserver.NewConfig(),
		Log:        log.NewConfig(),
		Geocoding:  geocoding.NewConfig(),
		Cache:      geocoding.NewCacheConfig(),
		API:        upstream.NewConfig(),
		Quota:      quota.NewConfig(),
		ProfServer: profserver.NewConfig(),
	}
}

// SetProviderDefaults sets default values of all sections.
func (c *AppConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

// Set fills all sections from the data provider.
func (c *AppConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}

func loadAppConfig(path string) (*AppConfig, error) {
	cfgLoader := config.NewDefaultLoader(envVarsPrefix)
	cfg := NewAppConfig()
	if path == "" {
		return cfg, cfgLoader.Load(cfg)
	}
	return cfg, cfgLoader.LoadFromFile(path, dataTypeByPath(path), cfg)
}

func dataTypeByPath(path string) config.DataType {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return config.DataTypeJSON
	}
	return config.DataTypeYAML
}
