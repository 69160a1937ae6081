/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package geocoding

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/acronis/go-geogate/lrucache"
)

// SearchKey builds the cache key of a forward search.
func SearchKey(query string, limit int) string {
	return "search:" + strings.ToLower(strings.TrimSpace(query)) + ":" + strconv.Itoa(limit)
}

// ReverseKey builds the cache key of a reverse lookup. Coordinates are used as supplied.
func ReverseKey(lat, lon string) string {
	return "rev:" + lat + ":" + lon
}

// CacheKey returns the cache key of the normalized request.
func CacheKey(req Request) string {
	if req.Mode == ModeReverse {
		return ReverseKey(req.Lat, req.Lon)
	}
	return SearchKey(req.Query, req.Limit)
}

// ResultCacheOpts represents options for ResultCache.
type ResultCacheOpts struct {
	MetricsCollector lrucache.MetricsCollector

	// Now returns the current time. time.Now is used if nil.
	Now func() time.Time
}

// ResultCache keeps provider payloads by request key.
// It is bounded by the size limit (least recently used entries are evicted first),
// and an entry older than TTL is never returned.
type ResultCache struct {
	lru *lrucache.LRUCache[string, json.RawMessage]
}

// NewResultCache creates a new ResultCache.
func NewResultCache(cfg *CacheConfig) (*ResultCache, error) {
	return NewResultCacheWithOpts(cfg, ResultCacheOpts{})
}

// NewResultCacheWithOpts creates a new ResultCache with the provided options.
func NewResultCacheWithOpts(cfg *CacheConfig, opts ResultCacheOpts) (*ResultCache, error) {
	lru, err := lrucache.NewWithOpts[string, json.RawMessage](cfg.SizeLimit, opts.MetricsCollector,
		lrucache.Options{DefaultTTL: cfg.TTL, Now: opts.Now})
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: lru}, nil
}

// Get returns a live payload by key.
func (c *ResultCache) Get(key string) (json.RawMessage, bool) {
	return c.lru.Get(key)
}

// Set stores the payload under key.
func (c *ResultCache) Set(key string, value json.RawMessage) {
	c.lru.Add(key, value)
}

// Len returns the number of resident entries, including expired ones not cleaned up yet.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// RemoveExpired drops all expired entries and returns their number.
func (c *ResultCache) RemoveExpired() int {
	return c.lru.RemoveExpired()
}

// RunCleanup is a service.Worker-compatible function removing expired entries once.
func (c *ResultCache) RunCleanup(context.Context) error {
	c.RemoveExpired()
	return nil
}
