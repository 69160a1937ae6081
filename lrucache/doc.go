/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides a bounded in-memory cache with LRU eviction,
// per-entry expiration and Prometheus metrics.
//
// It backs both the geocoding result cache and the in-memory quota store.
package lrucache
