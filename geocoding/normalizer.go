/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package geocoding

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// Mode is a lookup mode.
type Mode int

// Lookup modes.
const (
	ModeSearch Mode = iota
	ModeReverse
)

// String returns the name of the mode, used as the upstream endpoint.
func (m Mode) String() string {
	if m == ModeReverse {
		return "reverse"
	}
	return "search"
}

// RawQuery is the caller input as it arrives on the wire.
type RawQuery struct {
	Query    string
	Limit    string
	Lat      string
	Lon      string
	Identity string
}

// Request is a normalized lookup.
// Lat and Lon keep the caller's spelling (trimmed), they are guaranteed to be numeric and in range.
type Request struct {
	Mode     Mode
	Query    string
	Limit    int
	Lat      string
	Lon      string
	Identity string
}

// Normalizer turns raw input into a Request.
type Normalizer struct {
	cfg *Config
}

// NewNormalizer creates a new Normalizer.
func NewNormalizer(cfg *Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize validates raw input and builds a Request.
// Both coordinates being numeric select the reverse mode, otherwise the query is a forward search.
// A forward query shorter than the minimum yields ErrQueryTooShort, a longer than the maximum one
// yields a *ValidationError.
func (n *Normalizer) Normalize(raw RawQuery) (Request, error) {
	lat, lon := strings.TrimSpace(raw.Lat), strings.TrimSpace(raw.Lon)
	if latVal, ok := parseCoordinate(lat); ok {
		if lonVal, ok := parseCoordinate(lon); ok {
			if latVal < -90 || latVal > 90 {
				return Request{}, newValidationError("Latitude must be within [-90, 90].")
			}
			if lonVal < -180 || lonVal > 180 {
				return Request{}, newValidationError("Longitude must be within [-180, 180].")
			}
			return Request{Mode: ModeReverse, Lat: lat, Lon: lon, Identity: raw.Identity}, nil
		}
	}

	query := strings.Join(strings.Fields(raw.Query), " ")
	queryLen := utf8.RuneCountInString(query)
	if queryLen < n.cfg.MinQueryLen {
		return Request{}, ErrQueryTooShort
	}
	if queryLen > n.cfg.MaxQueryLen {
		return Request{}, newValidationError("Query must not be longer than %d characters.", n.cfg.MaxQueryLen)
	}
	return Request{Mode: ModeSearch, Query: query, Limit: n.clampLimit(raw.Limit), Identity: raw.Identity}, nil
}

func (n *Normalizer) clampLimit(raw string) int {
	val, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if raw == "" || err != nil || math.IsNaN(val) {
		return n.cfg.DefaultLimit
	}
	switch {
	case val < 1:
		return 1
	case val > float64(n.cfg.MaxLimit):
		return n.cfg.MaxLimit
	}
	return int(val)
}

func parseCoordinate(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	val, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}
