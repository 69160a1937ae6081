/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package upstream

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Kind tags the outcome of a single upstream attempt.
type Kind int

// Outcome kinds.
const (
	KindSuccess Kind = iota
	KindRetryable
	KindPermanent
)

// String returns a human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryable:
		return "retryable"
	case KindPermanent:
		return "permanent"
	}
	return "unknown"
}

// Outcome is the classified result of one upstream attempt.
type Outcome struct {
	Kind Kind

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Data is the raw JSON payload, set only for KindSuccess.
	Data json.RawMessage

	// RetryAfter is the server-supplied wait hint, valid when HasRetryAfter is true.
	RetryAfter    time.Duration
	HasRetryAfter bool

	// Err describes the failure for non-success kinds.
	Err error
}

// Result is what the retry loop reports to its caller.
type Result struct {
	Data      json.RawMessage
	Status    int
	Retryable bool
	Attempts  int
	Err       error
}

// OK reports whether the call produced a payload.
func (r Result) OK() bool {
	return r.Err == nil
}

// parseRetryAfter reads the Retry-After header given either as delay-seconds or as an HTTP date.
// A date in the past yields a zero wait.
func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	val := h.Get("Retry-After")
	if val == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(val)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
