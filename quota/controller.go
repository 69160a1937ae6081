/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/acronis/go-geogate/log"
)

// Window is a counter state of a single (identity, action) pair.
type Window struct {
	Identity    string
	Action      string
	Count       int64
	WindowStart time.Time
}

// Store keeps quota windows.
type Store interface {
	// Increment increments the counter of the (identity, action) window and returns its state after the increment.
	// The window is reset to zero before incrementing when at least windowSize has elapsed since its start.
	Increment(ctx context.Context, identity, action string, windowSize time.Duration, now time.Time) (Window, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Decision is a result of the admission check.
type Decision struct {
	Allowed bool

	// RetryAfterSeconds is the time until the window resets, rounded up to whole seconds.
	// Set only when Allowed is false.
	RetryAfterSeconds int
}

// ControllerOpts represents options for the Controller.
type ControllerOpts struct {
	Logger           log.FieldLogger
	MetricsCollector MetricsCollector
	Now              func() time.Time
}

// Controller decides whether a caller may proceed.
type Controller struct {
	store   Store
	logger  log.FieldLogger
	metrics MetricsCollector
	now     func() time.Time
}

// NewController creates a new Controller on top of the given store.
func NewController(store Store) *Controller {
	return NewControllerWithOpts(store, ControllerOpts{})
}

// NewControllerWithOpts creates a new Controller with the given options.
func NewControllerWithOpts(store Store, opts ControllerOpts) *Controller {
	c := &Controller{store: store, logger: opts.Logger, metrics: opts.MetricsCollector, now: opts.Now}
	if c.logger == nil {
		c.logger = log.NewDisabledLogger()
	}
	if c.metrics == nil {
		c.metrics = disabledMetrics{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Check counts the request of identity for action and decides whether it fits into limit requests per window.
// The controller fails open: if the store is unavailable, the request is allowed and the failure is logged.
// An error is returned only for an invalid limit or window.
func (c *Controller) Check(ctx context.Context, identity, action string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, fmt.Errorf("invalid quota: limit=%d, window=%s", limit, window)
	}

	now := c.now()
	w, err := c.store.Increment(ctx, identity, action, window, now)
	if err != nil {
		c.logger.Warn("quota store failed, request is admitted",
			log.String("identity", identity), log.String("action", action), log.Error(err))
		c.metrics.IncDecisions(action, DecisionFailOpen)
		return Decision{Allowed: true}, nil
	}

	if w.Count <= int64(limit) {
		c.metrics.IncDecisions(action, DecisionAllowed)
		return Decision{Allowed: true}, nil
	}

	c.metrics.IncDecisions(action, DecisionDenied)
	return Decision{Allowed: false, RetryAfterSeconds: retryAfterSeconds(w.WindowStart.Add(window).Sub(now))}, nil
}

// Ping checks that the underlying store is reachable.
func (c *Controller) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func retryAfterSeconds(untilReset time.Duration) int {
	secs := int(math.Ceil(untilReset.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
