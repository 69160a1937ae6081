/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/log/logtest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, string, time.Duration, time.Time) (Window, error) {
	return Window{}, errors.New("connection refused")
}

func (failingStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func newMemoryController(t *testing.T, clock *fakeClock, opts ControllerOpts) *Controller {
	t.Helper()
	store, err := NewMemoryStoreWithOpts(MemoryStoreOpts{MaxKeys: 100, Now: clock.Now})
	require.NoError(t, err)
	opts.Now = clock.Now
	return NewControllerWithOpts(store, opts)
}

func TestController_Check_FixedWindow(t *testing.T) {
	const limit = 10
	const window = 60 * time.Second

	clock := newFakeClock()
	ctrl := newMemoryController(t, clock, ControllerOpts{})
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		decision, err := ctrl.Check(ctx, "user-1", "geocode", limit, window)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d must be allowed", i+1)
		require.Zero(t, decision.RetryAfterSeconds)
		clock.Advance(time.Second)
	}

	decision, err := ctrl.Check(ctx, "user-1", "geocode", limit, window)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 50, decision.RetryAfterSeconds) // Window started 10s ago.

	// Another identity and another action have their own windows.
	decision, err = ctrl.Check(ctx, "user-2", "geocode", limit, window)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	decision, err = ctrl.Check(ctx, "user-1", "other", limit, window)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	clock.Advance(window - 10*time.Second)
	decision, err = ctrl.Check(ctx, "user-1", "geocode", limit, window)
	require.NoError(t, err)
	require.True(t, decision.Allowed, "request after window elapsed must be allowed")
}

func TestController_Check_RetryAfterRounding(t *testing.T) {
	clock := newFakeClock()
	ctrl := newMemoryController(t, clock, ControllerOpts{})
	ctx := context.Background()

	_, err := ctrl.Check(ctx, "user", "geocode", 1, 2*time.Second)
	require.NoError(t, err)

	clock.Advance(1500 * time.Millisecond)
	decision, err := ctrl.Check(ctx, "user", "geocode", 1, 2*time.Second)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 1, decision.RetryAfterSeconds)

	clock.Advance(499 * time.Millisecond)
	decision, err = ctrl.Check(ctx, "user", "geocode", 1, 2*time.Second)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 1, decision.RetryAfterSeconds)
}

func TestController_Check_FailOpen(t *testing.T) {
	logger := logtest.NewRecorder()
	metrics := NewPrometheusMetrics("test")
	ctrl := NewControllerWithOpts(failingStore{}, ControllerOpts{Logger: logger, MetricsCollector: metrics})

	decision, err := ctrl.Check(context.Background(), "user", "geocode", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	entry, found := logger.FindEntry("quota store failed, request is admitted")
	require.True(t, found)
	require.Equal(t, log.LevelWarn, entry.Level)
	require.Equal(t, float64(1), promtestutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("geocode", DecisionFailOpen)))
	require.Error(t, ctrl.Ping(context.Background()))
}

func TestController_Check_InvalidArgs(t *testing.T) {
	ctrl := newMemoryController(t, newFakeClock(), ControllerOpts{})
	_, err := ctrl.Check(context.Background(), "user", "geocode", 0, time.Minute)
	require.Error(t, err)
	_, err = ctrl.Check(context.Background(), "user", "geocode", 1, 0)
	require.Error(t, err)
}

func TestController_Metrics(t *testing.T) {
	metrics := NewPrometheusMetrics("test")
	ctrl := newMemoryController(t, newFakeClock(), ControllerOpts{MetricsCollector: metrics})

	for i := 0; i < 3; i++ {
		_, err := ctrl.Check(context.Background(), "user", "geocode", 2, time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, float64(2), promtestutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("geocode", DecisionAllowed)))
	require.Equal(t, float64(1), promtestutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("geocode", DecisionDenied)))
}
