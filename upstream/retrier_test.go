/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/log/logtest"
	"github.com/acronis/go-geogate/retry"
)

const testBackoffInitial = 20 * time.Millisecond

func newTestRetrier(t *testing.T, serverURL string, maxAttempts int) (*Retrier, *logtest.Recorder) {
	t.Helper()
	logger := logtest.NewRecorder()
	return NewRetrierWithOpts(newTestClient(t, serverURL, nil), maxAttempts, RetrierOpts{
		BackoffPolicy: retry.NewExponentialBackoffPolicy(testBackoffInitial, 10*testBackoffInitial, 0),
		Logger:        logger,
	}), logger
}

func statusSequenceServer(statuses ...int) (*httptest.Server, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		status := statuses[len(statuses)-1]
		if n < len(statuses) {
			status = statuses[n]
		}
		rw.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = rw.Write([]byte(`[{"display_name":"Paris"}]`))
		}
	}))
	return server, &calls
}

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	server, calls := statusSequenceServer(http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK)
	defer server.Close()

	retrier, _ := newTestRetrier(t, server.URL, DefaultMaxRetries)
	start := time.Now()
	res := retrier.Call(context.Background(), "search", url.Values{"q": {"paris"}})
	elapsed := time.Since(start)

	require.True(t, res.OK(), res.Err)
	require.JSONEq(t, `[{"display_name":"Paris"}]`, string(res.Data))
	require.Equal(t, 3, res.Attempts)
	require.EqualValues(t, 3, atomic.LoadInt32(calls))
	// backoff(0) + backoff(1)
	require.GreaterOrEqual(t, elapsed, testBackoffInitial+2*testBackoffInitial)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	server, calls := statusSequenceServer(http.StatusServiceUnavailable)
	defer server.Close()

	retrier, logger := newTestRetrier(t, server.URL, DefaultMaxRetries)
	res := retrier.Call(context.Background(), "search", nil)

	require.False(t, res.OK())
	require.True(t, res.Retryable)
	require.Equal(t, http.StatusServiceUnavailable, res.Status)
	require.Equal(t, DefaultMaxRetries, res.Attempts)
	require.EqualValues(t, DefaultMaxRetries, atomic.LoadInt32(calls))

	_, found := logger.FindEntry("upstream attempts exhausted")
	require.True(t, found)
}

func TestRetrier_PermanentFailureIsNotRetried(t *testing.T) {
	server, calls := statusSequenceServer(http.StatusNotFound, http.StatusOK)
	defer server.Close()

	retrier, _ := newTestRetrier(t, server.URL, DefaultMaxRetries)
	res := retrier.Call(context.Background(), "search", nil)

	require.False(t, res.OK())
	require.False(t, res.Retryable)
	require.Equal(t, http.StatusNotFound, res.Status)
	require.Equal(t, 1, res.Attempts)
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestRetrier_HonorsRetryAfter(t *testing.T) {
	var calls int32
	var firstAt, secondAt time.Time
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			firstAt = time.Now()
			rw.Header().Set("Retry-After", "1")
			rw.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondAt = time.Now()
		_, _ = rw.Write([]byte(`{}`))
	}))
	defer server.Close()

	retrier, _ := newTestRetrier(t, server.URL, DefaultMaxRetries)
	res := retrier.Call(context.Background(), "reverse", nil)

	require.True(t, res.OK(), res.Err)
	require.Equal(t, 2, res.Attempts)
	require.GreaterOrEqual(t, secondAt.Sub(firstAt), time.Second)
}

type outcomeSequence struct {
	outcomes []Outcome
	calls    int
}

func (s *outcomeSequence) Do(_ context.Context, _ string, _ url.Values) Outcome {
	o := s.outcomes[s.calls]
	s.calls++
	return o
}

func TestRetrier_NetworkErrorsAreRetried(t *testing.T) {
	seq := &outcomeSequence{outcomes: []Outcome{
		{Kind: KindRetryable, Err: context.DeadlineExceeded},
		{Kind: KindSuccess, Status: 200, Data: []byte(`[]`)},
	}}
	retrier := NewRetrierWithOpts(seq, 3, RetrierOpts{BackoffPolicy: retry.NewConstantBackoffPolicy(time.Millisecond, 0)})

	res := retrier.Call(context.Background(), "search", nil)
	require.True(t, res.OK())
	require.Equal(t, 2, seq.calls)
}

func TestRetrier_ContextCancellationStopsWaiting(t *testing.T) {
	seq := &outcomeSequence{outcomes: []Outcome{
		{Kind: KindRetryable, Status: 503, RetryAfter: time.Hour, HasRetryAfter: true},
		{Kind: KindSuccess, Status: 200, Data: []byte(`[]`)},
	}}
	retrier := NewRetrier(seq, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := retrier.Call(ctx, "search", nil)
	require.False(t, res.OK())
	require.True(t, res.Retryable)
	require.Equal(t, 503, res.Status)
	require.Equal(t, 1, seq.calls)
}
