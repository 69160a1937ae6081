/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-geogate/log"
)

// Doer performs one classified upstream attempt.
type Doer interface {
	Do(ctx context.Context, endpoint string, params url.Values) Outcome
}

// Client issues single attempts against the provider.
type Client struct {
	httpClient      *http.Client
	baseURL         *url.URL
	timeout         time.Duration
	maxResponseSize int64
	now             func() time.Time
}

var _ Doer = (*Client)(nil)

// ClientOpts provides options for NewClientWithOpts.
type ClientOpts struct {
	// Delegate is the innermost RoundTripper. A clone of http.DefaultTransport is used if nil.
	Delegate http.RoundTripper

	// Logger is used for requests without a logger in the context.
	Logger log.FieldLogger

	// LoggerProvider returns a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// MetricsCollector observes request durations. Metrics are disabled if nil.
	MetricsCollector MetricsCollector
}

// NewClient creates a new Client with default options.
func NewClient(cfg *Config) (*Client, error) {
	return NewClientWithOpts(cfg, ClientOpts{})
}

// NewClientWithOpts creates a new Client wrapping the transport with
// logging, metrics, user agent and request id round trippers.
func NewClientWithOpts(cfg *Config, opts ClientOpts) (*Client, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}

	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	delegate = NewLoggingRoundTripperWithOpts(delegate, LoggingRoundTripperOpts{
		LoggerProvider:       opts.LoggerProvider,
		Logger:               logger,
		Mode:                 cfg.Log.Mode,
		SlowRequestThreshold: cfg.Log.SlowRequestThreshold,
	})
	if opts.MetricsCollector != nil {
		delegate = NewMetricsRoundTripper(delegate, opts.MetricsCollector)
	}
	delegate = NewUserAgentRoundTripper(delegate, cfg.UserAgent)
	delegate = NewRequestIDRoundTripper(delegate)

	maxRespSize := int64(cfg.MaxResponseSize)
	if maxRespSize <= 0 {
		maxRespSize = DefaultMaxResponseSize
	}
	return &Client{
		httpClient:      &http.Client{Transport: delegate},
		baseURL:         baseURL,
		timeout:         cfg.Timeout,
		maxResponseSize: maxRespSize,
		now:             time.Now,
	}, nil
}

// Do issues one GET request to the endpoint under the per-attempt timeout and classifies the result.
// Cancelling the attempt does not affect ctx.
func (c *Client) Do(ctx context.Context, endpoint string, params url.Values) Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.buildURL(endpoint, params), nil)
	if err != nil {
		return Outcome{Kind: KindPermanent, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Outcome{Kind: KindRetryable, Err: fmt.Errorf("attempt timed out after %s: %w", c.timeout, err)}
		}
		return Outcome{Kind: KindRetryable, Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxResponseSize))
		retryAfter, hasRetryAfter := parseRetryAfter(resp.Header, c.now())
		return Outcome{
			Kind:          KindRetryable,
			Status:        resp.StatusCode,
			RetryAfter:    retryAfter,
			HasRetryAfter: hasRetryAfter,
			Err:           fmt.Errorf("provider responded with status %d", resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Outcome{
			Kind:   KindPermanent,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("provider responded with status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return Outcome{Kind: KindRetryable, Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}
	if int64(len(body)) > c.maxResponseSize {
		return Outcome{Kind: KindPermanent, Status: http.StatusBadGateway,
			Err: fmt.Errorf("provider response exceeds %d bytes", c.maxResponseSize)}
	}
	if !json.Valid(body) {
		return Outcome{Kind: KindPermanent, Status: http.StatusBadGateway, Err: fmt.Errorf("provider response is not valid JSON")}
	}
	return Outcome{Kind: KindSuccess, Status: resp.StatusCode, Data: json.RawMessage(body)}
}

func (c *Client) buildURL(endpoint string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	if q.Get("format") == "" {
		q.Set("format", "json")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
