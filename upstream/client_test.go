/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package upstream

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string, mutate func(cfg *Config)) *Client {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.BaseURL = serverURL
	if mutate != nil {
		mutate(cfg)
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestClient_Do_Classification(t *testing.T) {
	tests := []struct {
		name              string
		status            int
		body              string
		retryAfter        string
		wantKind          Kind
		wantStatus        int
		wantRetryAfter    time.Duration
		wantHasRetryAfter bool
	}{
		{name: "success", status: http.StatusOK, body: `[{"lat":"48.85"}]`, wantKind: KindSuccess, wantStatus: 200},
		{name: "too many requests", status: http.StatusTooManyRequests, wantKind: KindRetryable, wantStatus: 429},
		{
			name: "service unavailable with retry-after", status: http.StatusServiceUnavailable, retryAfter: "7",
			wantKind: KindRetryable, wantStatus: 503, wantRetryAfter: 7 * time.Second, wantHasRetryAfter: true,
		},
		{name: "bad request", status: http.StatusBadRequest, wantKind: KindPermanent, wantStatus: 400},
		{name: "internal server error", status: http.StatusInternalServerError, wantKind: KindPermanent, wantStatus: 500},
		{name: "not JSON", status: http.StatusOK, body: "<html>", wantKind: KindPermanent, wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					rw.Header().Set("Retry-After", tt.retryAfter)
				}
				rw.WriteHeader(tt.status)
				_, _ = rw.Write([]byte(tt.body))
			}))
			defer server.Close()

			outcome := newTestClient(t, server.URL, nil).Do(context.Background(), "search", nil)
			require.Equal(t, tt.wantKind, outcome.Kind, outcome.Err)
			require.Equal(t, tt.wantStatus, outcome.Status)
			require.Equal(t, tt.wantHasRetryAfter, outcome.HasRetryAfter)
			require.Equal(t, tt.wantRetryAfter, outcome.RetryAfter)
			if tt.wantKind == KindSuccess {
				require.NoError(t, outcome.Err)
				require.JSONEq(t, tt.body, string(outcome.Data))
			} else {
				require.Error(t, outcome.Err)
				require.Nil(t, outcome.Data)
			}
		})
	}
}

func TestClient_Do_Request(t *testing.T) {
	var gotPath, gotFormat, gotQuery, gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("format")
		gotQuery = r.URL.Query().Get("q")
		gotUserAgent = r.Header.Get("User-Agent")
		_ = json.NewEncoder(rw).Encode([]string{})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/", func(cfg *Config) { cfg.UserAgent = "geogate-test/2.0" })
	outcome := client.Do(context.Background(), "search", map[string][]string{"q": {"paris"}})
	require.Equal(t, KindSuccess, outcome.Kind)
	require.Equal(t, "/search", gotPath)
	require.Equal(t, "json", gotFormat)
	require.Equal(t, "paris", gotQuery)
	require.Equal(t, "geogate-test/2.0", gotUserAgent)
}

func TestClient_Do_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	ctx := context.Background()
	outcome := client.Do(ctx, "search", nil)
	require.Equal(t, KindRetryable, outcome.Kind)
	require.Equal(t, 0, outcome.Status)
	require.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
	require.NoError(t, ctx.Err())
}

func TestClient_Do_NetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serverURL := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	outcome := newTestClient(t, serverURL, nil).Do(context.Background(), "reverse", nil)
	require.Equal(t, KindRetryable, outcome.Kind)
	require.Equal(t, 0, outcome.Status)
	require.Error(t, outcome.Err)
}

func TestClient_Do_ResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(`["0123456789abcdef"]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *Config) { cfg.MaxResponseSize = 8 })
	outcome := client.Do(context.Background(), "search", nil)
	require.Equal(t, KindPermanent, outcome.Kind)
	require.Equal(t, http.StatusBadGateway, outcome.Status)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{name: "absent", value: ""},
		{name: "seconds", value: "120", want: 2 * time.Minute, wantOK: true},
		{name: "zero", value: "0", want: 0, wantOK: true},
		{name: "negative", value: "-1"},
		{name: "http date", value: now.Add(30 * time.Second).Format(http.TimeFormat), want: 30 * time.Second, wantOK: true},
		{name: "http date in the past", value: now.Add(-time.Minute).Format(http.TimeFormat), want: 0, wantOK: true},
		{name: "garbage", value: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			got, ok := parseRetryAfter(h, now)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
