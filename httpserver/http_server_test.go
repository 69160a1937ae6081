/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/httpserver/middleware"
	"github.com/acronis/go-geogate/log/logtest"
	"github.com/acronis/go-geogate/restapi"
	"github.com/acronis/go-geogate/testutil"
)

func startTestServer(t *testing.T, cfg *Config, opts Opts) *HTTPServer {
	t.Helper()
	httpServer := New(cfg, logtest.NewRecorder(), opts)
	fatalErr := make(chan error, 1)
	go httpServer.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(cfg.Address, time.Second*3))
	t.Cleanup(func() {
		require.NoError(t, httpServer.Stop(false))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	})
	return httpServer
}

func TestHTTPServer_Start_WithAPI(t *testing.T) {
	apiRoutes := map[APIVersion]APIRoute{
		1: func(router chi.Router) {
			router.Get("/hello", func(rw http.ResponseWriter, r *http.Request) {
				restapi.RespondJSON(rw, map[string]string{"message": "hello from v1"}, middleware.GetLoggerFromContext(r.Context()))
			})
			router.Post("/panic", func(rw http.ResponseWriter, r *http.Request) {
				panic("PANIC!!!")
			})
		},
	}
	cfg := NewDefaultConfig()
	cfg.Address = testutil.GetLocalAddrWithFreeTCPPort()
	httpServer := startTestServer(t, cfg, Opts{ServiceNameInURL: "geocoding", APIRoutes: apiRoutes})

	resp, err := http.Get(httpServer.URL + "/api/geocoding/v1/hello")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"message":"hello from v1"}`, string(body))
	require.NoError(t, resp.Body.Close())

	resp, err = http.Post(httpServer.URL+"/api/geocoding/v1/panic", restapi.ContentTypeAppJSON, nil)
	require.NoError(t, err)
	testutil.RequireErrorInResponse(t, resp, http.StatusInternalServerError, restapi.ErrMessageInternal)
	require.NoError(t, resp.Body.Close())

	resp, err = http.Post(httpServer.URL+"/api/geocoding/v1/hello", restapi.ContentTypeAppJSON, nil)
	require.NoError(t, err)
	testutil.RequireErrorInResponse(t, resp, http.StatusMethodNotAllowed, restapi.ErrMessageMethodNotAllowed)
	require.NoError(t, resp.Body.Close())

	resp, err = http.Get(httpServer.URL + "/api/geocoding/v2/hello")
	require.NoError(t, err)
	testutil.RequireErrorInResponse(t, resp, http.StatusNotFound, restapi.ErrMessageNotFound)
	require.NoError(t, resp.Body.Close())

	require.Equal(t, 4, promtestutil.CollectAndCount(httpServer.metricsCollector.Durations))
}

func TestHTTPServer_SystemEndpoints(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Address = testutil.GetLocalAddrWithFreeTCPPort()
	httpServer := startTestServer(t, cfg, Opts{
		HealthCheck: func(_ context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{"dispatcher": HealthCheckStatusOK}, nil
		},
	})

	resp, err := http.Get(httpServer.URL + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, body)
	require.NoError(t, resp.Body.Close())

	resp, err = http.Get(httpServer.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok","components":{"dispatcher":true}}`, string(body))
	require.NoError(t, resp.Body.Close())

	_, portStr, err := net.SplitHostPort(cfg.Address)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(httpServer.URL, ":"+portStr))
	require.Eventually(t, func() bool { return httpServer.GetPort() > 0 }, time.Second, time.Millisecond*10)
}

func TestHTTPServer_RequestBodyLimit(t *testing.T) {
	apiRoutes := map[APIVersion]APIRoute{
		1: func(router chi.Router) {
			router.Post("/lookup", func(rw http.ResponseWriter, r *http.Request) {
				var dst map[string]interface{}
				logger := middleware.GetLoggerFromContext(r.Context())
				if err := restapi.DecodeRequestJSON(r, &dst); err != nil {
					restapi.RespondMalformedRequestOrInternalError(rw, err, logger)
					return
				}
				restapi.RespondJSON(rw, dst, logger)
			})
		},
	}
	cfg := NewDefaultConfig()
	cfg.Address = testutil.GetLocalAddrWithFreeTCPPort()
	cfg.Limits.MaxBodySizeBytes = 16
	httpServer := startTestServer(t, cfg, Opts{ServiceNameInURL: "geocoding", APIRoutes: apiRoutes})

	resp, err := http.Post(httpServer.URL+"/api/geocoding/v1/lookup", restapi.ContentTypeAppJSON,
		strings.NewReader(`{"query":"a very long query string"}`))
	require.NoError(t, err)
	testutil.RequireErrorInResponse(t, resp, http.StatusRequestEntityTooLarge, "Request body must not be larger than 16B.")
	require.NoError(t, resp.Body.Close())
}

func TestHTTPServer_Stop(t *testing.T) {
	apiRoutes := map[APIVersion]APIRoute{
		1: func(router chi.Router) {
			router.Get("/sleep", func(rw http.ResponseWriter, r *http.Request) {
				time.Sleep(time.Millisecond * 500) // Long operation.
				restapi.RespondJSON(rw, map[string]string{"message": "done"}, middleware.GetLoggerFromContext(r.Context()))
			})
		},
	}

	cfg := NewDefaultConfig()
	cfg.Address = testutil.GetLocalAddrWithFreeTCPPort()
	httpServer := New(cfg, logtest.NewRecorder(), Opts{ServiceNameInURL: "geocoding", APIRoutes: apiRoutes})
	fatalErr := make(chan error, 1)
	go httpServer.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(cfg.Address, time.Second*3))

	done := make(chan error, 1)
	go func() {
		c := http.Client{Timeout: time.Second * 5}
		resp, err := c.Get(httpServer.URL + "/api/geocoding/v1/sleep")
		if err == nil {
			if resp.StatusCode != http.StatusOK {
				err = io.ErrUnexpectedEOF
			}
			_ = resp.Body.Close()
		}
		done <- err
	}()

	time.Sleep(time.Millisecond * 200) // Give time to send request.

	require.NoError(t, httpServer.Stop(true))
	testutil.RequireNoErrorInChannel(t, fatalErr)
	require.NoError(t, <-done, "server should wait until all HTTP requests are served")
}

func TestHTTPServer_Stop_Without_Start(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Address = testutil.GetLocalAddrWithFreeTCPPort()
	require.NoError(t, New(cfg, logtest.NewRecorder(), Opts{}).Stop(true))
	require.NoError(t, New(cfg, logtest.NewRecorder(), Opts{}).Stop(false))
}
