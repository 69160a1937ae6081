/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/log"
)

func TestRequestIDHandler_ServeHTTP(t *testing.T) {
	var gotRequestID, gotInternalRequestID string
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotRequestID = GetRequestIDFromContext(r.Context())
		gotInternalRequestID = GetInternalRequestIDFromContext(r.Context())
	})

	t.Run("generate both ids", func(t *testing.T) {
		h := RequestIDWithOpts(RequestIDOpts{
			GenerateID:         func() string { return "ext-id" },
			GenerateInternalID: func() string { return "int-id" },
		})(next)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, "ext-id", gotRequestID)
		require.Equal(t, "int-id", gotInternalRequestID)
		require.Equal(t, "ext-id", resp.Header().Get(headerRequestID))
		require.Equal(t, "int-id", resp.Header().Get(headerInternalRequestID))
	})

	t.Run("keep incoming request id", func(t *testing.T) {
		h := RequestID()(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(headerRequestID, "incoming")
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)

		require.Equal(t, "incoming", gotRequestID)
		require.Equal(t, "incoming", resp.Header().Get(headerRequestID))
		require.NotEmpty(t, gotInternalRequestID)
		require.NotEqual(t, "incoming", gotInternalRequestID)
	})

	t.Run("replace unacceptable request id", func(t *testing.T) {
		h := RequestIDWithOpts(RequestIDOpts{
			GenerateID: func() string { return "generated" },
			MaxLength:  8,
		})(next)
		for _, incoming := range []string{"123456789", "with space", "tab\tid", "привет"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(headerRequestID, incoming)
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)

			require.Equal(t, "generated", gotRequestID, "incoming %q", incoming)
			require.Equal(t, "generated", resp.Header().Get(headerRequestID))
		}
	})
}

func TestCopyRequestScope(t *testing.T) {
	logger := log.NewDisabledLogger()
	src := NewContextWithRequestID(context.Background(), "req-1")
	src = NewContextWithInternalRequestID(src, "int-1")
	src = NewContextWithLogger(src, logger)
	src = NewContextWithRequestStartTime(src, time.Now())
	src, cancel := context.WithCancel(src)
	cancel()

	dst := CopyRequestScope(context.Background(), src)
	require.NoError(t, dst.Err())
	require.Equal(t, "req-1", GetRequestIDFromContext(dst))
	require.Equal(t, "int-1", GetInternalRequestIDFromContext(dst))
	require.Same(t, logger, GetLoggerFromContext(dst))
	require.True(t, GetRequestStartTimeFromContext(dst).IsZero())

	empty := CopyRequestScope(context.Background(), context.Background())
	require.Empty(t, GetRequestIDFromContext(empty))
	require.Nil(t, GetLoggerFromContext(empty))
}
