/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-geogate/log/logtest"
	"github.com/acronis/go-geogate/restapi"
	"github.com/acronis/go-geogate/testutil"
)

func TestRecoveryHandler_ServeHTTP(t *testing.T) {
	t.Run("respond with internal error", func(t *testing.T) {
		logger := logtest.NewRecorder()
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
		h := Recovery()(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)

		errResp := testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, restapi.ErrMessageInternal)
		require.NotNil(t, errResp.Retryable)
		require.False(t, *errResp.Retryable)

		entry, found := logger.FindEntry("Panic: boom")
		require.True(t, found)
		_, found = entry.FindField("stack")
		require.True(t, found)
	})

	t.Run("works without logger", func(t *testing.T) {
		h := RecoveryWithOpts(RecoveryOpts{})(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, restapi.ErrMessageInternal)
	})

	t.Run("abort handler panic is propagated", func(t *testing.T) {
		h := Recovery()(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		require.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}
