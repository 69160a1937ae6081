/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

const contentTypeAppJSON = "application/json"

// ErrorResponse mirrors the JSON error body returned by the gateway.
type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Retryable  *bool  `json:"retryable,omitempty"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// RequireErrorInRecorder asserts that httptest.ResponseRecorder contains an error with the given status and message,
// and returns the decoded body for further checks.
func RequireErrorInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErr string) ErrorResponse {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return requireErrorInResponse(t, resp.Code, resp.Header(), resp.Body, wantHTTPCode, wantErr)
}

// RequireErrorInResponse asserts that http.Response contains an error with the given status and message,
// and returns the decoded body for further checks.
func RequireErrorInResponse(t require.TestingT, resp *http.Response, wantHTTPCode int, wantErr string) ErrorResponse {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return requireErrorInResponse(t, resp.StatusCode, resp.Header, resp.Body, wantHTTPCode, wantErr)
}

func requireErrorInResponse(
	t require.TestingT, code int, header http.Header, body io.Reader, wantHTTPCode int, wantErr string,
) ErrorResponse {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, code)
	require.Equal(t, contentTypeAppJSON, header.Get("Content-Type"))
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&errResp))
	require.Equal(t, wantErr, errResp.Error)
	return errResp
}

// RequireJSONInRecorder asserts that httptest.ResponseRecorder contains the data in JSON format.
func RequireJSONInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, want, dest interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, contentTypeAppJSON, resp.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), dest))
	require.Equal(t, want, dest)
}

// RequireStringJSONInRecorder asserts that httptest.ResponseRecorder contains exactly the JSON string.
func RequireStringJSONInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, want string) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, contentTypeAppJSON, resp.Header().Get("Content-Type"))
	require.Equal(t, want, resp.Body.String())
}
