/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type lookupBody struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func TestDecodeRequestJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		maxSize     uint64
		strict      bool
		wantStatus  int
		want        lookupBody
	}{
		{name: "ok", body: `{"query":"paris","limit":3}`, contentType: "application/json; charset=utf-8",
			want: lookupBody{Query: "paris", Limit: 3}},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{"query":`, wantStatus: http.StatusBadRequest},
		{name: "syntax error", body: `{"query" "x"}`, wantStatus: http.StatusBadRequest},
		{name: "wrong type", body: `{"limit":"many"}`, wantStatus: http.StatusBadRequest},
		{name: "two objects", body: `{"query":"a"}{"query":"b"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"q":"a"}`, strict: true, wantStatus: http.StatusBadRequest},
		{name: "unsupported content type", body: `query=a`, contentType: "application/x-www-form-urlencoded",
			wantStatus: http.StatusUnsupportedMediaType},
		{name: "too large", body: `{"query":"` + string(bytes.Repeat([]byte("a"), 64)) + `"}`, maxSize: 16,
			wantStatus: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/lookup", bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.maxSize > 0 {
				SetRequestMaxBodySize(httptest.NewRecorder(), req, tt.maxSize)
			}
			var got lookupBody
			err := DecodeRequestJSONStrict(req, &got, tt.strict)
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
				return
			}
			var reqErr *MalformedRequestError
			require.ErrorAs(t, err, &reqErr)
			require.Equal(t, tt.wantStatus, reqErr.HTTPStatusCode)
		})
	}
}
