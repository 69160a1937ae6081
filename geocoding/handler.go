/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package geocoding

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-geogate/httpserver/middleware"
	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/restapi"
)

// HeaderUserID carries the identity of an authenticated caller, set by an authenticating proxy.
const HeaderUserID = "X-User-ID"

const anonymousIdentityPrefix = "anon:"

// ResolveIdentity returns the identity the request is accounted under:
// the authenticated user when known, otherwise the origin address.
func ResolveIdentity(r *http.Request) string {
	if userID := strings.TrimSpace(r.Header.Get(HeaderUserID)); userID != "" {
		return userID
	}
	return anonymousIdentityPrefix + middleware.GetOriginAddr(r)
}

// Handler exposes the gateway over HTTP.
type Handler struct {
	gateway *Gateway
	logger  log.FieldLogger
}

// NewHandler creates a new Handler. The logger is used for requests without a logger in the context.
func NewHandler(gateway *Gateway, logger log.FieldLogger) *Handler {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &Handler{gateway: gateway, logger: logger}
}

// Routes registers the lookup endpoints.
func (h *Handler) Routes(router chi.Router) {
	router.Get("/search", h.Search)
	router.Get("/reverse", h.Reverse)
	router.Post("/lookup", h.Lookup)
}

// Search handles GET /search?q=...&limit=...
func (h *Handler) Search(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	h.respond(rw, r, h.gateway.Search(r.Context(), RawQuery{
		Query:    query.Get("q"),
		Limit:    query.Get("limit"),
		Identity: ResolveIdentity(r),
	}))
}

// Reverse handles GET /reverse?lat=...&lon=...
func (h *Handler) Reverse(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	h.respond(rw, r, h.gateway.Reverse(r.Context(), RawQuery{
		Lat:      query.Get("lat"),
		Lon:      query.Get("lon"),
		Identity: ResolveIdentity(r),
	}))
}

// LookupRequest is the body of POST /lookup. Numeric fields may be given as JSON numbers or strings.
type LookupRequest struct {
	Query string      `json:"query"`
	Limit looseString `json:"limit"`
	Lat   looseString `json:"lat"`
	Lon   looseString `json:"lon"`
}

// Lookup handles POST /lookup with either {query, limit} or {lat, lon}.
func (h *Handler) Lookup(rw http.ResponseWriter, r *http.Request) {
	var body LookupRequest
	if err := restapi.DecodeRequestJSON(r, &body); err != nil {
		restapi.RespondMalformedRequestOrInternalError(rw, err, h.requestLogger(r))
		return
	}
	h.respond(rw, r, h.gateway.Lookup(r.Context(), RawQuery{
		Query:    body.Query,
		Limit:    string(body.Limit),
		Lat:      string(body.Lat),
		Lon:      string(body.Lon),
		Identity: ResolveIdentity(r),
	}))
}

func (h *Handler) respond(rw http.ResponseWriter, r *http.Request, resp Response) {
	logger := h.requestLogger(r)
	if lp := middleware.GetLoggingParamsFromContext(r.Context()); lp != nil {
		cacheState := "miss"
		if resp.CacheHit {
			cacheState = "hit"
		}
		lp.ExtendFields(log.String("cache", cacheState))
	}
	if resp.Error != nil {
		restapi.RespondError(rw, resp.Status, resp.Error, logger)
		return
	}
	if resp.CacheControl != "" {
		rw.Header().Set("Cache-Control", resp.CacheControl)
	}
	restapi.RespondRaw(rw, resp.Status, resp.Body, logger)
}

func (h *Handler) requestLogger(r *http.Request) log.FieldLogger {
	if logger := middleware.GetLoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	return h.logger
}

// looseString accepts a JSON string or number and keeps its textual form.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) != 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}
