/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/acronis/go-geogate/dispatch"
	"github.com/acronis/go-geogate/httpserver/middleware"
	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/quota"
	"github.com/acronis/go-geogate/restapi"
	"github.com/acronis/go-geogate/upstream"
)

// QuotaAction is the quota action all lookups are accounted under.
const QuotaAction = "geocode"

const logStackSize = 8192

var emptyList = json.RawMessage("[]")

var (
	errUpstreamTaskPanicked = errors.New("upstream task panicked")
	errDispatcherStopped    = errors.New("dispatcher is stopped")
)

// Admission decides whether a request of the identity is admitted.
type Admission interface {
	Check(ctx context.Context, identity, action string, limit int, window time.Duration) (quota.Decision, error)
}

// Upstream calls the provider, retrying transient failures.
type Upstream interface {
	Call(ctx context.Context, endpoint string, params url.Values) upstream.Result
}

// Dispatcher serializes provider calls.
type Dispatcher interface {
	Enqueue(run dispatch.Task[upstream.Result]) <-chan upstream.Result
}

// Deps are the components the gateway is assembled from.
type Deps struct {
	Admission  Admission
	Cache      *ResultCache
	Dispatcher Dispatcher
	Upstream   Upstream
}

// GatewayOpts represents options for Gateway.
type GatewayOpts struct {
	Logger log.FieldLogger

	// QuotaLimit and QuotaWindow are passed to the admission check. quota defaults are used if zero.
	QuotaLimit  int
	QuotaWindow time.Duration
}

// Response is the shaped outcome of a lookup: either a payload to pass through verbatim or an error.
type Response struct {
	Status       int
	Body         json.RawMessage
	Error        *restapi.Error
	CacheControl string
	CacheHit     bool
}

// Gateway owns all process-wide state of the lookup pipeline.
type Gateway struct {
	normalizer   *Normalizer
	admission    Admission
	cache        *ResultCache
	dispatcher   Dispatcher
	upstream     Upstream
	group        singleflight.Group
	logger       log.FieldLogger
	quotaLimit   int
	quotaWindow  time.Duration
	cacheControl string
}

// NewGateway creates a new Gateway.
func NewGateway(cfg *Config, deps Deps) (*Gateway, error) {
	return NewGatewayWithOpts(cfg, deps, GatewayOpts{})
}

// NewGatewayWithOpts creates a new Gateway with the provided options.
func NewGatewayWithOpts(cfg *Config, deps Deps, opts GatewayOpts) (*Gateway, error) {
	if deps.Admission == nil || deps.Cache == nil || deps.Dispatcher == nil || deps.Upstream == nil {
		return nil, fmt.Errorf("admission, cache, dispatcher and upstream must be set")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.QuotaLimit == 0 {
		opts.QuotaLimit = quota.DefaultLimit
	}
	if opts.QuotaWindow == 0 {
		opts.QuotaWindow = quota.DefaultWindow
	}
	return &Gateway{
		normalizer:   NewNormalizer(cfg),
		admission:    deps.Admission,
		cache:        deps.Cache,
		dispatcher:   deps.Dispatcher,
		upstream:     deps.Upstream,
		logger:       opts.Logger,
		quotaLimit:   opts.QuotaLimit,
		quotaWindow:  opts.QuotaWindow,
		cacheControl: "public, max-age=" + strconv.Itoa(int(cfg.ClientCacheMaxAge/time.Second)),
	}, nil
}

// NewUpstreamDispatcher creates a dispatcher whose panicking and dropped tasks produce results
// the gateway recognizes as an internal fault and a transient failure respectively.
func NewUpstreamDispatcher(minInterval time.Duration, logger log.FieldLogger, metrics dispatch.MetricsCollector) *dispatch.Dispatcher[upstream.Result] {
	return dispatch.NewWithOpts(dispatch.Opts[upstream.Result]{
		MinInterval: minInterval,
		PanicResult: func(interface{}) upstream.Result {
			return upstream.Result{Status: http.StatusInternalServerError, Err: errUpstreamTaskPanicked}
		},
		StoppedResult: func() upstream.Result {
			return upstream.Result{Status: http.StatusServiceUnavailable, Retryable: true, Err: errDispatcherStopped}
		},
		Logger:           logger,
		MetricsCollector: metrics,
	})
}

// Search performs a forward search. Coordinates in raw are ignored.
func (g *Gateway) Search(ctx context.Context, raw RawQuery) Response {
	raw.Lat, raw.Lon = "", ""
	return g.Lookup(ctx, raw)
}

// Reverse performs a reverse lookup. Both coordinates must be numeric.
func (g *Gateway) Reverse(ctx context.Context, raw RawQuery) (resp Response) {
	defer g.recoverPanic(&resp)
	req, err := g.normalizer.Normalize(RawQuery{Lat: raw.Lat, Lon: raw.Lon, Identity: raw.Identity})
	if err == nil && req.Mode != ModeReverse {
		err = newValidationError("Both lat and lon must be numeric.")
	} else if errors.Is(err, ErrQueryTooShort) {
		err = newValidationError("Both lat and lon must be numeric.")
	}
	if err != nil {
		return g.errorResponse(err)
	}
	return g.lookup(ctx, req)
}

// Lookup normalizes raw input and performs either a forward search or a reverse lookup.
// It never panics: an unexpected fault is shaped into an internal error.
func (g *Gateway) Lookup(ctx context.Context, raw RawQuery) (resp Response) {
	defer g.recoverPanic(&resp)
	req, err := g.normalizer.Normalize(raw)
	if err != nil {
		if errors.Is(err, ErrQueryTooShort) {
			return g.successResponse(emptyList, false)
		}
		return g.errorResponse(err)
	}
	return g.lookup(ctx, req)
}

func (g *Gateway) lookup(ctx context.Context, req Request) Response {
	decision, err := g.admission.Check(ctx, req.Identity, QuotaAction, g.quotaLimit, g.quotaWindow)
	if err != nil {
		return g.errorResponse(fmt.Errorf("check quota: %w", err))
	}
	if !decision.Allowed {
		return g.errorResponse(&QuotaExceededError{RetryAfterSeconds: decision.RetryAfterSeconds})
	}

	key := CacheKey(req)
	if data, ok := g.cache.Get(key); ok {
		return g.successResponse(data, true)
	}
	data, err := g.fetch(ctx, key, req)
	if err != nil {
		return g.errorResponse(err)
	}
	return g.successResponse(data, false)
}

// fetch calls the provider through the dispatcher. Identical concurrent misses share one call.
// The payload is cached by the dispatched task itself, so it is kept even if the caller gives up waiting.
func (g *Gateway) fetch(ctx context.Context, key string, req Request) (json.RawMessage, error) {
	resCh := g.group.DoChan(key, func() (interface{}, error) {
		res := <-g.dispatcher.Enqueue(func(taskCtx context.Context) upstream.Result {
			// The task outlives the request, so only its identification is carried over.
			taskCtx = middleware.CopyRequestScope(taskCtx, ctx)
			if data, ok := g.cache.Get(key); ok {
				return upstream.Result{Data: data, Status: http.StatusOK}
			}
			res := g.upstream.Call(taskCtx, req.Mode.String(), upstreamParams(req))
			if res.OK() {
				g.cache.Set(key, res.Data)
			}
			return res
		})
		if res.OK() {
			return res.Data, nil
		}
		if errors.Is(res.Err, errUpstreamTaskPanicked) {
			return nil, res.Err
		}
		return nil, &UpstreamError{Status: res.Status, Retryable: res.Retryable, Err: res.Err}
	})

	select {
	case res := <-resCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	case <-ctx.Done():
		return nil, &UpstreamError{Retryable: true, Err: ctx.Err()}
	}
}

func upstreamParams(req Request) url.Values {
	params := url.Values{}
	if req.Mode == ModeReverse {
		params.Set("lat", req.Lat)
		params.Set("lon", req.Lon)
		return params
	}
	params.Set("q", req.Query)
	params.Set("limit", strconv.Itoa(req.Limit))
	return params
}

func (g *Gateway) successResponse(data json.RawMessage, cacheHit bool) Response {
	return Response{Status: http.StatusOK, Body: data, CacheControl: g.cacheControl, CacheHit: cacheHit}
}

func (g *Gateway) errorResponse(err error) Response {
	status, apiErr := FormatError(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("lookup failed with internal error", log.Error(err))
	}
	return Response{Status: status, Error: apiErr}
}

func (g *Gateway) recoverPanic(resp *Response) {
	if p := recover(); p != nil {
		stack := make([]byte, logStackSize)
		stack = stack[:runtime.Stack(stack, false)]
		g.logger.Error(fmt.Sprintf("lookup panic: %+v", p), log.Bytes("stack", stack))
		*resp = Response{Status: http.StatusInternalServerError, Error: restapi.NewInternalError()}
	}
}

// Error messages.
var (
	ErrMessageValidation        = "Invalid request."
	ErrMessageQuotaExceeded     = "Too many requests."
	ErrMessageUpstreamTransient = "Geocoding provider is temporarily unavailable."
	ErrMessageUpstreamPermanent = "Geocoding provider rejected the request."
)

// FormatError maps an error of the lookup pipeline to the HTTP status and the outward error shape.
// Errors outside of the taxonomy are reported as a generic internal error without details.
func FormatError(err error) (int, *restapi.Error) {
	var validationErr *ValidationError
	var quotaErr *QuotaExceededError
	var upstreamErr *UpstreamError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, restapi.NewError(restapi.ErrCodeValidation, ErrMessageValidation).
			WithDetails(validationErr.Message).WithRetryable(false)

	case errors.As(err, &quotaErr):
		return http.StatusTooManyRequests, restapi.NewError(restapi.ErrCodeQuotaExceeded, ErrMessageQuotaExceeded).
			WithRetryable(true).WithRetryAfter(quotaErr.RetryAfterSeconds)

	case errors.As(err, &upstreamErr):
		if upstreamErr.Retryable {
			return http.StatusServiceUnavailable,
				restapi.NewError(restapi.ErrCodeUpstreamTransient, ErrMessageUpstreamTransient).
					WithDetails(upstreamDetails(upstreamErr.Status)).WithRetryable(true)
		}
		return http.StatusBadGateway,
			restapi.NewError(restapi.ErrCodeUpstreamPermanent, ErrMessageUpstreamPermanent).
				WithDetails(upstreamDetails(upstreamErr.Status)).WithRetryable(false)
	}
	return http.StatusInternalServerError, restapi.NewInternalError()
}

func upstreamDetails(status int) string {
	if status == 0 {
		return "Provider did not respond."
	}
	return fmt.Sprintf("Provider responded with status %d.", status)
}
