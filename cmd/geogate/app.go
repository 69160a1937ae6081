/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-geogate/dispatch"
	"github.com/acronis/go-geogate/geocoding"
	"github.com/acronis/go-geogate/httpserver"
	"github.com/acronis/go-geogate/internal/buildinfo"
	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/lrucache"
	"github.com/acronis/go-geogate/profserver"
	"github.com/acronis/go-geogate/quota"
	"github.com/acronis/go-geogate/restapi"
	"github.com/acronis/go-geogate/retry"
	"github.com/acronis/go-geogate/service"
	"github.com/acronis/go-geogate/upstream"
)

const (
	serviceNameInURL        = "geocoding"
	defaultMetricsNamespace = "geogate"

	healthCheckTimeout         = time.Second
	dispatcherStopTimeout      = 30 * time.Second
	healthComponentDispatcher  = "dispatcher"
	healthComponentQuotaStore  = "quota_store"
	workerNameCacheCleanup     = "cache-cleanup"
	workerNameQuotaCleanup     = "quota-cleanup"
	metricsCacheNameResults    = "results"
	metricsCacheNameQuotaStore = "quota_windows"
)

// AppOpts provides options for NewApp.
type AppOpts struct {
	// MetricsNamespace prefixes all Prometheus metrics. "geogate" is used if empty.
	MetricsNamespace string

	// UpstreamTransport is the innermost transport of the provider client.
	UpstreamTransport http.RoundTripper

	// Listener is used by the HTTP server instead of listening on the configured address.
	Listener net.Listener
}

// App is the assembled gateway: all its long-living parts are combined in Unit.
type App struct {
	Unit       *service.CompositeUnit
	HTTPServer *httpserver.HTTPServer
	Gateway    *geocoding.Gateway

	closeQuotaStore func() error
}

// NewApp creates all gateway components from the configuration and wires them together.
// ctx bounds only the initialization (e.g. waiting for Redis).
func NewApp(ctx context.Context, cfg *AppConfig, logger log.FieldLogger, opts AppOpts) (*App, error) {
	if opts.MetricsNamespace == "" {
		opts.MetricsNamespace = defaultMetricsNamespace
	}
	metrics := newAppMetrics(opts.MetricsNamespace)

	resultCache, err := geocoding.NewResultCacheWithOpts(cfg.Cache, geocoding.ResultCacheOpts{MetricsCollector: metrics.results})
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	quotaStore, closeQuotaStore, err := quota.NewStoreFromConfig(ctx, cfg.Quota, logger, metrics.quotaWindows)
	if err != nil {
		return nil, fmt.Errorf("create quota store: %w", err)
	}
	admission := quota.NewControllerWithOpts(quotaStore, quota.ControllerOpts{Logger: logger, MetricsCollector: metrics.quota})

	client, err := upstream.NewClientWithOpts(cfg.API, upstream.ClientOpts{
		Delegate:         opts.UpstreamTransport,
		Logger:           logger,
		MetricsCollector: metrics.upstream,
	})
	if err != nil {
		_ = closeQuotaStore()
		return nil, fmt.Errorf("create upstream client: %w", err)
	}
	retrier := upstream.NewRetrierWithOpts(client, cfg.API.MaxRetries, upstream.RetrierOpts{
		BackoffPolicy: retry.NewExponentialBackoffPolicy(cfg.API.Backoff.InitialInterval, cfg.API.Backoff.MaxInterval, 0),
		Logger:        logger,
	})

	dispatcher := geocoding.NewUpstreamDispatcher(cfg.API.MinRequestInterval, logger, metrics.dispatch)

	gateway, err := geocoding.NewGatewayWithOpts(cfg.Geocoding, geocoding.Deps{
		Admission:  admission,
		Cache:      resultCache,
		Dispatcher: dispatcher,
		Upstream:   retrier,
	}, geocoding.GatewayOpts{Logger: logger, QuotaLimit: cfg.Quota.Limit, QuotaWindow: cfg.Quota.Window})
	if err != nil {
		_ = closeQuotaStore()
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	handler := geocoding.NewHandler(gateway, logger)
	httpServer := httpserver.New(cfg.Server, logger, httpserver.Opts{
		ServiceNameInURL:   serviceNameInURL,
		APIRoutes:          map[httpserver.APIVersion]httpserver.APIRoute{1: handler.Routes},
		HealthCheck:        newHealthCheck(dispatcher, admission),
		HTTPRequestMetrics: httpserver.HTTPRequestMetricsOpts{Namespace: opts.MetricsNamespace},
		Listener:           opts.Listener,
	})

	units := []service.Unit{
		httpServer,
		service.NewWorkerUnitWithOpts(service.WorkerFunc(dispatcher.Run), service.WorkerUnitOpts{
			MetricsRegisterer:   metrics,
			GracefulStopTimeout: dispatcherStopTimeout,
		}),
	}
	if cfg.Cache.CleanupInterval > 0 {
		cleanup := service.NewPeriodicWorkerWithOpts(service.WorkerFunc(resultCache.RunCleanup),
			cfg.Cache.CleanupInterval, logger, service.PeriodicWorkerOpts{
				Name:         workerNameCacheCleanup,
				InitialDelay: cfg.Cache.CleanupInterval,
			})
		units = append(units, service.NewWorkerUnit(cleanup))
	}
	if memStore, ok := quotaStore.(*quota.MemoryStore); ok && cfg.Quota.CleanupInterval > 0 {
		cleanupInterval := cfg.Quota.CleanupInterval
		quotaLogger := logger.With(log.String("worker", workerNameQuotaCleanup))
		units = append(units, service.NewWorkerUnit(service.WorkerFunc(func(ctx context.Context) error {
			quotaLogger.Info("quota windows cleanup started", log.Duration("interval", cleanupInterval))
			memStore.RunPeriodicCleanup(ctx, cleanupInterval)
			return nil
		})))
	}
	if cfg.ProfServer.Enabled {
		units = append(units, profserver.New(cfg.ProfServer, logger))
	}

	return &App{
		Unit:            service.NewCompositeUnit(units...),
		HTTPServer:      httpServer,
		Gateway:         gateway,
		closeQuotaStore: closeQuotaStore,
	}, nil
}

// Close releases resources that outlive the units (e.g. Redis connections).
func (a *App) Close() error {
	if err := a.closeQuotaStore(); err != nil {
		return fmt.Errorf("close quota store: %w", err)
	}
	return nil
}

type dispatcherState interface {
	IsRunning() bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newHealthCheck(dispatcher dispatcherState, quotaStore pinger) httpserver.HealthCheck {
	return func(ctx context.Context) (httpserver.HealthCheckResult, error) {
		result := httpserver.HealthCheckResult{
			healthComponentDispatcher: httpserver.HealthCheckStatusOK,
			healthComponentQuotaStore: httpserver.HealthCheckStatusOK,
		}
		if !dispatcher.IsRunning() {
			result[healthComponentDispatcher] = httpserver.HealthCheckStatusFail
		}
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := quotaStore.Ping(pingCtx); err != nil {
			result[healthComponentQuotaStore] = httpserver.HealthCheckStatusFail
		}
		return result, nil
	}
}

// appMetrics owns the collectors of all gateway components.
type appMetrics struct {
	namespace    string
	results      *lrucache.PrometheusMetrics
	quotaWindows *lrucache.PrometheusMetrics
	quota        *quota.PrometheusMetrics
	dispatch     *dispatch.PrometheusMetrics
	upstream     *upstream.PrometheusMetricsCollector
	buildInfo    prometheus.Collector
}

var _ service.MetricsRegisterer = (*appMetrics)(nil)

func newAppMetrics(namespace string) *appMetrics {
	return &appMetrics{
		namespace: namespace,
		results: lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
			Namespace: namespace, CacheName: metricsCacheNameResults,
		}),
		quotaWindows: lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
			Namespace: namespace, CacheName: metricsCacheNameQuotaStore,
		}),
		quota:     quota.NewPrometheusMetrics(namespace),
		dispatch:  dispatch.NewPrometheusMetricsWithOpts(dispatch.PrometheusMetricsOpts{Namespace: namespace}),
		upstream:  upstream.NewPrometheusMetricsCollector(namespace),
		buildInfo: buildinfo.NewPrometheusCollector(namespace),
	}
}

func (m *appMetrics) MustRegisterMetrics() {
	m.results.MustRegister()
	m.quotaWindows.MustRegister()
	m.quota.MustRegister()
	m.dispatch.MustRegister()
	m.upstream.MustRegister()
	prometheus.MustRegister(m.buildInfo)
	restapi.MustInitAndRegisterMetrics(m.namespace)
}

func (m *appMetrics) UnregisterMetrics() {
	m.results.Unregister()
	m.quotaWindows.Unregister()
	m.quota.Unregister()
	m.dispatch.Unregister()
	m.upstream.Unregister()
	prometheus.Unregister(m.buildInfo)
	restapi.UnregisterMetrics()
}
