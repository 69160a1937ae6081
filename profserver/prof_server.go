/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver provides an optional HTTP server exposing pprof endpoints under /debug.
package profserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-geogate/httpserver/middleware"
	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/service"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ProfServer is an HTTP server serving pprof. It implements service.Unit.
type ProfServer struct {
	URL        string
	HTTPServer *http.Server
	Logger     log.FieldLogger

	done chan struct{}
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new profiling server.
func New(cfg *Config, logger log.FieldLogger) *ProfServer {
	router := chi.NewRouter()
	router.Use(middleware.RequestID(), middleware.Logging(logger))
	router.Mount("/debug", chimiddleware.Profiler())

	logger = logger.With(log.String("address", cfg.Address))
	return &ProfServer{
		URL:        "http://" + cfg.Address,
		HTTPServer: &http.Server{Addr: cfg.Address, Handler: router, ReadHeaderTimeout: readHeaderTimeout},
		Logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start serves until Stop is called. A listening failure is sent to fatalErr.
func (s *ProfServer) Start(fatalErr chan<- error) {
	defer close(s.done)
	s.Logger.Info("starting profiling server")
	if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Logger.Error("profiling server failed", log.Error(err))
		fatalErr <- err
		return
	}
	s.Logger.Info("profiling server closed")
}

// Stop shuts the server down. A graceful stop waits for active profiles to be written.
func (s *ProfServer) Stop(gracefully bool) error {
	if !gracefully {
		if err := s.HTTPServer.Close(); err != nil {
			return err
		}
		<-s.done
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("profiling server shutdown failed", log.Error(err))
		return err
	}
	<-s.done
	return nil
}
