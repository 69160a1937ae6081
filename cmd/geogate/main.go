/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command geogate runs the geocoding gateway: an HTTP service that admits requests by per-identity quota,
// answers from a result cache and forwards misses to the geocoding provider one at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	golog "log"

	"github.com/acronis/go-geogate/internal/buildinfo"
	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/service"
)

const serviceName = "geogate"

func main() {
	if err := runApp(); err != nil {
		golog.Fatal(err)
	}
}

func runApp() error {
	configPath := flag.String("config", "", "path to the YAML or JSON configuration file")
	flag.Parse()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLoggerWithOpts(cfg.Log, log.LoggerOpts{
		Fields: []log.Field{log.String("service", serviceName), log.String("version", buildinfo.Version())},
	})
	defer loggerClose()

	logger.Info("starting gateway")

	app, err := NewApp(context.Background(), cfg, logger, AppOpts{})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			logger.Error("failed to release resources", log.Error(closeErr))
		}
	}()

	return service.New(logger, app.Unit).Start()
}
