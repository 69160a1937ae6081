/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package buildinfo reports the version of the running gateway binary.
package buildinfo

import (
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const unknownVersion = "v0.0.0"

var (
	version     string
	versionOnce sync.Once
)

// Version returns the version of the main module the binary was built from.
// Binaries built from a working tree report "v0.0.0".
func Version() string {
	versionOnce.Do(func() {
		info, _ := debug.ReadBuildInfo()
		version = extractVersion(info)
	})
	return version
}

func extractVersion(info *debug.BuildInfo) string {
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return unknownVersion
	}
	return info.Main.Version
}

// NewPrometheusCollector creates a gauge that is always 1 and carries the version as a label.
func NewPrometheusCollector(namespace string) prometheus.Collector {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build information of the running gateway.",
		ConstLabels: prometheus.Labels{"version": Version()},
	})
	gauge.Set(1)
	return gauge
}
