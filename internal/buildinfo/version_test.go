/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name string
		info *debug.BuildInfo
		want string
	}{
		{"tagged build", &debug.BuildInfo{Main: debug.Module{Path: "github.com/acronis/go-geogate", Version: "v1.2.3"}}, "v1.2.3"},
		{"development build", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, unknownVersion},
		{"empty version", &debug.BuildInfo{}, unknownVersion},
		{"no build info", nil, unknownVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractVersion(tt.info))
		})
	}
}

func TestNewPrometheusCollector(t *testing.T) {
	collector := NewPrometheusCollector("geogate")
	require.Equal(t, 1, testutil.CollectAndCount(collector, "geogate_build_info"))
	require.InDelta(t, 1.0, testutil.ToFloat64(collector), 0)
}
