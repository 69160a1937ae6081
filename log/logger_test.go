/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	logger, closeFunc := NewLoggerWithOpts(cfg, LoggerOpts{Writer: &buf, Fields: []Field{String("service", "geogate")}})

	logger.Debug("skipped")
	logger.With(String("identity", "user-1")).Info("quota exceeded", Int("limit", 10))
	closeFunc()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "quota exceeded", entry["msg"])
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "user-1", entry["identity"])
	require.EqualValues(t, 10, entry["limit"])
	require.Equal(t, "geogate", entry["service"])
	require.EqualValues(t, os.Getpid(), entry["pid"])
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Format = FormatText
	cfg.NoColor = true
	cfg.Level = LevelDebug
	logger, closeFunc := NewLoggerWithOpts(cfg, LoggerOpts{Writer: &buf})

	logger.Debugf("queue length %d", 2)
	logger.Warnf("upstream returned %d", 503)
	closeFunc()

	require.Contains(t, buf.String(), "queue length 2")
	require.Contains(t, buf.String(), "upstream returned 503")
}

func TestLoggerToFile(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputFile
	cfg.File.Path = t.TempDir() + "/geogate-{{pid}}.log"

	logger, closeFunc := NewLogger(cfg)
	logger.Error("upstream failed", Error(os.ErrDeadlineExceeded))
	closeFunc()

	data, err := os.ReadFile(resolvePlaceholders(cfg.File.Path))
	require.NoError(t, err)
	require.Contains(t, string(data), "upstream failed")
	require.Contains(t, string(data), `"pid":`+strconv.Itoa(os.Getpid()))
}

func TestDurationIn(t *testing.T) {
	f := DurationIn(1500*time.Millisecond, time.Millisecond)
	require.Equal(t, "duration", f.Key)
	require.EqualValues(t, 1500, f.Int)
}

func TestDisabledLogger(t *testing.T) {
	logger := NewDisabledLogger()
	require.NotPanics(t, func() {
		logger.With(String("k", "v")).Error("nothing")
	})
}
