package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestZapAdapter_RespectsLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Info("route resolved", String("domain", "example.com"))
	assert.Empty(t, buf.String())

	logger.Warn("store degraded", String("store", "redis"))
	assert.Contains(t, buf.String(), "store degraded")
	assert.Contains(t, buf.String(), "redis")
}

func TestZapAdapter_ErrorIncludesCause(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	logger.Error("lookup failed", errors.New("connection refused"), String("switch", "main"))

	out := buf.String()
	assert.Contains(t, out, "lookup failed")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "main")
}

func TestZapAdapter_WithFieldsAndContext(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.WithFields(String("component", "router")).WithContext(ctx).Info("handled")

	out := buf.String()
	assert.Contains(t, out, "router")
	assert.Contains(t, out, "req-42")
}

func TestZapAdapter_WithContextWithoutRequestID(t *testing.T) {
	logger, _ := newBufferLogger(t, DebugLevel)
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestSetGlobalLogger(t *testing.T) {
	previous := GetGlobalLogger()
	defer SetGlobalLogger(previous)

	logger, buf := newBufferLogger(t, DebugLevel)
	SetGlobalLogger(logger)

	Component("cache").Info("evicted")
	assert.Contains(t, buf.String(), "cache")
	assert.Contains(t, buf.String(), "evicted")
}
