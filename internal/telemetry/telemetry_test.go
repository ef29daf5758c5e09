package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerRunIDAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "run-1")

	log.Info("hidden")
	log.Warn("shown", "path", "/tmp/a.log")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "run_id=run-1")
	assert.Contains(t, out, "path=/tmp/a.log")
}

func TestNewLoggerRedacts(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "debug", "r")

	log.Debug("request",
		"credential", "sk-123",
		"api_token", "tok",
		"header", "Authorization: Bearer sk-456",
		"model", "qwen",
	)

	out := buf.String()
	assert.NotContains(t, out, "sk-123")
	assert.Contains(t, out, "api_token="+redacted)
	assert.NotContains(t, out, "sk-456")
	assert.Contains(t, out, "model=qwen")
	assert.Contains(t, out, "credential="+redacted)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	} {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewRunID(t *testing.T) {
	id, err := uuid.Parse(NewRunID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestInitTracingNoop(t *testing.T) {
	tr, err := InitTracing(context.Background(), "", "r", "dev")
	require.NoError(t, err)
	_, span := tr.Tracer.Start(context.Background(), "x")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestInitTracingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	tr, err := InitTracing(context.Background(), path, "run-7", "dev")
	require.NoError(t, err)

	_, span := tr.Tracer.Start(context.Background(), "dispatch.task")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, tr.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dispatch.task")
	assert.Contains(t, string(data), "run-7")
}

func TestInitTracingBadPath(t *testing.T) {
	_, err := InitTracing(context.Background(), filepath.Join(t.TempDir(), "missing", "trace.json"), "r", "dev")
	assert.Error(t, err)
}
