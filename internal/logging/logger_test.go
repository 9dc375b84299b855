package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.name))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info("dropped")
	logger.Warn("label warning", slog.String("path", "tables.event"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "label warning", record["msg"])
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "tables.event", record["path"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "debug", Format: "text", Output: &buf})

	logger.WithRequestID("req-1").Debug("resolved store", slog.Int("tables", 3))

	out := buf.String()
	assert.Contains(t, out, "msg=\"resolved store\"")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "tables=3")
}

func TestMultiHandler(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	handler := newMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(handler).With("component", "test")

	assert.True(t, handler.Enabled(context.Background(), slog.LevelDebug))
	logger.Info("only debug handler")
	logger.Error("both handlers")

	assert.Contains(t, debugBuf.String(), "only debug handler")
	assert.Contains(t, debugBuf.String(), "both handlers")
	assert.NotContains(t, errorBuf.String(), "only debug handler")
	assert.Contains(t, errorBuf.String(), "both handlers")
	assert.Contains(t, errorBuf.String(), "component=test")
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx).Logger)
	assert.Empty(t, GetRequestID(ctx))

	logger := Discard()
	ctx = WithLogger(ctx, logger)
	ctx = WithRequestIDContext(ctx, "abc")
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "abc", GetRequestID(ctx))
}
