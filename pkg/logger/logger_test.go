package logger

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
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	lg := Configure(&buf, "warn", "json")

	lg.Info("dropped")
	lg.Warn("kept", "transaction_id", "tx-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "tx-1", entry["transaction_id"])
	assert.Same(t, lg, LoggerWrapper())
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "info", "text")

	ctx := With(context.Background(), "trace_id", "abc")
	From(ctx).Info("request")

	assert.Contains(t, buf.String(), "trace_id=abc")
	assert.Same(t, LoggerWrapper(), From(context.Background()))
}
