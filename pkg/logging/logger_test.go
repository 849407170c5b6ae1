package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json", Component: "api"}, &buf)

	ctx := WithAccountID(WithRequestID(context.Background(), "req-1"), 42)
	l.WithContext(ctx).Info("hello")

	m := decodeLine(t, &buf)
	assert.Equal(t, "api", m["component"])
	assert.Equal(t, "req-1", m["request_id"])
	assert.EqualValues(t, 42, m["account_id"])
}

func TestTransitionLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json", Component: "associate"}, &buf)

	l.WithError(errors.New("boom")).WithDuration(1500*time.Millisecond).TransitionLog("associate", 7, "pending", "accepted")

	m := decodeLine(t, &buf)
	assert.Equal(t, "Status transition", m["msg"])
	assert.Equal(t, "7", m["id"])
	assert.Equal(t, "pending", m["from"])
	assert.Equal(t, "accepted", m["to"])
	assert.Equal(t, "boom", m["error"])
	assert.EqualValues(t, 1500, m["duration_ms"])
}

func TestHTTPRequestLogLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json"}, &buf)

	l.HTTPRequestLog("GET", "/health", 503, time.Millisecond, "127.0.0.1")
	m := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", m["level"])
	assert.EqualValues(t, 503, m["status"])
}

func TestDBQueryLogLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Format: "json", Level: "debug"}, &buf)

	l.DBQueryLog("list", "projects", time.Millisecond, nil)
	assert.Equal(t, "DEBUG", decodeLine(t, &buf)["level"])

	buf.Reset()
	l.DBQueryLog("update", "disputes", SlowQueryThreshold, nil)
	m := decodeLine(t, &buf)
	assert.Equal(t, "WARN", m["level"])
	assert.Equal(t, "DB query slow", m["msg"])
	assert.Equal(t, "disputes", m["table"])

	buf.Reset()
	l.DBQueryLog("insert", "accounts", time.Millisecond, errors.New("disk full"))
	m = decodeLine(t, &buf)
	assert.Equal(t, "ERROR", m["level"])
	assert.Equal(t, "disk full", m["error"])
}
