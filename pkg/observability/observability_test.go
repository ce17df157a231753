package observability

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

func TestNewLogger(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: "info", Format: LogFormatText, Output: &buf})

		logger.Info("reading served", "module", "dreams")

		assert.Contains(t, buf.String(), "reading served")
		assert.Contains(t, buf.String(), "module=dreams")
	})

	t.Run("json format carries context ids", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: "info", Format: LogFormatJSON, Output: &buf, Service: "augur"})

		ctx := WithCorrelationID(context.Background(), "corr-1")
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithSessionID(ctx, "sess-1")
		logger.InfoContext(ctx, "hello")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "augur", entry["service"])
		assert.Equal(t, "corr-1", entry[CorrelationIDKey])
		assert.Equal(t, "req-1", entry[RequestIDKey])
		assert.Equal(t, "sess-1", entry[SessionIDKey])
	})

	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: "warn", Output: &buf})

		logger.Info("dropped")
		logger.Warn("kept")

		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestLogConfigFor(t *testing.T) {
	assert.Equal(t, LogFormatJSON, LogConfigFor("production", "info").Format)
	assert.Equal(t, LogFormatText, LogConfigFor("development", "debug").Format)
}

func TestContextIDs(t *testing.T) {
	ctx := NewRequestContext(context.Background(), "")

	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.NotEmpty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, SessionIDFromContext(ctx))

	ctx = NewRequestContext(context.Background(), "given")
	assert.Equal(t, "given", CorrelationIDFromContext(ctx))
}

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Counter(MetricGenerationAttempts, 1, T("backend", "a"), T("module", "love"))
	m.Counter(MetricGenerationAttempts, 2, T("module", "love"), T("backend", "a"))
	m.Gauge("inflight", 4)
	m.Timing(MetricGenerationDuration, time.Second)

	assert.Equal(t, int64(3), m.GetCounter(MetricGenerationAttempts, T("backend", "a"), T("module", "love")))
	assert.Equal(t, int64(0), m.GetCounter(MetricGenerationAttempts))
	assert.Equal(t, 4.0, m.GetGauge("inflight"))
	assert.Len(t, m.GetTimings(MetricGenerationDuration), 1)

	var _ Metrics = NoopMetrics{}
	var _ Metrics = m
}

func TestHealthRegistry(t *testing.T) {
	t.Run("healthy when empty", func(t *testing.T) {
		r := NewHealthRegistry()
		assert.Equal(t, HealthStatusHealthy, r.Check(context.Background()).Status)
	})

	t.Run("optional failure degrades", func(t *testing.T) {
		r := NewHealthRegistry()
		r.Register("ledger", PingChecker("ledger", true, func(context.Context) error { return nil }))
		r.Register("rabbitmq", PingChecker("rabbitmq", false, func(context.Context) error { return errors.New("down") }))

		h := r.Check(context.Background())
		assert.Equal(t, HealthStatusDegraded, h.Status)
		assert.Equal(t, HealthStatusHealthy, h.Checks["ledger"].Status)
		assert.Contains(t, h.Checks["rabbitmq"].Message, "down")
	})

	t.Run("critical failure is unhealthy", func(t *testing.T) {
		r := NewHealthRegistry()
		r.Register("ledger", PingChecker("ledger", true, func(context.Context) error { return errors.New("gone") }))
		r.Register("rabbitmq", PingChecker("rabbitmq", false, func(context.Context) error { return errors.New("down") }))

		assert.Equal(t, HealthStatusUnhealthy, r.Check(context.Background()).Status)
	})
}
