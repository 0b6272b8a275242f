// Package hooks provides production-ready Hook and Logger implementations.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string, ...interface{}) {}
func (Nop) Info(string, ...interface{})  {}
func (Nop) Warn(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each child process.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeRun(_ context.Context, op string, cmd core.Command) {
	h.logger.Debug("command.start",
		"op", op,
		"command", cmd.String(),
	)
}

func (h *LoggingHook) AfterRun(_ context.Context, op string, cmd core.Command, res *core.RunResult, d time.Duration, err error) {
	if err != nil {
		fields := []interface{}{
			"op", op,
			"command", cmd.String(),
			"duration_ms", d.Milliseconds(),
			"category", string(apperrors.CategoryOf(err)),
			"error", err.Error(),
		}
		if code, ok := apperrors.ExitCode(err); ok {
			fields = append(fields, "exit_code", code)
		}
		h.logger.Error("command.error", fields...)
		return
	}
	stdout := 0
	if res != nil {
		stdout = len(res.Stdout)
	}
	h.logger.Debug("command.done",
		"op", op,
		"duration_ms", d.Milliseconds(),
		"stdout_bytes", stdout,
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	durationsMs map[string]int64 // cumulative ms per operation
	calls       map[string]int64
	skips       map[string]int64
	errors      map[string]int64 // keyed by category

	totalThroughputB int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		durationsMs: make(map[string]int64),
		calls:       make(map[string]int64),
		skips:       make(map[string]int64),
		errors:      make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(op string, d time.Duration) {
	m.mu.Lock()
	m.durationsMs[op] += d.Milliseconds()
	m.calls[op]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordSkip(op string) {
	m.mu.Lock()
	m.skips[op]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordError(_ string, category string) {
	if category == "" {
		category = "unknown"
	}
	m.mu.Lock()
	m.errors[category]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		DurationsMs:      copyCounts(m.durationsMs),
		Calls:            copyCounts(m.calls),
		Skips:            copyCounts(m.skips),
		Errors:           copyCounts(m.errors),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	DurationsMs      map[string]int64 `json:"durations_ms"`
	Calls            map[string]int64 `json:"calls"`
	Skips            map[string]int64 `json:"skips"`
	Errors           map[string]int64 `json:"errors"`
	TotalThroughputB int64            `json:"total_throughput_bytes"`
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds child-process timings into a MetricsCollector under
// "exec.<sub-command>".
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeRun(context.Context, string, core.Command) {}

func (h *MetricsHook) AfterRun(_ context.Context, op string, _ core.Command, _ *core.RunResult, d time.Duration, err error) {
	h.collector.RecordProcessingTime("exec."+op, d)
	if err != nil {
		h.collector.RecordError("exec."+op, string(apperrors.CategoryOf(err)))
	}
}
