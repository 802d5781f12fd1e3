package db

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Hook interface
// ─────────────────────────────────────────────────────────────────────────────

// Hook is called before and after every statement execution.
//
// Implementations MUST be goroutine-safe and SHOULD be non-blocking.
// Panics inside a hook are recovered by the hook chain and logged.
type Hook interface {
	// BeforeQuery is invoked immediately before the statement is sent to the
	// database driver.
	BeforeQuery(ctx context.Context, query string, args []any)

	// AfterQuery is invoked after the driver returns. err is the (already
	// mapped) error returned to the caller, nil on success.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// hookChain: internal dispatcher
// ─────────────────────────────────────────────────────────────────────────────

type hookChain struct {
	hooks []Hook
}

func newHookChain(hooks []Hook) hookChain {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return hookChain{hooks: filtered}
}

func (c hookChain) Before(ctx context.Context, query string, args []any) {
	for _, h := range c.hooks {
		safeBeforeQuery(h, ctx, query, args)
	}
}

func (c hookChain) After(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for _, h := range c.hooks {
		safeAfterQuery(h, ctx, query, args, d, err)
	}
}

func safeBeforeQuery(h Hook, ctx context.Context, query string, args []any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("census/db: hook panic in BeforeQuery", "panic", r)
		}
	}()
	h.BeforeQuery(ctx, query, args)
}

func safeAfterQuery(h Hook, ctx context.Context, query string, args []any, d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("census/db: hook panic in AfterQuery", "panic", r)
		}
	}()
	h.AfterQuery(ctx, query, args, d, err)
}

// ── Logging hook ─────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
	// SlowQueryThreshold logs a warning when duration exceeds this value.
	// Zero disables slow-query logging.
	SlowQueryThreshold time.Duration
	// LogArgs includes bound parameters in log entries. Participant rows are
	// PII, keep this off outside of tests.
	LogArgs bool
	// ContextLogger, when set, picks a request-scoped logger out of ctx.
	ContextLogger func(ctx context.Context) *slog.Logger
}

// NewLogHook returns a Hook that emits structured log entries via slog.
func NewLogHook(cfg LogHookConfig) Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &logHook{cfg: cfg, logger: logger}
}

type logHook struct {
	cfg    LogHookConfig
	logger *slog.Logger
}

func (h *logHook) BeforeQuery(_ context.Context, _ string, _ []any) {}

func (h *logHook) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	logger := h.logger
	if h.cfg.ContextLogger != nil {
		if l := h.cfg.ContextLogger(ctx); l != nil {
			logger = l
		}
	}

	attrs := []any{
		slog.String("query", trimQuery(query)),
		slog.Duration("duration", d),
	}
	if h.cfg.LogArgs && len(args) > 0 {
		attrs = append(attrs, slog.Any("args", args))
	}

	// Not-found and duplicates are expected outcomes, not failures.
	if err != nil && !IsNotFound(err) && !IsDuplicateKey(err) {
		logger.ErrorContext(ctx, "census/db: query error", append(attrs, slog.Any("error", err))...)
		return
	}

	if h.cfg.SlowQueryThreshold > 0 && d > h.cfg.SlowQueryThreshold {
		logger.WarnContext(ctx, "census/db: slow query", attrs...)
		return
	}

	logger.DebugContext(ctx, "census/db: query", attrs...)
}

func trimQuery(q string) string {
	if len(q) > 500 {
		return q[:500] + "…"
	}
	return q
}

// ── Metrics hook ─────────────────────────────────────────────────────────────

// MetricsCollector is the interface a metrics backend must implement.
type MetricsCollector interface {
	// RecordQuery is called after every statement.
	// success is false if err != nil, except for ErrNotFound.
	RecordQuery(query string, duration time.Duration, success bool)
}

// NewMetricsHook returns a Hook that delegates to a MetricsCollector.
func NewMetricsHook(collector MetricsCollector) Hook {
	return &metricsHook{c: collector}
}

type metricsHook struct{ c MetricsCollector }

func (h *metricsHook) BeforeQuery(_ context.Context, _ string, _ []any) {}
func (h *metricsHook) AfterQuery(_ context.Context, query string, _ []any, d time.Duration, err error) {
	// A single-row read that matched nothing still succeeded.
	h.c.RecordQuery(query, d, err == nil || IsNotFound(err))
}

// QueryStats is an in-process MetricsCollector keeping running totals.
type QueryStats struct {
	queries  atomic.Int64
	failures atomic.Int64
	nanos    atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (s *QueryStats) RecordQuery(_ string, d time.Duration, success bool) {
	s.queries.Add(1)
	s.nanos.Add(int64(d))
	if !success {
		s.failures.Add(1)
	}
}

// QueryStatsSnapshot is a point-in-time copy of QueryStats.
type QueryStatsSnapshot struct {
	Queries   int64         `json:"queries"`
	Failures  int64         `json:"failures"`
	TotalTime time.Duration `json:"-"`
}

// Snapshot returns the current totals.
func (s *QueryStats) Snapshot() QueryStatsSnapshot {
	return QueryStatsSnapshot{
		Queries:   s.queries.Load(),
		Failures:  s.failures.Load(),
		TotalTime: time.Duration(s.nanos.Load()),
	}
}
