// Package logger builds the service's slog logger and carries a per-request
// child logger, tagged with a request id, through the request context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	// RequestIDHeader echoes the request id back to the client.
	RequestIDHeader = "X-Request-ID"
)

type contextKeyRequestLoggerType struct{}

var contextKeyRequestLogger = &contextKeyRequestLoggerType{}

// New returns a logger writing to w at level in the given format
// ("json" or "text").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("logger: unknown format %q", format)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logger: %w", err)
	}
	return lvl, nil
}

// ContextWithLogger returns a context carrying a child of base tagged with a
// new request id. A context that already has a logger is returned as is.
func ContextWithLogger(ctx context.Context, base *slog.Logger) (context.Context, *slog.Logger) {
	if rlog := loggerFromContext(ctx); rlog != nil {
		return ctx, rlog
	}
	if base == nil {
		base = slog.Default()
	}
	id := uuid.NewString()
	rlog := base.With(slog.String(requestIDKey, id))
	ctx = context.WithValue(ctx, contextKeyRequestLogger, &requestLogger{id: id, log: rlog})
	return ctx, rlog
}

type requestLogger struct {
	id  string
	log *slog.Logger
}

func loggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	if rl, ok := ctx.Value(contextKeyRequestLogger).(*requestLogger); ok {
		return rl.log
	}
	return nil
}

// FromContext returns the request logger, or slog.Default() when ctx has none.
func FromContext(ctx context.Context) *slog.Logger {
	if rlog := loggerFromContext(ctx); rlog != nil {
		return rlog
	}
	return slog.Default()
}

// RequestIDFromContext returns the request id for ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if rl, ok := ctx.Value(contextKeyRequestLogger).(*requestLogger); ok {
		return rl.id
	}
	return ""
}

// Middleware attaches a request logger to every request, echoes its id in
// X-Request-ID and logs the outcome once the handler returns.
func Middleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, rlog := ContextWithLogger(r.Context(), base)
			w.Header().Set(RequestIDHeader, RequestIDFromContext(ctx))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			rlog.LogAttrs(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("route", RoutePattern(r)),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// RoutePattern returns the chi route pattern matched so far for r, e.g.
// "/participants/details/{email}". Paths carry participant emails, so logs
// use the pattern instead.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" becomes "jo***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
