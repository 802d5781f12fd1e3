package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/census-api/logger"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.New(&buf, "warn", "json")
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "v", entry["k"])
}

func TestNew_Invalid(t *testing.T) {
	_, err := logger.New(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)
	_, err = logger.New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestContextWithLogger(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx, l1 := logger.ContextWithLogger(context.Background(), base)
	id := logger.RequestIDFromContext(ctx)
	assert.NotEmpty(t, id)
	assert.Same(t, l1, logger.FromContext(ctx))

	// Existing loggers are kept.
	ctx2, l2 := logger.ContextWithLogger(ctx, base)
	assert.Same(t, l1, l2)
	assert.Equal(t, id, logger.RequestIDFromContext(ctx2))

	assert.Empty(t, logger.RequestIDFromContext(context.Background()))
	assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	h := logger.Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(logger.RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, seen, entry["request_id"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.Equal(t, "unmatched", entry["route"])
}

func TestMiddleware_LogsRoutePatternNotPath(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(logger.Middleware(base))
	r.Get("/participants/details/{email}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/participants/details/john.doe@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, buf.String(), "john.doe")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/participants/details/{email}", entry["route"])
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", logger.RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", logger.RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", logger.RedactEmail("nope"))
}
