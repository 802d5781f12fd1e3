// Package api wires the HTTP surface of the census service: the participants
// resource behind the credential gate plus the root, health and fallback
// handlers.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Skryldev/census-api/auth"
	"github.com/Skryldev/census-api/db"
	"github.com/Skryldev/census-api/httputil"
	"github.com/Skryldev/census-api/logger"
	"github.com/Skryldev/census-api/repo"
	"github.com/Skryldev/census-api/validation"
)

// HealthChecker is the part of *db.DB used by /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Stats() sql.DBStats
}

// Options holds the dependencies of the HTTP layer.
type Options struct {
	Participants repo.ParticipantRepository
	Validator    *validation.Validator
	Credentials  auth.Credentials
	// Health and Stats feed /health; both may be nil.
	Health HealthChecker
	Stats  *db.QueryStats
	// CORSOrigins defaults to "*".
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the complete HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.Validator == nil {
		opts.Validator = validation.New(validation.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(opts.Logger))
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{logger.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(jsonBody(maxBodyBytes))

	r.NotFound(endpointNotFound)
	r.MethodNotAllowed(endpointNotFound)

	r.Get("/", index)
	r.Get("/health", health(opts.Health, opts.Stats))

	h := &participantHandler{
		repo:      opts.Participants,
		validator: opts.Validator,
	}
	gate := auth.NewGate(opts.Credentials, "census")

	r.Route("/participants", func(r chi.Router) {
		r.Use(gate.Middleware)

		r.Post("/add", h.add)
		r.Get("/", h.list)
		r.Get("/details", h.listDetails)
		r.Get("/details/{email}", h.details)
		r.Get("/work/{email}", h.work)
		r.Get("/home/{email}", h.home)
		r.Delete("/{email}", h.delete)
		r.Put("/{email}", h.update)
	})

	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Root, health and fallback
// ─────────────────────────────────────────────────────────────────────────────

func index(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, r, map[string]any{
		"message": "Census API is running",
		"endpoints": map[string]string{
			"participants": "/participants",
			"add":          "/participants/add",
			"details":      "/participants/details",
			"health":       "/health",
		},
	})
}

type healthResponse struct {
	Status   string      `json:"status"`
	Error    string      `json:"error,omitempty"`
	Database *poolHealth `json:"database,omitempty"`
}

type poolHealth struct {
	Open     int   `json:"open"`
	InUse    int   `json:"in_use"`
	Idle     int   `json:"idle"`
	Queries  int64 `json:"queries"`
	Failures int64 `json:"failures"`
}

func health(hc HealthChecker, stats *db.QueryStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hc == nil {
			httputil.OK(w, r, healthResponse{Status: "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := hc.Ping(ctx); err != nil {
			logger.FromContext(ctx).Error("health: database ping failed", "error", err)
			httputil.JSON(w, r, http.StatusServiceUnavailable, healthResponse{
				Status: "unavailable",
				Error:  db.DriverMessage(err),
			})
			return
		}
		s := hc.Stats()
		ph := &poolHealth{Open: s.OpenConnections, InUse: s.InUse, Idle: s.Idle}
		if stats != nil {
			snap := stats.Snapshot()
			ph.Queries, ph.Failures = snap.Queries, snap.Failures
		}
		httputil.OK(w, r, healthResponse{Status: "ok", Database: ph})
	}
}

func endpointNotFound(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, r, http.StatusNotFound, map[string]string{
		"error":     "Endpoint not found",
		"requested": r.URL.RequestURI(),
	})
}

// recoverer turns a handler panic into a 500 JSON response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context()).Error("api: handler panic", "panic", rec)
				httputil.Error(w, r, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
