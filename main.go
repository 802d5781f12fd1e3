// Command census-api serves the participants census over HTTP.
//
// Startup order:
//
//  1. Configuration from the environment (and .env)
//  2. Structured logger
//  3. DB pool with logging and metrics hooks
//  4. Schema migrations (DB_MIGRATE)
//  5. HTTP server with graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/census-api/api"
	"github.com/Skryldev/census-api/auth"
	"github.com/Skryldev/census-api/config"
	"github.com/Skryldev/census-api/db"
	"github.com/Skryldev/census-api/logger"
	"github.com/Skryldev/census-api/migrations"
	"github.com/Skryldev/census-api/repo"
	"github.com/Skryldev/census-api/validation"
)

func main() {
	if err := run(); err != nil {
		slog.Error("census-api: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── 1. Configuration ─────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// ── 2. Logger ────────────────────────────────────────────────────────
	log, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	// ── 3. Database ──────────────────────────────────────────────────────
	dsn, err := cfg.DB.DSN()
	if err != nil {
		return err
	}
	stats := &db.QueryStats{}
	database, err := db.Open(db.Config{
		DSN:             dsn,
		DriverName:      cfg.DB.Driver,
		MaxOpenConns:    cfg.DB.PoolSize,
		MaxIdleConns:    cfg.DB.PoolSize,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		DefaultTimeout:  cfg.DB.QueryTimeout,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{
				Logger:             log,
				SlowQueryThreshold: cfg.DB.SlowQuery,
				ContextLogger:      logger.FromContext,
			}),
			db.NewMetricsHook(stats),
		},
	})
	if err != nil {
		return err
	}
	defer database.Close()

	log.Info("database connected", "driver", cfg.DB.Driver, "pool_size", cfg.DB.PoolSize)

	// ── 4. Migrations ────────────────────────────────────────────────────
	if cfg.DB.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := migrations.Up(ctx, database.Raw(), cfg.DB.Driver, log)
		cancel()
		if err != nil {
			return err
		}
	}

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	handler := api.NewRouter(api.Options{
		Participants: repo.NewParticipantRepo(database),
		Validator:    validation.New(validation.Options{DateSeparators: cfg.DateSeparators()}),
		Credentials:  auth.Credentials{Username: cfg.AdminUser, Password: cfg.AdminPassword},
		Health:       database,
		Stats:        stats,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       log,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.DB.QueryTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("census-api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("listen: %w", err)
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
