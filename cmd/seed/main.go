// Command seed loads participants from a JSON file into the census database.
// Every entry is validated first; the rows are then inserted in a single
// transaction, so either all of them land or none do.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/census-api/config"
	"github.com/Skryldev/census-api/db"
	"github.com/Skryldev/census-api/logger"
	"github.com/Skryldev/census-api/migrations"
	"github.com/Skryldev/census-api/repo"
	"github.com/Skryldev/census-api/validation"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	file := flag.String("file", "participants.json", "JSON array of participants")
	flag.Parse()

	if err := run(*envFile, *file); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(envFile, file string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log, err := logger.New(os.Stderr, cfg.LogLevel, "text")
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer f.Close()

	v := validation.New(validation.Options{DateSeparators: cfg.DateSeparators()})
	params, err := decodeParticipants(f, v)
	if err != nil {
		return err
	}

	dsn, err := cfg.DB.DSN()
	if err != nil {
		return err
	}
	database, err := db.Open(db.Config{
		DSN:            dsn,
		DriverName:     cfg.DB.Driver,
		MaxOpenConns:   2,
		DefaultTimeout: cfg.DB.QueryTimeout,
		Hooks: []db.Hook{db.NewLogHook(db.LogHookConfig{
			Logger:             log,
			SlowQueryThreshold: cfg.DB.SlowQuery,
		})},
	})
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if cfg.DB.Migrate {
		if err := migrations.Up(ctx, database.Raw(), cfg.DB.Driver, log); err != nil {
			return err
		}
	}
	if err := repo.BatchInsert(ctx, database, params); err != nil {
		if db.IsDuplicateKey(err) {
			return fmt.Errorf("seed: a participant already exists, nothing was inserted: %w", err)
		}
		return err
	}

	log.Info("seed completed", "file", file, "participants", len(params))
	return nil
}
