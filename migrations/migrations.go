// Package migrations embeds the schema for every supported dialect and runs it
// with golang-migrate against an already opened connection pool.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed mysql/*.sql postgres/*.sql sqlite3/*.sql
var files embed.FS

// Migrator runs the embedded migrations for one driver.
type Migrator struct {
	m       *migrate.Migrate
	release func() error
}

// New prepares a Migrator for sqldb. driver is the database/sql driver name
// ("mysql", "postgres" or "sqlite3"). Close releases the migration resources
// but never closes sqldb.
func New(ctx context.Context, sqldb *sql.DB, driver string, logger *slog.Logger) (*Migrator, error) {
	src, err := iofs.New(files, driver)
	if err != nil {
		return nil, fmt.Errorf("migrations: no migrations for driver %q: %w", driver, err)
	}

	var (
		target  database.Driver
		release func() error
	)
	switch driver {
	case "mysql", "postgres":
		// A dedicated connection keeps the pool itself out of the
		// migrate driver's Close.
		var conn *sql.Conn
		if conn, err = sqldb.Conn(ctx); err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("migrations: acquire connection: %w", err)
		}
		if driver == "mysql" {
			target, err = mysql.WithConnection(ctx, conn, &mysql.Config{})
		} else {
			target, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		}
		if err != nil {
			_ = conn.Close()
		}
		release = func() error { return target.Close() }
	case "sqlite3":
		// The sqlite3 migrate driver closes the *sql.DB it wraps, so it is
		// left open here.
		target, err = sqlite3.WithInstance(sqldb, &sqlite3.Config{})
		release = func() error { return nil }
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		_ = src.Close()
		_ = release()
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m.Log = &migrateLogger{logger: logger}

	return &Migrator{
		m: m,
		release: func() error {
			return errors.Join(src.Close(), release())
		},
	}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Down rolls back n migrations.
func (mg *Migrator) Down(n int) error {
	if err := mg.m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: down: %w", err)
	}
	return nil
}

// Version returns the applied version. ok is false when nothing is applied.
func (mg *Migrator) Version() (version uint, dirty, ok bool, err error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("migrations: version: %w", err)
	}
	return v, dirty, true, nil
}

// Force sets the recorded version without running migrations.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("migrations: force: %w", err)
	}
	return nil
}

// Drop removes every table in the database.
func (mg *Migrator) Drop() error {
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("migrations: drop: %w", err)
	}
	return nil
}

// Close releases the source and the dedicated connection, if any.
func (mg *Migrator) Close() error { return mg.release() }

// Up is a shortcut that applies all pending migrations and releases the
// Migrator.
func Up(ctx context.Context, sqldb *sql.DB, driver string, logger *slog.Logger) error {
	mg, err := New(ctx, sqldb, driver, logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}

// ─────────────────────────────────────────────────────────────────────────────

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}
func (l *migrateLogger) Verbose() bool { return false }
