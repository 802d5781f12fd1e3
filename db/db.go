// Package db is a thin, SQL-first layer over database/sql used by the census
// service. All SQL is explicit; the package adds context-aware helpers, hook
// dispatch, unified error mapping, placeholder rebinding and transactions.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds all options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "mysql", "postgres", or "sqlite3".
	DriverName string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Default query timeout applied when no deadline is set on the context.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// Hooks executed around every statement (logging, metrics).
	// nil entries are silently skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB: the central type
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB.
//
// Statements are written with '?' placeholders and rebound to the dialect of
// the configured driver before they reach database/sql.
type DB struct {
	sqldb  *sql.DB
	cfg    Config
	hooks  hookChain
	errMap ErrorMapper
	style  PlaceholderStyle
}

// Open opens the database described by cfg and verifies connectivity with Ping.
// Callers are responsible for calling Close() when the application shuts down.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("census/db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("census/db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("census/db: open: %w", err)
	}

	d, err := newDB(sqldb, cfg)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("census/db: ping: %w", err)
	}

	return d, nil
}

// Wrap builds a DB around an already opened *sql.DB without pinging it.
// cfg.DriverName selects the placeholder style; cfg.DSN is ignored.
func Wrap(sqldb *sql.DB, cfg Config) (*DB, error) {
	return newDB(sqldb, cfg)
}

func newDB(sqldb *sql.DB, cfg Config) (*DB, error) {
	style := PlaceholderQuestion
	if cfg.DriverName != "" {
		drv, err := LookupDriver(cfg.DriverName)
		if err != nil {
			return nil, err
		}
		style = drv.Placeholder()
	}

	// Pool tuning
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return &DB{
		sqldb:  sqldb,
		cfg:    cfg,
		hooks:  newHookChain(cfg.Hooks),
		errMap: DefaultErrorMapper(),
		style:  style,
	}, nil
}

// Raw returns the underlying *sql.DB. The migration runner needs it.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// DriverName returns the database/sql driver name this DB was opened with.
func (d *DB) DriverName() string { return d.cfg.DriverName }

// Close closes all pooled connections and frees resources.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Stats returns pool statistics for monitoring.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// ─────────────────────────────────────────────────────────────────────────────
// Query execution helpers
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows (INSERT, UPDATE, DELETE, DDL).
// The error is translated through the unified error mapper.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()
	query = Rebind(d.style, query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	res, err := d.sqldb.ExecContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query that returns rows.
// The caller MUST close the returned *Rows; closing also releases the
// statement timeout.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	query = Rebind(d.style, query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	rows, err := d.sqldb.QueryContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Rows{Rows: rows, cancel: cancel, errMap: d.errMap}, nil
}

// QueryRow executes a query expected to return at most one row.
// ErrNotFound is returned from Scan when no row matches.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	query = Rebind(d.style, query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	raw := d.sqldb.QueryRowContext(ctx, query, args...)
	return &Row{
		raw: raw, errMap: d.errMap, cancel: cancel,
		hooks: d.hooks, ctx: ctx, query: query, args: args, start: start,
	}
}

// Prepare creates a prepared statement for repeated use.
// The caller is responsible for calling stmt.Close().
func (d *DB) Prepare(ctx context.Context, query string) (*Stmt, error) {
	query = Rebind(d.style, query)
	s, err := d.sqldb.PrepareContext(ctx, query)
	if err != nil {
		return nil, d.mapErr(err)
	}
	return &Stmt{stmt: s, query: query, hooks: d.hooks, errMap: d.errMap}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch helpers
// ─────────────────────────────────────────────────────────────────────────────

// BatchExec runs query once per item inside a single transaction.
// All statements succeed or none do.
//
//	err := db.BatchExec(d, ctx, "INSERT INTO participants (email, firstname) VALUES (?, ?)", rows,
//	    func(p Row) []any { return []any{p.Email, p.Firstname} })
func BatchExec[T any](
	d *DB,
	ctx context.Context,
	query string,
	items []T,
	argsFn func(T) []any,
) error {
	return d.ExecTx(ctx, func(tx *Tx) error {
		stmt, err := tx.Prepare(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, item := range items {
			if _, err := stmt.Exec(ctx, argsFn(item)...); err != nil {
				return fmt.Errorf("census/db: batch item %d: %w", i, err)
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func noop() {}

func (d *DB) applyDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, noop
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, noop // caller already set a deadline
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row / Rows: translate errors uniformly
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the unified error mapper.
// The statement's After hooks run from Scan, once its outcome is known.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
	cancel context.CancelFunc

	hooks hookChain
	ctx   context.Context
	query string
	args  []any
	start time.Time
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	if r.cancel != nil {
		defer r.cancel()
	}
	err := r.raw.Scan(dest...)
	if err != nil {
		err = r.errMap.Map(err)
	}
	r.hooks.After(r.ctx, r.query, r.args, time.Since(r.start), err)
	return err
}

// Rows wraps *sql.Rows so that Close also releases the statement context and
// iteration errors go through the error mapper.
type Rows struct {
	*sql.Rows
	cancel context.CancelFunc
	errMap ErrorMapper
}

// Close closes the result set and releases the statement timeout.
func (r *Rows) Close() error {
	err := r.Rows.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

// Err returns the mapped iteration error, if any.
func (r *Rows) Err() error {
	err := r.Rows.Err()
	if err == nil {
		return nil
	}
	return r.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Stmt: wraps *sql.Stmt
// ─────────────────────────────────────────────────────────────────────────────

// Stmt wraps a prepared *sql.Stmt with hook dispatch and error mapping.
type Stmt struct {
	stmt   *sql.Stmt
	query  string
	hooks  hookChain
	errMap ErrorMapper
}

// Exec executes the prepared statement.
func (s *Stmt) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	start := time.Now()
	s.hooks.Before(ctx, s.query, args)
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		err = s.errMap.Map(err)
	}
	s.hooks.After(ctx, s.query, args, time.Since(start), err)
	return res, err
}

// Close releases the prepared statement resources.
func (s *Stmt) Close() error { return s.stmt.Close() }
