package db

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - the bind-parameter style of the dialect
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "mysql", "postgres".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// Placeholder reports how bind parameters are written for this driver.
	Placeholder() PlaceholderStyle
}

// DriverOptions carries the common connection parameters in a driver-agnostic
// form. DSN() converts them to the driver's native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // postgres only: "disable", "require", ...
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// PlaceholderStyle is the bind-parameter syntax of a dialect.
type PlaceholderStyle int

const (
	// PlaceholderQuestion is '?' (MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar is '$1, $2, ...' (PostgreSQL).
	PlaceholderDollar
)

// Rebind rewrites '?' placeholders in query to the given style. Question marks
// inside single-quoted literals are left alone.
func Rebind(style PlaceholderStyle, query string) string {
	if style != PlaceholderDollar || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the registry, replacing any driver with
// the same name.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("census/db: driver %q not registered", name)
	}
	return d, nil
}

// BuildDSN looks up driverName and converts opts into its DSN.
func BuildDSN(driverName string, opts DriverOptions) (string, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return "", err
	}
	dsn, err := drv.DSN(opts)
	if err != nil {
		return "", fmt.Errorf("census/db: DSN construction failed: %w", err)
	}
	return dsn, nil
}

// DSNNormalizer is implemented by drivers that must force session settings
// onto a DSN supplied verbatim by the user.
type DSNNormalizer interface {
	NormalizeDSN(dsn string) (string, error)
}

// NormalizeDSN passes dsn through the driver's DSNNormalizer, if any.
func NormalizeDSN(driverName, dsn string) (string, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return "", err
	}
	n, ok := drv.(DSNNormalizer)
	if !ok {
		return dsn, nil
	}
	out, err := n.NormalizeDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("census/db: invalid DSN: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string                  { return "mysql" }
func (MySQLDriver) Placeholder() PlaceholderStyle { return PlaceholderQuestion }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", o.Host, port)
	cfg.DBName = o.Database
	mysqlSession(cfg)
	if len(o.Extra) > 0 {
		cfg.Params = make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

// NormalizeDSN keeps every setting of dsn and forces the session flags the
// repository depends on.
func (MySQLDriver) NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	mysqlSession(cfg)
	return cfg.FormatDSN(), nil
}

func mysqlSession(cfg *mysql.Config) {
	cfg.ParseTime = true
	// RowsAffected counts matched rows, so an UPDATE that changes nothing
	// still reports the row.
	cfg.ClientFoundRows = true
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapter (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter.
type PostgresDriver struct{}

func (PostgresDriver) Name() string                  { return "postgres" }
func (PostgresDriver) Placeholder() PlaceholderStyle { return PlaceholderDollar }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(o.User, o.Password),
		Host:   fmt.Sprintf("%s:%d", o.Host, port),
		Path:   "/" + o.Database,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter. Database is the file path.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string                  { return "sqlite3" }
func (SQLiteDriver) Placeholder() PlaceholderStyle { return PlaceholderQuestion }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	if len(o.Extra) == 0 {
		return o.Database, nil
	}
	keys := make([]string, 0, len(o.Extra))
	for k := range o.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(o.Extra[k]))
	}
	return o.Database + "?" + strings.Join(parts, "&"), nil
}

func init() {
	RegisterDriver(MySQLDriver{})
	RegisterDriver(PostgresDriver{})
	RegisterDriver(SQLiteDriver{})
}
