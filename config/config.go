// Package config loads the service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/Skryldev/census-api/db"
)

// Config is the full service configuration.
type Config struct {
	AdminUser     string `env:"ADMIN_USER,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	Port int `env:"PORT,default=3000"`

	DB DBConfig

	// DOBAllowSlash also accepts YYYY/MM/DD dates of birth.
	DOBAllowSlash bool `env:"DOB_ALLOW_SLASH,default=false"`

	// CORSOrigins is ';'-separated in the environment.
	CORSOrigins []string `env:"CORS_ORIGINS,default=*"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// DBConfig describes the database connection and pool.
type DBConfig struct {
	Driver string `env:"DB_DRIVER,default=mysql"`
	// URL, when set, is used verbatim and the parts below are ignored.
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST,default=localhost"`
	Port     int    `env:"DB_PORT,default=0"`
	User     string `env:"DB_USER,default=root"`
	Password string `env:"DB_PASSWORD"`
	// Name is the database name, or the file path for sqlite3.
	Name    string `env:"DB_NAME,default=census"`
	SSLMode string `env:"DB_SSLMODE,default=disable"`

	PoolSize     int           `env:"DB_POOL_SIZE,default=10"`
	QueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT,default=10s"`
	SlowQuery    time.Duration `env:"DB_SLOW_QUERY,default=200ms"`
	Migrate      bool          `env:"DB_MIGRATE,default=true"`
}

// Load reads the given .env files (default ".env") into the process
// environment without overriding variables that are already set, then
// decodes the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env file is normal outside of development.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if _, err := db.LookupDriver(c.DB.Driver); err != nil {
		return fmt.Errorf("config: DB_DRIVER: %w", err)
	}
	if c.DB.PoolSize < 1 {
		return fmt.Errorf("config: DB_POOL_SIZE must be positive")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// DateSeparators lists the accepted dob separators.
func (c *Config) DateSeparators() []string {
	if c.DOBAllowSlash {
		return []string{"-", "/"}
	}
	return []string{"-"}
}

// DSN returns the driver DSN, preferring DATABASE_URL. A DATABASE_URL still
// gets the driver's required session settings.
func (c DBConfig) DSN() (string, error) {
	if c.URL != "" {
		return db.NormalizeDSN(c.Driver, c.URL)
	}
	return db.BuildDSN(c.Driver, db.DriverOptions{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		SSLMode:  c.SSLMode,
	})
}
