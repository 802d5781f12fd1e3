package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/census-api/config"
	"github.com/Skryldev/census-api/db"
	"github.com/Skryldev/census-api/logger"
	"github.com/Skryldev/census-api/migrations"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	yes := flag.Bool("yes", false, "skip the confirmation prompt of drop")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fatalf("%v", err)
	}
	log, err := logger.New(os.Stderr, cfg.LogLevel, "text")
	if err != nil {
		fatalf("%v", err)
	}
	slog.SetDefault(log)

	dsn, err := cfg.DB.DSN()
	if err != nil {
		fatalf("%v", err)
	}
	database, err := db.Open(db.Config{DSN: dsn, DriverName: cfg.DB.Driver, MaxOpenConns: 2})
	if err != nil {
		fatalf("connect failed: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	m, err := migrations.New(ctx, database.Raw(), cfg.DB.Driver, log)
	if err != nil {
		fatalf("migration init failed: %v", err)
	}
	defer m.Close()

	command := args[0]
	switch command {
	case "up":
		if err := m.Up(); err != nil {
			fatalf("up failed: %v", err)
		}
		slog.Info("migrations: up completed")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				fatalf("down: invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := m.Down(steps); err != nil {
			fatalf("down failed: %v", err)
		}
		slog.Info("migrations: down completed", "steps", steps)

	case "version":
		v, dirty, ok, err := m.Version()
		if err != nil {
			fatalf("version failed: %v", err)
		}
		if !ok {
			fmt.Println("version: none")
			return
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			fatalf("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("force: invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			fatalf("force failed: %v", err)
		}
		slog.Info("migrations: forced", "version", v)

	case "drop":
		if !*yes && !confirm("WARNING: drop will destroy the participants table. Type 'yes' to confirm:") {
			fmt.Println("aborted")
			return
		}
		if err := m.Drop(); err != nil {
			fatalf("drop failed: %v", err)
		}
		slog.Info("migrations: all tables dropped")

	default:
		usage()
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────────

func confirm(prompt string) bool {
	fmt.Fprintln(os.Stderr, prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-env FILE] [-yes] <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)
  drop         Drop all tables (dev only)

Environment:
  DB_DRIVER, DATABASE_URL or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME,
  plus ADMIN_USER and ADMIN_PASSWORD (the service config is shared).`)
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
