// internal/db/db.go
//
// Durable store for the duel server: accounts, chip totals, identity to
// match bindings and e-mail verification codes.
//
// Responsibilities:
//   - Opening SQLite (default) or Postgres with safe defaults.
//   - Applying embedded goose migrations.
//   - Rewriting "?" placeholders for Postgres so queries are written once.

package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = time.Hour
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("db: not found")

// Options selects the backend.
type Options struct {
	Driver string // DriverSQLite or DriverPostgres
	DSN    string // file path for SQLite, connection string for Postgres
}

// Store wraps a *sql.DB with the queries the server needs.
type Store struct {
	db     *sql.DB
	driver string
	log    zerolog.Logger
	now    func() time.Time
}

// Open connects, tunes and migrates the database.
func Open(opts Options, logger zerolog.Logger) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	logger = logger.With().Str("component", "db").Str("driver", driver).Logger()
	logger.Info().Msg("connecting to database")

	var (
		sqlDB *sql.DB
		err   error
	)
	switch driver {
	case DriverSQLite:
		sqlDB, err = openSQLite(opts.DSN, logger)
	case DriverPostgres:
		sqlDB, err = sql.Open(DriverPostgres, opts.DSN)
		if err == nil {
			err = sqlDB.Ping()
		}
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := runMigrations(sqlDB, driver, logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info().Msg("database ready")
	return &Store{db: sqlDB, driver: driver, log: logger, now: time.Now}, nil
}

// openSQLite creates the parent directory for relative paths such as
// ./data/duel.db and applies connection pragmas.
func openSQLite(dsn string, logger zerolog.Logger) (*sql.DB, error) {
	if dsn == "" {
		dsn = "data/duel.db"
	}
	if dir := filepath.Dir(dsn); dir != "." && dir != "" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	sqlDB, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("set PRAGMA %s: %w", p.name, err)
		}
		logger.Debug().Str("pragma", p.name).Str("value", p.value).Msg("sqlite pragma set")
	}
	return sqlDB, nil
}

func runMigrations(sqlDB *sql.DB, driver string, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	logger.Info().Msg("migrations applied")
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind turns "?" placeholders into "$n" for Postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}
