// Package db opens the database behind the ownership store and media
// repository and smooths over the differences between PostgreSQL and SQLite.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DB is a *sql.DB together with the name of its driver.
type DB struct {
	*sql.DB
	Driver string
}

// Open connects to the database and verifies the connection.
// SQLite connections are limited to one so that ":memory:" databases are
// shared by every query.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: conn, Driver: driver}, nil
}

// Bootstrap creates the schema if it does not exist yet. Production Postgres
// deployments apply migrations/ instead; both describe the same tables.
func (d *DB) Bootstrap(ctx context.Context) error {
	ddl, err := schemaFS.ReadFile("schema/" + d.Driver + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %s: %w", d.Driver, err)
	}
	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Rebind converts ? placeholders into the driver's native form.
func (d *DB) Rebind(query string) string {
	return Rebind(d.Driver, query)
}

// Rebind converts ? placeholders into $1, $2, ... for PostgreSQL and leaves
// them untouched for SQLite.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// System returns the OpenTelemetry db.system value for the driver.
func (d *DB) System() string {
	if d.Driver == DriverSQLite {
		return "sqlite"
	}
	return "postgresql"
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context) error {
	return d.PingContext(ctx)
}

// IsUniqueViolation reports whether err is a unique or primary-key constraint
// violation from either driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
