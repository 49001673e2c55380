// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registered as "pgx"
	"github.com/vinovest/sqlx"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Supported dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const defaultMaxOpenConns = 10

// Dialect reports which database a DSN points at.
func Dialect(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

func driverName(dialect string) string {
	if dialect == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// Open connects to the database and applies all pending migrations.
func Open(dsn string, maxOpenConns int) (*sqlx.DB, error) {
	conn, err := Connect(dsn, maxOpenConns)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(conn.DB, Dialect(dsn)); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// Connect opens a bounded connection pool without touching the schema.
func Connect(dsn string, maxOpenConns int) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = "./data/chronotrack.db"
	}
	if maxOpenConns <= 0 {
		maxOpenConns = defaultMaxOpenConns
	}

	dialect := Dialect(dsn)
	if dialect == DialectSQLite {
		if !isMemory(dsn) {
			dir := filepath.Dir(dsn)
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
		dsn = addDefaultParams(dsn)
	}

	conn, err := sqlx.Open(driverName(dialect), dsn)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite && isMemory(dsn) {
		// Every new connection to :memory: is a fresh, empty database.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(maxOpenConns)
		conn.SetMaxIdleConns(max(maxOpenConns/2, 1))
		conn.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if dialect == DialectSQLite {
		if err := configureSQLite(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// addDefaultParams adds recommended SQLite parameters if not already present.
func addDefaultParams(dsn string) string {
	defaults := []struct{ key, value string }{
		{"_txlock", "immediate"},
		{"_pragma=busy_timeout", "_pragma=busy_timeout(5000)"},
		{"_pragma=foreign_keys", "_pragma=foreign_keys(1)"},
	}

	for _, d := range defaults {
		if strings.Contains(dsn, d.key) {
			continue
		}
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		if strings.HasPrefix(d.value, "_pragma") {
			dsn += separator + d.value
		} else {
			dsn += separator + d.key + "=" + d.value
		}
	}

	return dsn
}

// configureSQLite sets PRAGMAs for optimal performance.
func configureSQLite(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = 2000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}

	return nil
}
