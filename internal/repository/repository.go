// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/chronotrack/internal/database"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnavailable is returned when the store did not answer within the query timeout
	ErrUnavailable = errors.New("store unavailable")
)

// DefaultQueryTimeout bounds every repository call unless overridden.
const DefaultQueryTimeout = 5 * time.Second

// Repository wraps sqlx for database operations
type Repository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Option configures a Repository.
type Option func(*Repository)

// WithQueryTimeout sets the per-call deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a new Repository instance
func New(db *sqlx.DB, opts ...Option) *Repository {
	r := &Repository{db: db, timeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping checks that the store answers within the query timeout.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.wrapError(ctx, r.db.PingContext(ctx))
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// rebind converts ? placeholders to the driver's bindvar style.
func (r *Repository) rebind(query string) string {
	return r.db.Rebind(query)
}

// wrapError converts driver errors to repository errors
func (r *Repository) wrapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
