// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/chronotrack/internal/models"
)

const userColumns = `id, email, password_hash, role, full_name,
	company, school, programme, level, matric_number, courses,
	email_verified, verification_code_hash, verification_code_expires,
	reset_token_hash, reset_token_expires, password_changed_at, created_at, updated_at`

// userRow mirrors the users table; role-specific columns are nullable.
type userRow struct { //nolint:govet // fieldalignment: readability over optimization
	ID                      int64          `db:"id"`
	Email                   string         `db:"email"`
	PasswordHash            string         `db:"password_hash"`
	Role                    string         `db:"role"`
	FullName                string         `db:"full_name"`
	Company                 sql.NullString `db:"company"`
	School                  sql.NullString `db:"school"`
	Programme               sql.NullString `db:"programme"`
	Level                   sql.NullString `db:"level"`
	MatricNumber            sql.NullString `db:"matric_number"`
	Courses                 sql.NullString `db:"courses"`
	EmailVerified           bool           `db:"email_verified"`
	VerificationCodeHash    sql.NullString `db:"verification_code_hash"`
	VerificationCodeExpires sql.NullTime   `db:"verification_code_expires"`
	ResetTokenHash          sql.NullString `db:"reset_token_hash"`
	ResetTokenExpires       sql.NullTime   `db:"reset_token_expires"`
	PasswordChangedAt       time.Time      `db:"password_changed_at"`
	CreatedAt               time.Time      `db:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at"`
}

func (row *userRow) toModel() (*models.User, error) {
	role, err := models.ParseRole(row.Role)
	if err != nil {
		return nil, err
	}

	fields := models.ProfileFields{
		Company:      row.Company.String,
		School:       row.School.String,
		Programme:    row.Programme.String,
		Level:        row.Level.String,
		MatricNumber: row.MatricNumber.String,
	}
	if row.Courses.Valid && row.Courses.String != "" {
		if err := json.Unmarshal([]byte(row.Courses.String), &fields.Courses); err != nil {
			return nil, fmt.Errorf("decode courses of user %d: %w", row.ID, err)
		}
	}

	profile, err := models.BuildProfile(role, fields)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:                      row.ID,
		Email:                   row.Email,
		PasswordHash:            row.PasswordHash,
		FullName:                row.FullName,
		Profile:                 profile,
		EmailVerified:           row.EmailVerified,
		VerificationCodeHash:    row.VerificationCodeHash.String,
		VerificationCodeExpires: timePtr(row.VerificationCodeExpires),
		ResetTokenHash:          row.ResetTokenHash.String,
		ResetTokenExpires:       timePtr(row.ResetTokenExpires),
		PasswordChangedAt:       row.PasswordChangedAt,
		CreatedAt:               row.CreatedAt,
		UpdatedAt:               row.UpdatedAt,
	}, nil
}

// CreateUser inserts user and fills in its ID. Timestamps default to now.
// A taken email yields ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Profile == nil {
		return fmt.Errorf("create user: %w", models.ErrIncompleteProfile)
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.PasswordChangedAt.IsZero() {
		user.PasswordChangedAt = user.CreatedAt
	}
	user.UpdatedAt = user.CreatedAt

	fields := models.FieldsOf(user.Profile)
	var courses sql.NullString
	if user.Role() == models.RoleLecturer {
		list := fields.Courses
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return err
		}
		courses = sql.NullString{String: string(data), Valid: true}
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.QueryRowxContext(ctx, r.rebind(`INSERT INTO users (
			email, password_hash, role, full_name,
			company, school, programme, level, matric_number, courses,
			email_verified, verification_code_hash, verification_code_expires,
			password_changed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		user.Email, user.PasswordHash, string(user.Role()), user.FullName,
		nullString(fields.Company), nullString(fields.School), nullString(fields.Programme),
		nullString(fields.Level), nullString(fields.MatricNumber), courses,
		user.EmailVerified, nullString(user.VerificationCodeHash), nullTime(user.VerificationCodeExpires),
		user.PasswordChangedAt.UTC(), user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	).Scan(&user.ID)

	return r.wrapError(ctx, err)
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var row userRow
	err := r.db.GetContext(ctx, &row, r.rebind(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	if err != nil {
		return nil, r.wrapError(ctx, err)
	}
	return row.toModel()
}

// GetUserByID retrieves a user by their ID
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by their (already normalized) email address
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = ?", email)
}

// SetVerificationCode replaces the pending code digest of an unverified user.
// It reports false when the user does not exist or is already verified.
func (r *Repository) SetVerificationCode(ctx context.Context, userID int64, codeHash string, expiresAt, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE users
		SET verification_code_hash = ?, verification_code_expires = ?, updated_at = ?
		WHERE id = ? AND email_verified = ?`),
		codeHash, expiresAt.UTC(), now.UTC(), userID, false)
	return affected(res, r.wrapError(ctx, err))
}

// MarkEmailVerified flips the user to verified and clears the code, but only
// if codeHash is still the stored, unexpired digest. A code is consumed once.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID int64, codeHash string, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE users
		SET email_verified = ?, verification_code_hash = NULL, verification_code_expires = NULL, updated_at = ?
		WHERE id = ? AND email_verified = ? AND verification_code_hash = ?
		AND (verification_code_expires IS NULL OR verification_code_expires > ?)`),
		true, now.UTC(), userID, false, codeHash, now.UTC())
	return affected(res, r.wrapError(ctx, err))
}

// SetResetToken stores a reset token digest, replacing any pending one.
func (r *Repository) SetResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt, now time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE users
		SET reset_token_hash = ?, reset_token_expires = ?, updated_at = ?
		WHERE id = ?`),
		tokenHash, expiresAt.UTC(), now.UTC(), userID)
	ok, err := affected(res, r.wrapError(ctx, err))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ResetPassword sets a new password hash for the holder of an unexpired reset
// token and clears the token in the same statement. It returns the user's ID,
// or ErrNotFound when no unexpired token matches.
func (r *Repository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var id int64
	err := r.db.QueryRowxContext(ctx, r.rebind(`UPDATE users
		SET password_hash = ?, reset_token_hash = NULL, reset_token_expires = NULL,
			password_changed_at = ?, updated_at = ?
		WHERE reset_token_hash = ? AND reset_token_expires > ?
		RETURNING id`),
		passwordHash, now.UTC(), now.UTC(), tokenHash, now.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, r.wrapError(ctx, err)
	}
	return id, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
