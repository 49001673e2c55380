// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/chronotrack/internal/models"
)

const attendanceColumns = `a.id, a.user_id, a.date, a.clock_in_time, a.clock_out_time, a.is_late, a.notes, a.created_at`

// CreateAttendance inserts a clock-in record and fills in its ID. A second
// record for the same user and date yields ErrDuplicate. Instants are stored
// in UTC so that ordering by clock_in_time is chronological.
func (r *Repository) CreateAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.QueryRowxContext(ctx, r.rebind(`INSERT INTO attendance
		(user_id, date, clock_in_time, is_late, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		rec.UserID, rec.Date, rec.ClockInTime.UTC(), rec.IsLate, rec.Notes, rec.CreatedAt.UTC(),
	).Scan(&rec.ID)

	return r.wrapError(ctx, err)
}

// GetAttendance returns a user's record for one day.
func (r *Repository) GetAttendance(ctx context.Context, userID int64, date models.Date) (*models.AttendanceRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rec models.AttendanceRecord
	err := r.db.GetContext(ctx, &rec, r.rebind(`SELECT `+attendanceColumns+`
		FROM attendance a WHERE a.user_id = ? AND a.date = ?`), userID, date)
	if err != nil {
		return nil, r.wrapError(ctx, err)
	}
	return &rec, nil
}

// ListAttendanceByUser returns up to limit records, most recent date first.
func (r *Repository) ListAttendanceByUser(ctx context.Context, userID int64, limit int) ([]models.AttendanceRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	records := []models.AttendanceRecord{}
	err := r.db.SelectContext(ctx, &records, r.rebind(`SELECT `+attendanceColumns+`
		FROM attendance a WHERE a.user_id = ?
		ORDER BY a.date DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, r.wrapError(ctx, err)
	}
	return records, nil
}

// ListPresenceByCompany returns the records of role-holders in company on date.
func (r *Repository) ListPresenceByCompany(ctx context.Context, role models.Role, company string, date models.Date) ([]models.PresenceEntry, error) {
	return r.listPresence(ctx, "u.company = ?", role, company, date)
}

// ListPresenceBySchool returns the records of role-holders in school on date.
func (r *Repository) ListPresenceBySchool(ctx context.Context, role models.Role, school string, date models.Date) ([]models.PresenceEntry, error) {
	return r.listPresence(ctx, "u.school = ?", role, school, date)
}

func (r *Repository) listPresence(ctx context.Context, scope string, role models.Role, value string, date models.Date) ([]models.PresenceEntry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	entries := []models.PresenceEntry{}
	err := r.db.SelectContext(ctx, &entries, r.rebind(`SELECT `+attendanceColumns+`, u.full_name
		FROM attendance a JOIN users u ON u.id = a.user_id
		WHERE u.role = ? AND `+scope+` AND a.date = ?
		ORDER BY a.clock_in_time, a.id`), string(role), value, date)
	if err != nil {
		return nil, r.wrapError(ctx, err)
	}
	return entries, nil
}

// CountUsersByCompany counts role-holders in company.
func (r *Repository) CountUsersByCompany(ctx context.Context, role models.Role, company string) (int64, error) {
	return r.countUsers(ctx, "company = ?", role, company)
}

// CountUsersBySchool counts role-holders in school.
func (r *Repository) CountUsersBySchool(ctx context.Context, role models.Role, school string) (int64, error) {
	return r.countUsers(ctx, "school = ?", role, school)
}

func (r *Repository) countUsers(ctx context.Context, scope string, role models.Role, value string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int64
	err := r.db.GetContext(ctx, &count, r.rebind(`SELECT count(*) FROM users WHERE role = ? AND `+scope), string(role), value)
	if err != nil {
		return 0, r.wrapError(ctx, err)
	}
	return count, nil
}
