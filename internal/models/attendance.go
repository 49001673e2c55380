// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used for attendance dates.
const DateLayout = "2006-01-02"

// Date is a calendar day (YYYY-MM-DD) without a time or zone.
type Date string

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

func (d Date) String() string { return string(d) }

// Scan accepts TEXT columns (SQLite) and DATE columns (PostgreSQL).
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*d = Date(v)
	case []byte:
		*d = Date(v)
	case time.Time:
		*d = Date(v.Format(DateLayout))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

// AttendanceRecord is one user's clock-in for one calendar day.
type AttendanceRecord struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Date         Date       `db:"date" json:"date"`
	ClockInTime  time.Time  `db:"clock_in_time" json:"clock_in_time"`
	ClockOutTime *time.Time `db:"clock_out_time" json:"clock_out_time,omitempty"`
	IsLate       bool       `db:"is_late" json:"is_late"`
	Notes        string     `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// PresenceEntry is an attendance record joined with its owner's name.
type PresenceEntry struct {
	AttendanceRecord
	FullName string `db:"full_name" json:"full_name"`
}
