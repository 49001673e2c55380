// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package attendance records daily clock-ins and builds role-scoped views of them.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/repository"
)

var (
	ErrAlreadyClockedIn = errors.New("already clocked in today")
	ErrUnsupportedRole  = errors.New("role has no dashboard")
)

const (
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 366
)

// Dashboard kinds.
const (
	DashboardPersonal   = "personal"
	DashboardManagement = "management"
)

// ClockInResult is returned by ClockIn.
type ClockInResult struct {
	Record *models.AttendanceRecord `json:"record"`
	Time   string                   `json:"time"` // local HH:MM:SS
	IsLate bool                     `json:"is_late"`
}

// Presence lists who of a group clocked in on a day.
type Presence struct {
	Date         models.Date            `json:"date"`
	Present      []models.PresenceEntry `json:"present"`
	PresentCount int                    `json:"present_count"`
	Total        int64                  `json:"total"`
}

// DashboardData is either a personal history or a management presence view.
type DashboardData struct { //nolint:govet // fieldalignment: readability over optimization
	Type           string                    `json:"type"`
	Role           models.Role               `json:"role"`
	Today          models.Date               `json:"today"`
	Date           models.Date               `json:"date"`
	ClockedInToday bool                      `json:"clocked_in_today"`
	History        []models.AttendanceRecord `json:"history"`
	Presence       *Presence                 `json:"presence,omitempty"`
}

type Service struct {
	repo         *repository.Repository
	loc          *time.Location
	cutoff       time.Duration
	historyLimit int
}

// NewService creates the attendance recorder for the configured zone and cutoff.
func NewService(repo *repository.Repository, cfg *config.AttendanceConfig) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}

	limit := cfg.HistoryLimit
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}

	return &Service{repo: repo, loc: loc, cutoff: cutoff, historyLimit: limit}, nil
}

// Today returns the calendar day of now in the deployment zone.
func (s *Service) Today(now time.Time) models.Date {
	return models.DateOf(now.In(s.loc))
}

// IsLate reports whether the wall-clock time of local is strictly after cutoff,
// measured from local midnight. Sub-second parts count.
func IsLate(local time.Time, cutoff time.Duration) bool {
	h, m, sec := local.Clock()
	sinceMidnight := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(local.Nanosecond())
	return sinceMidnight > cutoff
}

// ClockIn records the user's attendance for the local day containing now.
// Only the first call per day succeeds; the store's uniqueness on
// (user_id, date) decides races.
func (s *Service) ClockIn(ctx context.Context, userID int64, now time.Time) (*ClockInResult, error) {
	local := now.In(s.loc)
	rec := &models.AttendanceRecord{
		UserID:      userID,
		Date:        models.DateOf(local),
		ClockInTime: local,
		IsLate:      IsLate(local, s.cutoff),
	}

	// Stored in UTC; rec keeps the local time for the response.
	if err := s.repo.CreateAttendance(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyClockedIn
		}
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	slog.Info("clock_in", "user_id", userID, "date", rec.Date, "is_late", rec.IsLate)

	return &ClockInResult{
		Record: rec,
		Time:   local.Format(time.TimeOnly),
		IsLate: rec.IsLate,
	}, nil
}

// History returns up to limit of the user's records, most recent first.
// A non-positive limit means the configured default; the maximum is MaxHistoryLimit.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]models.AttendanceRecord, error) {
	switch {
	case limit <= 0:
		limit = s.historyLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	records, err := s.repo.ListAttendanceByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	for i := range records {
		s.localize(&records[i])
	}
	return records, nil
}

// CompanyPresence reports which interns of company clocked in on date.
func (s *Service) CompanyPresence(ctx context.Context, company string, date models.Date) (*Presence, error) {
	present, err := s.repo.ListPresenceByCompany(ctx, models.RoleIntern, company, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load company presence: %w", err)
	}
	total, err := s.repo.CountUsersByCompany(ctx, models.RoleIntern, company)
	if err != nil {
		return nil, fmt.Errorf("failed to count interns: %w", err)
	}
	return s.presence(date, present, total), nil
}

// SchoolPresence reports which students of school clocked in on date.
func (s *Service) SchoolPresence(ctx context.Context, school string, date models.Date) (*Presence, error) {
	present, err := s.repo.ListPresenceBySchool(ctx, models.RoleStudent, school, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load school presence: %w", err)
	}
	total, err := s.repo.CountUsersBySchool(ctx, models.RoleStudent, school)
	if err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}
	return s.presence(date, present, total), nil
}

func (s *Service) presence(date models.Date, present []models.PresenceEntry, total int64) *Presence {
	for i := range present {
		s.localize(&present[i].AttendanceRecord)
	}
	return &Presence{Date: date, Present: present, PresentCount: len(present), Total: total}
}

// localize converts stored UTC instants to the deployment zone.
func (s *Service) localize(rec *models.AttendanceRecord) {
	rec.ClockInTime = rec.ClockInTime.In(s.loc)
	if rec.ClockOutTime != nil {
		t := rec.ClockOutTime.In(s.loc)
		rec.ClockOutTime = &t
	}
}

// Dashboard builds the view for user's role: personal history for interns
// and students, the managed group's presence on day for supervisors and
// lecturers. An empty day means today.
func (s *Service) Dashboard(ctx context.Context, user *models.User, now time.Time, day models.Date) (*DashboardData, error) {
	today := s.Today(now)
	if day == "" {
		day = today
	}
	data := &DashboardData{Role: user.Role(), Today: today, Date: day}

	switch role := user.Role(); {
	case role.IsManagement():
		presence, err := s.groupPresence(ctx, user.Profile, day)
		if err != nil {
			return nil, err
		}
		data.Type = DashboardManagement
		data.Presence = presence
	case role == models.RoleIntern || role == models.RoleStudent:
		history, err := s.History(ctx, user.ID, 0)
		if err != nil {
			return nil, err
		}
		clockedIn, err := s.clockedIn(ctx, user.ID, today)
		if err != nil {
			return nil, err
		}
		data.Type = DashboardPersonal
		data.History = history
		data.ClockedInToday = clockedIn
		if data.History == nil {
			data.History = []models.AttendanceRecord{}
		}
	default:
		return nil, ErrUnsupportedRole
	}

	return data, nil
}

func (s *Service) groupPresence(ctx context.Context, profile models.Profile, day models.Date) (*Presence, error) {
	switch p := profile.(type) {
	case models.SupervisorProfile:
		return s.CompanyPresence(ctx, p.Company, day)
	case models.LecturerProfile:
		return s.SchoolPresence(ctx, p.School, day)
	default:
		return nil, ErrUnsupportedRole
	}
}

func (s *Service) clockedIn(ctx context.Context, userID int64, day models.Date) (bool, error) {
	_, err := s.repo.GetAttendance(ctx, userID, day)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to load today's record: %w", err)
	}
}
