// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/chronotrack/internal/metrics"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/services/attendance"
)

// AttendanceHandlers contains handlers for clock-ins and dashboards.
type AttendanceHandlers struct {
	attendance *attendance.Service
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAttendance creates a new AttendanceHandlers instance. A nil clock means time.Now.
func NewAttendance(svc *attendance.Service, m *metrics.Metrics, now func() time.Time) *AttendanceHandlers {
	if now == nil {
		now = time.Now
	}
	return &AttendanceHandlers{attendance: svc, metrics: m, now: now}
}

// ClockIn records today's attendance for the session user.
func (h *AttendanceHandlers) ClockIn(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return WriteError(c, err)
	}

	result, err := h.attendance.ClockIn(c.Request().Context(), user.ID, h.now())
	if err != nil {
		if errors.Is(err, attendance.ErrAlreadyClockedIn) {
			h.metrics.ObserveClockIn("duplicate")
		}
		return WriteError(c, err)
	}

	outcome := "on_time"
	if result.IsLate {
		outcome = "late"
	}
	h.metrics.ObserveClockIn(outcome)

	return c.JSON(http.StatusCreated, result)
}

// History lists the session user's records, newest first. The optional
// limit query parameter is clamped by the service.
func (h *AttendanceHandlers) History(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return WriteError(c, err)
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return WriteError(c, fmt.Errorf("%w: limit: %w", ErrInvalidRequest, err))
		}
	}

	records, err := h.attendance.History(c.Request().Context(), user.ID, limit)
	if err != nil {
		return WriteError(c, err)
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// Dashboard returns the role-scoped view for the session user. The optional
// date query parameter (YYYY-MM-DD) selects the day of a management view.
func (h *AttendanceHandlers) Dashboard(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return WriteError(c, err)
	}

	var day models.Date
	if raw := c.QueryParam("date"); raw != "" {
		if day, err = models.ParseDate(raw); err != nil {
			return WriteError(c, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		}
	}

	data, err := h.attendance.Dashboard(c.Request().Context(), user, h.now(), day)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, data)
}
