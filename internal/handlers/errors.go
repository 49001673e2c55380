// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/chronotrack/internal/i18n"
	"codeberg.org/oliverandrich/chronotrack/internal/repository"
	"codeberg.org/oliverandrich/chronotrack/internal/services/attendance"
	"codeberg.org/oliverandrich/chronotrack/internal/services/auth"
)

// RetryAfterSeconds is sent with 503 responses.
const RetryAfterSeconds = 5

var (
	// ErrInvalidRequest is returned for unreadable request bodies.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthenticated is returned when a route needs a session and has none.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrEmailUnverified is returned when a route needs a verified account.
	ErrEmailUnverified = errors.New("email not verified")
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

type errorClass struct {
	target    error
	status    int
	code      string
	messageID string
}

// errorClasses is checked in order; the first errors.Is match wins.
var errorClasses = []errorClass{
	{ErrInvalidRequest, http.StatusBadRequest, "invalid_request", "error_invalid_request"},
	{auth.ErrWeakPassword, http.StatusBadRequest, "weak_password", "error_weak_password"},
	{auth.ErrInvalidEmail, http.StatusBadRequest, "invalid_email", "error_invalid_email"},
	{auth.ErrInvalidProfile, http.StatusBadRequest, "invalid_profile", "error_invalid_profile"},
	{auth.ErrInvalidCode, http.StatusBadRequest, "invalid_code", "error_invalid_code"},
	{auth.ErrInvalidOrExpiredToken, http.StatusBadRequest, "invalid_or_expired_token", "error_invalid_or_expired_token"},
	{auth.ErrDuplicateEmail, http.StatusConflict, "duplicate_email", "error_duplicate_email"},
	{auth.ErrAlreadyVerified, http.StatusConflict, "already_verified", "error_already_verified"},
	{attendance.ErrAlreadyClockedIn, http.StatusConflict, "already_clocked_in", "error_already_clocked_in"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "error_invalid_credentials"},
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "error_unauthenticated"},
	{auth.ErrUserNotFound, http.StatusUnauthorized, "unauthenticated", "error_unauthenticated"},
	{ErrEmailUnverified, http.StatusForbidden, "email_unverified", "error_email_unverified"},
	{attendance.ErrUnsupportedRole, http.StatusForbidden, "unsupported_role", "error_unsupported_role"},
	{repository.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "error_unavailable"},
}

// WriteError renders err as a localized JSON error. Unclassified errors
// become a generic 500; their text is logged, never sent.
func WriteError(c echo.Context, err error) error {
	ctx := c.Request().Context()

	for _, class := range errorClasses {
		if !errors.Is(err, class.target) {
			continue
		}
		resp := ErrorResponse{Error: i18n.T(ctx, class.messageID), Code: class.code}

		var pwErr *auth.PasswordValidationError
		if errors.As(err, &pwErr) {
			resp.Details = pwErr.Messages()
		}
		if class.status == http.StatusServiceUnavailable {
			slog.Warn("store_unavailable", "path", c.Path(), "error", err)
			c.Response().Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		}
		return c.JSON(class.status, resp)
	}

	slog.Error("request_failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: i18n.T(ctx, "error_internal"),
		Code:  "internal",
	})
}

// HTTPErrorHandler renders echo's own errors (404, 405, CSRF, rate limit,
// body limit) in the same JSON shape as WriteError.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = WriteError(c, err)
		return
	}

	ctx := c.Request().Context()
	resp := ErrorResponse{Code: "http_" + strconv.Itoa(he.Code)}
	switch he.Code {
	case http.StatusTooManyRequests:
		resp.Code = "rate_limited"
		resp.Error = i18n.T(ctx, "error_rate_limited")
	case http.StatusInternalServerError:
		slog.Error("request_failed", "path", c.Path(), "error", err)
		resp.Code = "internal"
		resp.Error = i18n.T(ctx, "error_internal")
	default:
		resp.Error = http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok && msg != "" {
			resp.Error = msg
		}
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(he.Code)
	} else {
		writeErr = c.JSON(he.Code, resp)
	}
	if writeErr != nil {
		slog.Error("error_response_failed", "error", writeErr)
	}
}
