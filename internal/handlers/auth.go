// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/chronotrack/internal/metrics"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/services/auth"
	"codeberg.org/oliverandrich/chronotrack/internal/services/session"
)

// AuthHandlers contains handlers for the account lifecycle.
type AuthHandlers struct {
	auth     *auth.Service
	sessions *session.Manager
	metrics  *metrics.Metrics
}

// NewAuth creates a new AuthHandlers instance. m may be nil.
func NewAuth(authService *auth.Service, sess *session.Manager, m *metrics.Metrics) *AuthHandlers {
	return &AuthHandlers{
		auth:     authService,
		sessions: sess,
		metrics:  m,
	}
}

// RegisterRequest is the request body for registration. Profile fields
// that do not belong to the chosen role are ignored.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	models.ProfileFields
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	User             *models.User `json:"user"`
	NotificationSent bool         `json:"notification_sent"`
	Message          string       `json:"message"`
}

// Register creates an unverified account and starts a session for it, so
// the client can submit the emailed code right away.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		return WriteError(c, err)
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		return WriteError(c, fmt.Errorf("%w: %w", auth.ErrInvalidProfile, err))
	}
	profile, err := models.BuildProfile(role, req.ProfileFields)
	if err != nil {
		return WriteError(c, fmt.Errorf("%w: %w", auth.ErrInvalidProfile, err))
	}

	result, err := h.auth.Register(c.Request().Context(), auth.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Profile:  profile,
	})
	if err != nil {
		return WriteError(c, err)
	}

	h.metrics.ObserveRegistration(string(role))
	h.metrics.ObserveNotification("verification", result.NotificationSent)

	if err := h.startSession(c, result.User.ID); err != nil {
		return WriteError(c, err)
	}

	return c.JSON(http.StatusCreated, RegisterResponse{
		User:             result.User,
		NotificationSent: result.NotificationSent,
		Message:          translate(c, "msg_registered"),
	})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse tells the client whether the account still needs verifying.
type LoginResponse struct {
	User                 *models.User `json:"user"`
	RequiresVerification bool         `json:"requires_verification"`
}

// Login checks the credentials and sets the session cookie.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return WriteError(c, err)
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.ObserveLogin(false)
		}
		return WriteError(c, err)
	}
	h.metrics.ObserveLogin(true)

	if err := h.startSession(c, result.User.ID); err != nil {
		return WriteError(c, err)
	}

	return c.JSON(http.StatusOK, LoginResponse{
		User:                 result.User,
		RequiresVerification: result.RequiresVerification,
	})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return ok(c, "msg_logged_out")
}

// Me returns the current user.
func (h *AuthHandlers) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// VerifyEmailRequest is the request body for email verification.
type VerifyEmailRequest struct {
	Code string `json:"code"`
}

// VerifyEmail checks the emailed code for the session user.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return WriteError(c, err)
	}

	var req VerifyEmailRequest
	if bindErr := bindJSON(c, &req); bindErr != nil {
		return WriteError(c, bindErr)
	}

	verified, err := h.auth.VerifyEmail(c.Request().Context(), user.ID, req.Code)
	if err != nil {
		return WriteError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user":    verified,
		"message": translate(c, "msg_email_verified"),
	})
}

// ResendVerification issues a fresh code for the session user.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return WriteError(c, err)
	}

	result, err := h.auth.ResendVerification(c.Request().Context(), user.ID)
	if err != nil {
		return WriteError(c, err)
	}
	h.metrics.ObserveNotification("verification", result.NotificationSent)

	return c.JSON(http.StatusOK, map[string]any{
		"notification_sent": result.NotificationSent,
		"message":           translate(c, "msg_verification_sent"),
	})
}

// ForgotPasswordRequest is the request body for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword answers identically whether or not the address is known.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		return WriteError(c, err)
	}

	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return WriteError(c, err)
	}
	return ok(c, "msg_forgot_password")
}

// ResetPasswordRequest is the request body for completing a reset.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword sets a new password and ends the caller's session. Sessions
// issued before the change are rejected by the session middleware.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		return WriteError(c, err)
	}

	if err := h.auth.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return WriteError(c, err)
	}

	c.SetCookie(h.sessions.Clear())
	return ok(c, "msg_password_reset")
}

func (h *AuthHandlers) startSession(c echo.Context, userID int64) error {
	cookie, err := h.sessions.Create(userID)
	if err != nil {
		slog.Error("session_create_failed", "user_id", userID, "error", err)
		return err
	}
	c.SetCookie(cookie)
	return nil
}
