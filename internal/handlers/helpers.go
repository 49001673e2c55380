// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/chronotrack/internal/appcontext"
	"codeberg.org/oliverandrich/chronotrack/internal/i18n"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
)

// MessageResponse is the JSON body of actions that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// bindJSON decodes the request body into dst.
func bindJSON(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// currentUser returns the session user or ErrUnauthenticated.
func currentUser(c echo.Context) (*models.User, error) {
	user := appcontext.UserFrom(c)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// translate localizes messageID for the request's locale.
func translate(c echo.Context, messageID string) string {
	return i18n.T(c.Request().Context(), messageID)
}

// message renders a localized confirmation.
func message(c echo.Context, status int, messageID string) error {
	return c.JSON(status, MessageResponse{Message: translate(c, messageID)})
}

// ok is message with 200.
func ok(c echo.Context, messageID string) error {
	return message(c, http.StatusOK, messageID)
}
