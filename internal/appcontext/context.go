// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context carrying the session user.
package appcontext

import (
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/services/session"
)

// Context is a custom Echo context with the resolved session.
type Context struct {
	echo.Context
	User    *models.User  // nil if not authenticated
	Session *session.Data // nil if not authenticated
}

// UserFrom returns the authenticated user of c, or nil when c is not a
// *Context or carries no user.
func UserFrom(c echo.Context) *models.User {
	if cc, ok := c.(*Context); ok {
		return cc.User
	}
	return nil
}

// Wrap returns c as a *Context, wrapping it if needed.
func Wrap(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	return &Context{Context: c}
}
