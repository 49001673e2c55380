// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package appcontext_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"codeberg.org/oliverandrich/chronotrack/internal/appcontext"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
)

func TestUserFrom(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Nil(t, appcontext.UserFrom(c), "plain echo context has no user")

	user := &models.User{ID: 7}
	assert.Equal(t, user, appcontext.UserFrom(&appcontext.Context{Context: c, User: user}))
}

func TestWrap(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	wrapped := appcontext.Wrap(c)
	assert.Nil(t, wrapped.User)
	assert.Same(t, wrapped, appcontext.Wrap(wrapped))
}
