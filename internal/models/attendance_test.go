// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"
	"time"

	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)

	// 23:30 UTC is already the next day in Lagos (UTC+1).
	instant := time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, models.Date("2024-01-10"), models.DateOf(instant))
	assert.Equal(t, models.Date("2024-01-11"), models.DateOf(instant.In(lagos)))
}

func TestParseDate(t *testing.T) {
	d, err := models.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = models.ParseDate("2023-02-29")
	assert.Error(t, err)

	_, err = models.ParseDate("10/01/2024")
	assert.Error(t, err)
}

func TestDate_Scan(t *testing.T) {
	var d models.Date

	require.NoError(t, d.Scan("2024-01-10"))
	assert.Equal(t, models.Date("2024-01-10"), d)

	require.NoError(t, d.Scan([]byte("2024-01-11")))
	assert.Equal(t, models.Date("2024-01-11"), d)

	require.NoError(t, d.Scan(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.Date("2024-01-12"), d)

	assert.Error(t, d.Scan(42))
}

func TestDate_Value(t *testing.T) {
	v, err := models.Date("2024-01-10").Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", v)
}
