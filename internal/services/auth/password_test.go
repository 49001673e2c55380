// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/chronotrack/internal/services/auth"
)

func TestPasswordValidator(t *testing.T) {
	v := auth.NewPasswordValidator(6)

	tests := []struct {
		name     string
		password string
		code     string
	}{
		{"empty", "", "min_length"},
		{"five chars", "abcde", "min_length"},
		{"six chars", "abcdef", ""},
		{"multibyte counts characters", "äöüäöü", ""},
		{"72 bytes", strings.Repeat("a", 72), ""},
		{"73 bytes", strings.Repeat("a", 73), "max_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.password)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrWeakPassword)

			var pve *auth.PasswordValidationError
			require.True(t, errors.As(err, &pve))
			assert.Equal(t, tt.code, pve.Errors[0].Code)
			assert.NotEmpty(t, pve.Messages())
		})
	}
}

func TestNewPasswordValidator_DefaultsMinLength(t *testing.T) {
	assert.Equal(t, 6, auth.NewPasswordValidator(0).MinLength)
	assert.Equal(t, 10, auth.NewPasswordValidator(10).MinLength)
}

func TestPasswordValidationError_Message(t *testing.T) {
	assert.Equal(t, "password validation failed", (&auth.PasswordValidationError{}).Error())
}
