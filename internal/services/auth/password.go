// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"fmt"
	"unicode/utf8"
)

// maxPasswordBytes is bcrypt's input limit; longer inputs are rejected, not truncated.
const maxPasswordBytes = 72

// PasswordValidator validates passwords against length rules
type PasswordValidator struct {
	MinLength int // in characters
	MaxBytes  int
}

// NewPasswordValidator returns a validator requiring at least minLength characters.
func NewPasswordValidator(minLength int) *PasswordValidator {
	if minLength <= 0 {
		minLength = 6
	}
	return &PasswordValidator{MinLength: minLength, MaxBytes: maxPasswordBytes}
}

// ValidationError represents a single password validation error
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// PasswordValidationError wraps multiple validation errors
type PasswordValidationError struct {
	Errors []ValidationError
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return e.Errors[0].Message
}

// Is makes errors.Is(err, ErrWeakPassword) hold.
func (e *PasswordValidationError) Is(target error) bool {
	return target == ErrWeakPassword
}

// Messages returns all error messages
func (e *PasswordValidationError) Messages() []string {
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Message
	}
	return messages
}

// Validate returns nil or a *PasswordValidationError.
func (v *PasswordValidator) Validate(password string) error {
	var errs []ValidationError

	if utf8.RuneCountInString(password) < v.MinLength {
		errs = append(errs, ValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", v.MinLength),
		})
	}

	if len(password) > v.MaxBytes {
		errs = append(errs, ValidationError{
			Code:    "max_length",
			Message: fmt.Sprintf("Password must be at most %d bytes long.", v.MaxBytes),
		})
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}
	return nil
}
