// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"encoding/json"
	"time"
)

// User is an account holder. The role is derived from Profile.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                      int64
	Email                   string
	PasswordHash            string
	FullName                string
	Profile                 Profile
	EmailVerified           bool
	VerificationCodeHash    string
	VerificationCodeExpires *time.Time
	ResetTokenHash          string
	ResetTokenExpires       *time.Time
	PasswordChangedAt       time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Role returns the role implied by the user's profile.
func (u *User) Role() Role {
	if u.Profile == nil {
		return ""
	}
	return u.Profile.Role()
}

// publicUser is the only JSON shape a User is ever rendered in.
type publicUser struct { //nolint:govet // fieldalignment: readability over optimization
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Role          Role      `json:"role"`
	Profile       Profile   `json:"profile,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// MarshalJSON renders the user without password hash, code or token digests.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(publicUser{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role(),
		Profile:       u.Profile,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	})
}
