// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"errors"
	"fmt"
	"strings"
)

// Role is one of the four fixed account roles.
type Role string

const (
	RoleIntern     Role = "intern"
	RoleStudent    Role = "student"
	RoleSupervisor Role = "supervisor"
	RoleLecturer   Role = "lecturer"
)

var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrIncompleteProfile = errors.New("incomplete profile")
)

// ParseRole maps a case-insensitive role name to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleIntern, RoleStudent, RoleSupervisor, RoleLecturer:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// IsManagement reports whether the role sees aggregate presence instead of personal history.
func (r Role) IsManagement() bool {
	return r == RoleSupervisor || r == RoleLecturer
}

// Profile holds the role-specific part of a user. Exactly one variant exists per role.
type Profile interface {
	Role() Role
	Validate() error
	profile()
}

type InternProfile struct {
	Company string `json:"company"`
}

type SupervisorProfile struct {
	Company string `json:"company"`
}

type StudentProfile struct {
	School       string `json:"school"`
	Programme    string `json:"programme"`
	Level        string `json:"level"`
	MatricNumber string `json:"matric_number"`
}

type LecturerProfile struct {
	School    string   `json:"school"`
	Programme string   `json:"programme"`
	Courses   []string `json:"courses"`
}

func (InternProfile) Role() Role     { return RoleIntern }
func (SupervisorProfile) Role() Role { return RoleSupervisor }
func (StudentProfile) Role() Role    { return RoleStudent }
func (LecturerProfile) Role() Role   { return RoleLecturer }

func (InternProfile) profile()     {}
func (SupervisorProfile) profile() {}
func (StudentProfile) profile()    {}
func (LecturerProfile) profile()   {}

func (p InternProfile) Validate() error {
	return required("company", p.Company)
}

func (p SupervisorProfile) Validate() error {
	return required("company", p.Company)
}

func (p StudentProfile) Validate() error {
	return required("school", p.School, "programme", p.Programme, "level", p.Level, "matric_number", p.MatricNumber)
}

func (p LecturerProfile) Validate() error {
	return required("school", p.School, "programme", p.Programme)
}

// required takes name/value pairs and reports the blank ones.
func required(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteProfile, strings.Join(missing, ", "))
	}
	return nil
}

// ProfileFields is the flat, role-agnostic form of a profile, as received
// from clients and stored in the users table.
type ProfileFields struct {
	Company      string   `json:"company"`
	School       string   `json:"school"`
	Programme    string   `json:"programme"`
	Level        string   `json:"level"`
	MatricNumber string   `json:"matric_number"`
	Courses      []string `json:"courses"`
}

// BuildProfile assembles the variant for role, trimming values and ignoring
// fields that do not belong to it.
func BuildProfile(role Role, f ProfileFields) (Profile, error) {
	t := strings.TrimSpace
	switch role {
	case RoleIntern:
		return InternProfile{Company: t(f.Company)}, nil
	case RoleSupervisor:
		return SupervisorProfile{Company: t(f.Company)}, nil
	case RoleStudent:
		return StudentProfile{
			School:       t(f.School),
			Programme:    t(f.Programme),
			Level:        t(f.Level),
			MatricNumber: t(f.MatricNumber),
		}, nil
	case RoleLecturer:
		courses := make([]string, 0, len(f.Courses))
		for _, c := range f.Courses {
			if c = t(c); c != "" {
				courses = append(courses, c)
			}
		}
		return LecturerProfile{School: t(f.School), Programme: t(f.Programme), Courses: courses}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

// FieldsOf flattens a profile.
func FieldsOf(p Profile) ProfileFields {
	switch v := p.(type) {
	case InternProfile:
		return ProfileFields{Company: v.Company}
	case SupervisorProfile:
		return ProfileFields{Company: v.Company}
	case StudentProfile:
		return ProfileFields{School: v.School, Programme: v.Programme, Level: v.Level, MatricNumber: v.MatricNumber}
	case LecturerProfile:
		return ProfileFields{School: v.School, Programme: v.Programme, Courses: v.Courses}
	default:
		return ProfileFields{}
	}
}
