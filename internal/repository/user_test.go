// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/repository"
	"codeberg.org/oliverandrich/chronotrack/internal/testutil"
)

func newUnverified(email string, profile models.Profile, codeHash string, expires time.Time) *models.User {
	return &models.User{
		Email:                   email,
		PasswordHash:            "hash",
		FullName:                "Test User",
		Profile:                 profile,
		VerificationCodeHash:    codeHash,
		VerificationCodeExpires: &expires,
	}
}

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := newUnverified("ada@example.com", models.InternProfile{Company: "Acme"}, "digest", time.Now().Add(time.Hour))
	err := repo.CreateUser(ctx, user)

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotZero(t, user.CreatedAt)
	assert.Equal(t, user.CreatedAt, user.PasswordChangedAt)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.NewTestUser(t, repo, "dup@example.com", models.InternProfile{Company: "Acme"})

	err := repo.CreateUser(ctx, &models.User{
		Email:        "dup@example.com",
		PasswordHash: "hash",
		FullName:     "Other",
		Profile:      models.StudentProfile{School: "Unilag", Programme: "CS", Level: "100", MatricNumber: "1"},
	})

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestCreateUser_RequiresProfile(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.CreateUser(context.Background(), &models.User{Email: "x@example.com", PasswordHash: "h"})

	assert.ErrorIs(t, err, models.ErrIncompleteProfile)
}

func TestGetUserByID_RoundTripsEveryProfile(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	profiles := map[string]models.Profile{
		"intern@example.com":     models.InternProfile{Company: "Acme"},
		"supervisor@example.com": models.SupervisorProfile{Company: "Acme"},
		"student@example.com":    models.StudentProfile{School: "Unilag", Programme: "CS", Level: "200", MatricNumber: "M-42"},
		"lecturer@example.com":   models.LecturerProfile{School: "Unilag", Programme: "CS", Courses: []string{"CSC201", "CSC202"}},
		"nocourses@example.com":  models.LecturerProfile{School: "Unilag", Programme: "CS"},
	}

	for email, profile := range profiles {
		t.Run(email, func(t *testing.T) {
			created := testutil.NewTestUser(t, repo, email, profile)

			got, err := repo.GetUserByID(ctx, created.ID)
			require.NoError(t, err)

			assert.Equal(t, email, got.Email)
			assert.Equal(t, profile.Role(), got.Role())
			if lp, ok := profile.(models.LecturerProfile); ok && lp.Courses == nil {
				assert.Equal(t, models.LecturerProfile{School: "Unilag", Programme: "CS", Courses: []string{}}, got.Profile)
			} else {
				assert.Equal(t, profile, got.Profile)
			}
			assert.True(t, got.EmailVerified)
			assert.Nil(t, got.ResetTokenExpires)
		})
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByID(context.Background(), 999)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	created := testutil.NewTestUser(t, repo, "find@example.com", models.InternProfile{Company: "Acme"})

	got, err := repo.GetUserByEmail(ctx, "find@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkEmailVerified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	user := newUnverified("v@example.com", models.InternProfile{Company: "Acme"}, "good", now.Add(time.Hour))
	require.NoError(t, repo.CreateUser(ctx, user))

	ok, err := repo.MarkEmailVerified(ctx, user.ID, "wrong", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkEmailVerified(ctx, user.ID, "good", now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.Empty(t, got.VerificationCodeHash)
	assert.Nil(t, got.VerificationCodeExpires)

	ok, err = repo.MarkEmailVerified(ctx, user.ID, "good", now)
	require.NoError(t, err)
	assert.False(t, ok, "a code is consumed once")
}

func TestMarkEmailVerified_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	user := newUnverified("e@example.com", models.InternProfile{Company: "Acme"}, "code", now.Add(-time.Minute))
	require.NoError(t, repo.CreateUser(ctx, user))

	ok, err := repo.MarkEmailVerified(ctx, user.ID, "code", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetVerificationCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	user := newUnverified("r@example.com", models.InternProfile{Company: "Acme"}, "old", now.Add(time.Hour))
	require.NoError(t, repo.CreateUser(ctx, user))

	ok, err := repo.SetVerificationCode(ctx, user.ID, "new", now.Add(2*time.Hour), now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkEmailVerified(ctx, user.ID, "old", now)
	require.NoError(t, err)
	assert.False(t, ok, "the replaced code no longer verifies")

	ok, err = repo.MarkEmailVerified(ctx, user.ID, "new", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetVerificationCode(ctx, user.ID, "again", now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.False(t, ok, "verified users get no new code")
}

func TestResetPassword(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	user := testutil.NewTestUser(t, repo, "reset@example.com", models.InternProfile{Company: "Acme"})
	require.NoError(t, repo.SetResetToken(ctx, user.ID, "tok", now.Add(time.Hour), now))

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok", stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpires)
	assert.WithinDuration(t, now.Add(time.Hour), *stored.ResetTokenExpires, time.Second)

	id, err := repo.ResetPassword(ctx, "tok", "newhash", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
	assert.Empty(t, got.ResetTokenHash)
	assert.Nil(t, got.ResetTokenExpires)
	assert.True(t, got.PasswordChangedAt.After(user.PasswordChangedAt))

	_, err = repo.ResetPassword(ctx, "tok", "again", now.Add(2*time.Minute))
	assert.ErrorIs(t, err, repository.ErrNotFound, "a token is single use")
}

func TestResetPassword_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	user := testutil.NewTestUser(t, repo, "late@example.com", models.InternProfile{Company: "Acme"})
	require.NoError(t, repo.SetResetToken(ctx, user.ID, "tok", now.Add(time.Hour), now))

	_, err := repo.ResetPassword(ctx, "tok", "newhash", now.Add(time.Hour+time.Second))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "not-a-bcrypt-hash", got.PasswordHash)
}

func TestSetResetToken_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.SetResetToken(context.Background(), 42, "tok", time.Now(), time.Now())

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPing(t *testing.T) {
	db, repo := testutil.NewTestDB(t)

	require.NoError(t, repo.Ping(context.Background()))

	_ = db.Close()
	assert.Error(t, repo.Ping(context.Background()))
}

func TestQueryTimeout_ReportsUnavailable(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	repo := repository.New(db, repository.WithQueryTimeout(time.Nanosecond))

	_, err := repo.GetUserByID(context.Background(), 1)

	assert.ErrorIs(t, err, repository.ErrUnavailable)
}
