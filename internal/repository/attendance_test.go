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

func clockIn(t *testing.T, repo *repository.Repository, userID int64, date string, late bool) *models.AttendanceRecord {
	t.Helper()
	d, err := models.ParseDate(date)
	require.NoError(t, err)
	rec := &models.AttendanceRecord{
		UserID:      userID,
		Date:        d,
		ClockInTime: time.Now().UTC(),
		IsLate:      late,
	}
	require.NoError(t, repo.CreateAttendance(context.Background(), rec))
	return rec
}

func TestCreateAttendance(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "i@example.com", models.InternProfile{Company: "Acme"})

	rec := clockIn(t, repo, user.ID, "2024-01-10", true)
	assert.NotZero(t, rec.ID)

	got, err := repo.GetAttendance(ctx, user.ID, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, models.Date("2024-01-10"), got.Date)
	assert.True(t, got.IsLate)
	assert.Nil(t, got.ClockOutTime)
	assert.WithinDuration(t, rec.ClockInTime, got.ClockInTime, time.Millisecond)
}

func TestCreateAttendance_SameDayIsDuplicate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "i@example.com", models.InternProfile{Company: "Acme"})

	clockIn(t, repo, user.ID, "2024-01-10", false)

	err := repo.CreateAttendance(context.Background(), &models.AttendanceRecord{
		UserID: user.ID, Date: "2024-01-10", ClockInTime: time.Now(),
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	clockIn(t, repo, user.ID, "2024-01-11", false)
}

func TestGetAttendance_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetAttendance(context.Background(), 1, "2024-01-10")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListAttendanceByUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "i@example.com", models.InternProfile{Company: "Acme"})
	other := testutil.NewTestUser(t, repo, "o@example.com", models.InternProfile{Company: "Acme"})

	clockIn(t, repo, user.ID, "2024-01-09", false)
	clockIn(t, repo, user.ID, "2024-01-11", false)
	clockIn(t, repo, user.ID, "2024-01-10", true)
	clockIn(t, repo, other.ID, "2024-01-12", false)

	records, err := repo.ListAttendanceByUser(ctx, user.ID, 30)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, models.Date("2024-01-11"), records[0].Date)
	assert.Equal(t, models.Date("2024-01-10"), records[1].Date)
	assert.Equal(t, models.Date("2024-01-09"), records[2].Date)

	records, err = repo.ListAttendanceByUser(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = repo.ListAttendanceByUser(ctx, 999, 30)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestListPresenceByCompany(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	a := testutil.NewTestUser(t, repo, "a@example.com", models.InternProfile{Company: "Acme"})
	b := testutil.NewTestUser(t, repo, "b@example.com", models.InternProfile{Company: "Acme"})
	testutil.NewTestUser(t, repo, "c@example.com", models.InternProfile{Company: "Acme"})
	other := testutil.NewTestUser(t, repo, "d@example.com", models.InternProfile{Company: "Globex"})
	boss := testutil.NewTestUser(t, repo, "boss@example.com", models.SupervisorProfile{Company: "Acme"})

	clockIn(t, repo, a.ID, "2024-01-10", false)
	clockIn(t, repo, b.ID, "2024-01-10", true)
	clockIn(t, repo, b.ID, "2024-01-09", false)
	clockIn(t, repo, other.ID, "2024-01-10", false)
	clockIn(t, repo, boss.ID, "2024-01-10", false)

	entries, err := repo.ListPresenceByCompany(ctx, models.RoleIntern, "Acme", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	names := []string{entries[0].FullName, entries[1].FullName}
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	total, err := repo.CountUsersByCompany(ctx, models.RoleIntern, "Acme")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	entries, err = repo.ListPresenceByCompany(ctx, models.RoleIntern, "Initech", "2024-01-10")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListPresenceBySchool(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	s1 := testutil.NewTestUser(t, repo, "s1@example.com",
		models.StudentProfile{School: "Unilag", Programme: "CS", Level: "100", MatricNumber: "1"})
	testutil.NewTestUser(t, repo, "s2@example.com",
		models.StudentProfile{School: "Unilag", Programme: "CS", Level: "100", MatricNumber: "2"})
	elsewhere := testutil.NewTestUser(t, repo, "s3@example.com",
		models.StudentProfile{School: "OAU", Programme: "CS", Level: "100", MatricNumber: "3"})
	lecturer := testutil.NewTestUser(t, repo, "l@example.com",
		models.LecturerProfile{School: "Unilag", Programme: "CS"})

	clockIn(t, repo, s1.ID, "2024-01-10", false)
	clockIn(t, repo, elsewhere.ID, "2024-01-10", false)
	clockIn(t, repo, lecturer.ID, "2024-01-10", false)

	entries, err := repo.ListPresenceBySchool(ctx, models.RoleStudent, "Unilag", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, s1.ID, entries[0].UserID)
	assert.Equal(t, "s1", entries[0].FullName)

	total, err := repo.CountUsersBySchool(ctx, models.RoleStudent, "Unilag")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestDeletingUser_CascadesAttendance(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "gone@example.com", models.InternProfile{Company: "Acme"})
	clockIn(t, repo, user.ID, "2024-01-10", false)

	_, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, user.ID)
	require.NoError(t, err)

	_, err = repo.GetAttendance(ctx, user.ID, "2024-01-10")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateAttendance_StoresUTC(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "i@example.com", models.InternProfile{Company: "Acme"})
	lagos := time.FixedZone("WAT", 3600)
	at := time.Date(2024, 1, 10, 9, 15, 0, 0, lagos)

	require.NoError(t, repo.CreateAttendance(ctx, &models.AttendanceRecord{UserID: user.ID, Date: "2024-01-10", ClockInTime: at}))

	var stored time.Time
	require.NoError(t, db.GetContext(ctx, &stored, `SELECT clock_in_time FROM attendance WHERE user_id = ?`, user.ID))
	_, offset := stored.Zone()
	assert.Zero(t, offset)
	assert.True(t, at.Equal(stored))
}

func TestListPresence_OrdersByInstantAcrossOffsets(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	early := testutil.NewTestUser(t, repo, "early@example.com", models.InternProfile{Company: "Acme"})
	late := testutil.NewTestUser(t, repo, "late@example.com", models.InternProfile{Company: "Acme"})

	// 08:00Z written with a +01:00 offset sorts after 08:30Z when compared as text.
	require.NoError(t, repo.CreateAttendance(ctx, &models.AttendanceRecord{
		UserID: late.ID, Date: "2024-01-10", ClockInTime: time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC),
	}))
	require.NoError(t, repo.CreateAttendance(ctx, &models.AttendanceRecord{
		UserID: early.ID, Date: "2024-01-10", ClockInTime: time.Date(2024, 1, 10, 9, 0, 0, 0, time.FixedZone("WAT", 3600)),
	}))

	entries, err := repo.ListPresenceByCompany(ctx, models.RoleIntern, "Acme", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, early.ID, entries[0].UserID)
	assert.Equal(t, late.ID, entries[1].UserID)
}
