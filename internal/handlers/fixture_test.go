// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/chronotrack/internal/appcontext"
	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/handlers"
	"codeberg.org/oliverandrich/chronotrack/internal/i18n"
	"codeberg.org/oliverandrich/chronotrack/internal/metrics"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/repository"
	"codeberg.org/oliverandrich/chronotrack/internal/services/attendance"
	"codeberg.org/oliverandrich/chronotrack/internal/services/auth"
	"codeberg.org/oliverandrich/chronotrack/internal/services/session"
	"codeberg.org/oliverandrich/chronotrack/internal/testutil"
)

func init() {
	_ = i18n.Init()
}

const testHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

var lagos = mustLoad("Africa/Lagos")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type fixture struct {
	repo       *repository.Repository
	notifier   *testutil.FakeNotifier
	metrics    *metrics.Metrics
	authSvc    *auth.Service
	auth       *handlers.AuthHandlers
	attendance *handlers.AttendanceHandlers
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)

	f := &fixture{
		repo:     repo,
		notifier: &testutil.FakeNotifier{},
		metrics:  metrics.New(),
		now:      time.Date(2024, 1, 10, 8, 30, 0, 0, lagos),
	}
	clock := func() time.Time { return f.now }

	sessions, err := session.NewManager(&config.SessionConfig{
		CookieName: "_session",
		MaxAge:     3600,
		HashKey:    testHashKey,
	}, false)
	require.NoError(t, err)

	f.authSvc = auth.NewService(repo, &config.AuthConfig{
		MinPasswordLength:   6,
		VerificationCodeTTL: 24 * time.Hour,
		ResetTokenTTL:       time.Hour,
	}, f.notifier, "https://chronotrack.example.com",
		auth.WithClock(clock),
		auth.WithHasher(auth.NewHasher(bcrypt.MinCost)),
	)

	attendanceSvc, err := attendance.NewService(repo, &config.AttendanceConfig{
		Timezone:     "Africa/Lagos",
		LateCutoff:   "09:00:00",
		HistoryLimit: 30,
	})
	require.NoError(t, err)

	f.auth = handlers.NewAuth(f.authSvc, sessions, f.metrics)
	f.attendance = handlers.NewAttendance(attendanceSvc, f.metrics, clock)
	return f
}

// call runs h with a JSON body, as user when user is non-nil.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	c, rec := testutil.NewEchoContext(e, method, target, strings.NewReader(body))

	var ctx echo.Context = c
	if user != nil {
		ctx = &appcontext.Context{Context: c, User: user}
	}
	require.NoError(t, h(ctx))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handlers.ErrorResponse](t, rec).Code
}
