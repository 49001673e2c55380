// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"codeberg.org/oliverandrich/chronotrack/internal/appcontext"
	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/handlers"
	"codeberg.org/oliverandrich/chronotrack/internal/i18n"
	"codeberg.org/oliverandrich/chronotrack/internal/metrics"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/services/auth"
	"codeberg.org/oliverandrich/chronotrack/internal/services/session"
)

// UserLoader resolves the user behind a session.
type UserLoader interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

func setupMiddleware(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger())
	e.Use(m.Middleware())
	e.Use(middleware.Secure())
	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(csrfMiddleware(cfg))
	e.Use(i18nMiddleware())
}

// csrfMiddleware configures double-submit CSRF protection. API clients read
// the token from GET /api/csrf and send it in the X-CSRF-Token header.
func csrfMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	secure := cfg.Session.Secure || strings.HasPrefix(cfg.Server.BaseURL, "https://")

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	})
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
				slog.String("ip", v.RemoteIP),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			} else {
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			}

			return nil
		},
	})
}

// i18nMiddleware sets the locale based on Accept-Language header.
func i18nMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acceptLang := c.Request().Header.Get("Accept-Language")
			lang := i18n.MatchLanguage(acceptLang)
			ctx := i18n.WithLocale(c.Request().Context(), lang)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// AuthMiddleware resolves the session cookie into an *appcontext.Context.
// Sessions of deleted users and sessions issued before the user's last
// password change are dropped and their cookie cleared.
func AuthMiddleware(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := appcontext.Wrap(c)

			data, err := sessions.Parse(c.Request())
			if err != nil {
				return handlers.WriteError(c, err)
			}
			if data == nil {
				return next(cc)
			}

			user, err := users.GetUser(c.Request().Context(), data.UserID)
			if err != nil {
				if errors.Is(err, auth.ErrUserNotFound) {
					c.SetCookie(sessions.Clear())
					return next(cc)
				}
				return handlers.WriteError(c, err)
			}

			if data.IssuedAt.Before(user.PasswordChangedAt) {
				slog.Info("session_revoked", "user_id", user.ID, "reason", "password_changed")
				c.SetCookie(sessions.Clear())
				return next(cc)
			}

			cc.User = user
			cc.Session = data
			return next(cc)
		}
	}
}

// RequireAuth rejects requests without a session user.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if appcontext.UserFrom(c) == nil {
				return handlers.WriteError(c, handlers.ErrUnauthenticated)
			}
			return next(c)
		}
	}
}

// RequireVerified rejects users whose email is not verified. It implies RequireAuth.
func RequireVerified() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := appcontext.UserFrom(c)
			if user == nil {
				return handlers.WriteError(c, handlers.ErrUnauthenticated)
			}
			if !user.EmailVerified {
				return handlers.WriteError(c, handlers.ErrEmailUnverified)
			}
			return next(c)
		}
	}
}

// rateLimiter allows perMinute requests per client IP with a burst of the
// same size. Zero or less disables limiting.
func rateLimiter(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			slog.Warn("rate_limited", "ip", identifier, "path", c.Path())
			return echo.NewHTTPError(http.StatusTooManyRequests)
		},
	})
}
