// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/database"
	"codeberg.org/oliverandrich/chronotrack/internal/handlers"
	"codeberg.org/oliverandrich/chronotrack/internal/i18n"
	"codeberg.org/oliverandrich/chronotrack/internal/metrics"
	"codeberg.org/oliverandrich/chronotrack/internal/repository"
	"codeberg.org/oliverandrich/chronotrack/internal/services/attendance"
	"codeberg.org/oliverandrich/chronotrack/internal/services/auth"
	"codeberg.org/oliverandrich/chronotrack/internal/services/email"
	"codeberg.org/oliverandrich/chronotrack/internal/services/session"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators New wires into the application.
type Deps struct {
	Repo     *repository.Repository
	Notifier auth.Notifier    // nil disables account emails
	Now      func() time.Time // nil means time.Now
	Metrics  *metrics.Metrics // nil creates a fresh registry

	AuthOptions []auth.Option
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"dialect", database.Dialect(cfg.Database.DSN),
		"timezone", cfg.Attendance.Timezone,
	)

	// Database, migrations included
	db, err := database.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Email
	var notifier auth.Notifier
	if cfg.SMTP.Enabled() {
		mailer, mailErr := email.NewService(&cfg.SMTP, &cfg.Auth)
		if mailErr != nil {
			return fmt.Errorf("failed to configure email: %w", mailErr)
		}
		notifier = mailer
	} else {
		slog.Warn("smtp_disabled", "reason", "no SMTP host or sender configured, account emails are skipped")
	}

	e, err := New(cfg, Deps{
		Repo:     repository.New(db, repository.WithQueryTimeout(cfg.Database.QueryTimeout)),
		Notifier: notifier,
	})
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg)
}

// New builds the Echo instance with all services, middleware and routes.
func New(cfg *config.Config, deps Deps) (*echo.Echo, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	secure := cfg.Session.Secure || strings.HasPrefix(cfg.Server.BaseURL, "https://")
	sessions, err := session.NewManager(&cfg.Session, secure)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	authOpts := append([]auth.Option{auth.WithClock(deps.Now)}, deps.AuthOptions...)
	authService := auth.NewService(deps.Repo, &cfg.Auth, deps.Notifier, cfg.Server.BaseURL, authOpts...)
	attendanceService, err := attendance.NewService(deps.Repo, &cfg.Attendance)
	if err != nil {
		return nil, fmt.Errorf("failed to create attendance service: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	setupMiddleware(e, cfg, deps.Metrics)

	setupRoutes(e, routeDeps{
		cfg:        cfg,
		handlers:   handlers.New(deps.Repo),
		auth:       handlers.NewAuth(authService, sessions, deps.Metrics),
		attendance: handlers.NewAttendance(attendanceService, deps.Metrics, deps.Now),
		session:    AuthMiddleware(sessions, authService),
		metrics:    deps.Metrics,
	})

	return e, nil
}

type routeDeps struct {
	cfg        *config.Config
	handlers   *handlers.Handlers
	auth       *handlers.AuthHandlers
	attendance *handlers.AttendanceHandlers
	session    echo.MiddlewareFunc
	metrics    *metrics.Metrics
}

func setupRoutes(e *echo.Echo, d routeDeps) {
	h, ah, at := d.handlers, d.auth, d.attendance
	limited := rateLimiter(d.cfg.Auth.RateLimitPerMinute)
	authed := RequireAuth()
	verified := RequireVerified()

	e.GET("/health", h.Health)
	e.GET("/metrics", d.metrics.Handler())

	api := e.Group("/api", d.session)
	api.GET("/csrf", h.CSRFToken)
	api.GET("/me", ah.Me, authed)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", ah.Register, limited)
	authGroup.POST("/login", ah.Login, limited)
	authGroup.POST("/logout", ah.Logout)
	authGroup.POST("/forgot-password", ah.ForgotPassword, limited)
	authGroup.POST("/reset-password", ah.ResetPassword, limited)
	authGroup.POST("/verify-email", ah.VerifyEmail, authed, limited)
	authGroup.POST("/resend-verification", ah.ResendVerification, authed, limited)

	api.POST("/attendance/clock-in", at.ClockIn, verified)
	api.GET("/attendance/history", at.History, verified)
	api.GET("/dashboard", at.Dashboard, verified)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// HTTP-01 challenge and redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeACME:
		go func() {
			slog.Info("server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(ctx, e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http_redirect_active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(ctx, e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	default:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(ctx context.Context, e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	e.TLSServer.Handler = e
	e.TLSServer.ReadHeaderTimeout = 10 * time.Second
	return e.TLSServer.Serve(e.TLSListener)
}
