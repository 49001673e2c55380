// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var (
	configPath = "config.toml"
	configFile = altsrc.NewStringPtrSourcer(&configPath)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server     ServerConfig
	TLS        TLSConfig
	Log        LogConfig
	Database   DatabaseConfig
	Session    SessionConfig
	SMTP       SMTPConfig
	Auth       AuthConfig
	Attendance AttendanceConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type TLSConfig struct {
	Mode     string // auto, off, acme, manual
	CertFile string
	KeyFile  string
	Email    string // ACME account email
	CertDir  string // ACME certificate cache
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct { //nolint:govet // fieldalignment not critical for config structs
	DSN          string        // file path / :memory: for SQLite, postgres:// URL for PostgreSQL
	MaxOpenConns int           // upper bound of pooled connections
	QueryTimeout time.Duration // deadline applied to every storage call
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
	Secure     bool   // HTTPS only cookie
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outgoing mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	MinPasswordLength   int
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
	RateLimitPerMinute  int

	// ForgotPasswordMinDuration is the floor for every forgot-password
	// response, known address or not. Zero disables it.
	ForgotPasswordMinDuration time.Duration
}

type AttendanceConfig struct {
	Timezone     string // IANA zone used for the whole deployment
	LateCutoff   string // HH:MM:SS, clock-ins strictly after it are late
	HistoryLimit int
}

// Location resolves the configured deployment timezone.
func (c AttendanceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid attendance timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Cutoff parses LateCutoff into an offset from local midnight.
func (c AttendanceConfig) Cutoff() (time.Duration, error) {
	return ParseTimeOfDay(c.LateCutoff)
}

// ParseTimeOfDay parses "HH:MM:SS" (or "HH:MM") into a duration since midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	layout := "15:04:05"
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
			Email:    cmd.String("tls-email"),
			CertDir:  cmd.String("tls-cert-dir"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN:          cmd.String("database-dsn"),
			MaxOpenConns: int(cmd.Int("database-max-open-conns")),
			QueryTimeout: cmd.Duration("database-query-timeout"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
			Secure:     cmd.Bool("session-secure"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Auth: AuthConfig{
			MinPasswordLength:   int(cmd.Int("min-password-length")),
			VerificationCodeTTL: cmd.Duration("verification-code-ttl"),
			ResetTokenTTL:       cmd.Duration("reset-token-ttl"),
			RateLimitPerMinute:  int(cmd.Int("rate-limit-per-minute")),

			ForgotPasswordMinDuration: cmd.Duration("forgot-password-min-duration"),
		},
		Attendance: AttendanceConfig{
			Timezone:     cmd.String("timezone"),
			LateCutoff:   cmd.String("late-cutoff"),
			HistoryLimit: int(cmd.Int("history-limit")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	return cfg
}

// Validate checks settings that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if _, err := c.Attendance.Location(); err != nil {
		return err
	}
	if _, err := c.Attendance.Cutoff(); err != nil {
		return err
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("min password length must be positive, got %d", c.Auth.MinPasswordLength)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database max open conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if cfg.Session.Secure {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CHRONOTRACK_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   5001,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL, used in password reset links",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		// TLS flags
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, off, acme, manual)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Certificate file for manual TLS",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Key file for manual TLS",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Let's Encrypt account email",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for cached ACME certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/chronotrack.db",
			Usage:   "SQLite path or postgres:// URL",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.IntFlag{
			Name:    "database-max-open-conns",
			Value:   10,
			Usage:   "Maximum number of pooled database connections",
			Sources: source("DATABASE_MAX_OPEN_CONNS", "database.max_open_conns"),
		},
		&cli.DurationFlag{
			Name:    "database-query-timeout",
			Value:   5 * time.Second,
			Usage:   "Deadline for a single storage call",
			Sources: source("DATABASE_QUERY_TIMEOUT", "database.query_timeout"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_chronotrack_session",
			Usage:   "Session cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   86400, // 24 hours in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
		&cli.BoolFlag{
			Name:    "session-secure",
			Usage:   "Send cookies over HTTPS only",
			Sources: source("SESSION_SECURE", "session.secure"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (mail is disabled when empty)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "ChronoTrack",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		// Auth flags
		&cli.IntFlag{
			Name:    "min-password-length",
			Value:   6,
			Usage:   "Minimum password length",
			Sources: source("MIN_PASSWORD_LENGTH", "auth.min_password_length"),
		},
		&cli.DurationFlag{
			Name:    "verification-code-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of email verification codes",
			Sources: source("VERIFICATION_CODE_TTL", "auth.verification_code_ttl"),
		},
		&cli.DurationFlag{
			Name:    "reset-token-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of password reset tokens",
			Sources: source("RESET_TOKEN_TTL", "auth.reset_token_ttl"),
		},
		&cli.DurationFlag{
			Name:    "forgot-password-min-duration",
			Value:   2 * time.Second,
			Usage:   "Minimum response time of forgot-password requests",
			Sources: source("FORGOT_PASSWORD_MIN_DURATION", "auth.forgot_password_min_duration"),
		},
		&cli.IntFlag{
			Name:    "rate-limit-per-minute",
			Value:   30,
			Usage:   "Requests per minute per client on auth endpoints (0 disables)",
			Sources: source("RATE_LIMIT_PER_MINUTE", "auth.rate_limit_per_minute"),
		},
		// Attendance flags
		&cli.StringFlag{
			Name:    "timezone",
			Value:   "Africa/Lagos",
			Usage:   "IANA timezone of the deployment",
			Sources: source("TIMEZONE", "attendance.timezone"),
		},
		&cli.StringFlag{
			Name:    "late-cutoff",
			Value:   "09:00:00",
			Usage:   "Local time after which a clock-in is late",
			Sources: source("LATE_CUTOFF", "attendance.late_cutoff"),
		},
		&cli.IntFlag{
			Name:    "history-limit",
			Value:   30,
			Usage:   "Default number of records in personal history",
			Sources: source("HISTORY_LIMIT", "attendance.history_limit"),
		},
	}
}
