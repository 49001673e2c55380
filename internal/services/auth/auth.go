// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/chronotrack/internal/config"
	"codeberg.org/oliverandrich/chronotrack/internal/models"
	"codeberg.org/oliverandrich/chronotrack/internal/repository"
	"codeberg.org/oliverandrich/chronotrack/internal/services/token"
)

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserNotFound          = errors.New("user not found")
	ErrWeakPassword          = errors.New("password does not meet requirements")
	ErrInvalidEmail          = errors.New("invalid email format")
	ErrInvalidProfile        = errors.New("invalid profile")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
)

// Notifier delivers account emails. Implementations must not log the code or URL.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, fullName, code string) error
	SendPasswordResetEmail(ctx context.Context, email, fullName, resetURL string) error
}

type Service struct {
	repo              *repository.Repository
	config            *config.AuthConfig
	notifier          Notifier
	hasher            *Hasher
	issuer            *token.Issuer
	passwordValidator *PasswordValidator
	baseURL           string
	now               func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHasher replaces the default-cost hasher.
func WithHasher(h *Hasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithIssuer replaces the crypto/rand backed token issuer.
func WithIssuer(i *token.Issuer) Option {
	return func(s *Service) { s.issuer = i }
}

// NewService creates the account lifecycle service. A nil notifier is allowed;
// emails are then skipped and reported as not sent.
func NewService(repo *repository.Repository, cfg *config.AuthConfig, notifier Notifier, baseURL string, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		config:            cfg,
		notifier:          notifier,
		issuer:            token.NewIssuer(),
		passwordValidator: NewPasswordValidator(cfg.MinPasswordLength),
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hasher == nil {
		s.hasher = NewHasher(0)
	}
	return s
}

// PasswordValidator returns the password validator for use in handlers
func (s *Service) PasswordValidator() *PasswordValidator {
	return s.passwordValidator
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email    string
	Password string
	FullName string
	Profile  models.Profile
}

// RegisterResult is returned by Register. VerificationCode is the plaintext
// code; callers must not echo it to clients.
type RegisterResult struct {
	User             *models.User
	VerificationCode string
	NotificationSent bool
}

// VerificationResult is returned by ResendVerification.
type VerificationResult struct {
	Code             string
	NotificationSent bool
}

// LoginResult is returned by Login. Unverified users may log in but are
// flagged so the client can route them to verification.
type LoginResult struct {
	User                 *models.User
	RequiresVerification bool
}

// Register creates a new, unverified account and emails its verification code.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	email := NormalizeEmail(params.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}

	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidProfile)
	}
	if params.Profile == nil {
		return nil, fmt.Errorf("%w: role is required", ErrInvalidProfile)
	}
	if err := params.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	if err := s.passwordValidator.Validate(params.Password); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	code, err := s.issuer.GenerateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := s.now()
	expires := now.Add(s.config.VerificationCodeTTL)
	user := &models.User{
		Email:                   email,
		PasswordHash:            passwordHash,
		FullName:                fullName,
		Profile:                 params.Profile,
		VerificationCodeHash:    token.HashToken(code),
		VerificationCodeExpires: &expires,
		CreatedAt:               now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", email, "role", user.Role())

	return &RegisterResult{
		User:             user,
		VerificationCode: code,
		NotificationSent: s.sendVerification(ctx, user, code),
	}, nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User, code string) bool {
	if s.notifier == nil {
		slog.Warn("verification_email_skipped", "user_id", user.ID, "reason", "no notifier configured")
		return false
	}
	if err := s.notifier.SendVerificationEmail(ctx, user.Email, user.FullName, code); err != nil {
		slog.Warn("verification_email_failed", "user_id", user.ID, "error", err)
		return false
	}
	return true
}

// GetUser loads a user by ID.
func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// VerifyEmail marks the user verified if code matches the pending, unexpired
// code. Matching is case-insensitive and ignores surrounding whitespace.
func (s *Service) VerifyEmail(ctx context.Context, userID int64, code string) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	code = token.NormalizeCode(code)
	if len(code) != token.CodeLength {
		slog.Warn("verify_email_failed", "user_id", userID, "reason", "malformed_code")
		return nil, ErrInvalidCode
	}

	ok, err := s.repo.MarkEmailVerified(ctx, userID, token.HashToken(code), s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}
	if !ok {
		slog.Warn("verify_email_failed", "user_id", userID, "reason", "mismatch_or_expired")
		return nil, ErrInvalidCode
	}

	user.EmailVerified = true
	user.VerificationCodeHash = ""
	user.VerificationCodeExpires = nil

	slog.Info("verify_email_success", "user_id", userID)
	return user, nil
}

// ResendVerification replaces the pending code with a fresh one and emails it.
func (s *Service) ResendVerification(ctx context.Context, userID int64) (*VerificationResult, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	code, err := s.issuer.GenerateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := s.now()
	ok, err := s.repo.SetVerificationCode(ctx, userID, token.HashToken(code), now.Add(s.config.VerificationCodeTTL), now)
	if err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}
	if !ok {
		// Verified between the read and the write.
		return nil, ErrAlreadyVerified
	}

	slog.Info("verification_code_reissued", "user_id", userID)

	return &VerificationResult{
		Code:             code,
		NotificationSent: s.sendVerification(ctx, user, code),
	}, nil
}

// Login authenticates a user by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return &LoginResult{User: user, RequiresVerification: !user.EmailVerified}, nil
}

// ForgotPassword issues a reset token and emails a reset link. It answers the
// same way whether or not the address belongs to an account; only store
// failures are returned. Every call takes at least ForgotPasswordMinDuration,
// and a delivery still running at that point finishes in the background.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	deadline := time.Now().Add(s.config.ForgotPasswordMinDuration)
	err := s.forgotPassword(ctx, NormalizeEmail(email), deadline)
	waitUntil(ctx, deadline)
	return err
}

func (s *Service) forgotPassword(ctx context.Context, email string, deadline time.Time) error {
	resetToken, err := s.issuer.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("password_reset_requested", "known", false)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	now := s.now()
	if err := s.repo.SetResetToken(ctx, user.ID, token.HashToken(resetToken), now.Add(s.config.ResetTokenTTL), now); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	slog.Info("password_reset_requested", "known", true, "user_id", user.ID)

	if s.notifier == nil {
		slog.Warn("password_reset_email_skipped", "user_id", user.ID, "reason", "no notifier configured")
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sendCtx := context.WithoutCancel(ctx)
		if err := s.notifier.SendPasswordResetEmail(sendCtx, user.Email, user.FullName, s.ResetURL(resetToken)); err != nil {
			slog.Warn("password_reset_email_failed", "user_id", user.ID, "error", err)
		}
	}()

	if s.config.ForgotPasswordMinDuration <= 0 {
		<-done
		return nil
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Info("password_reset_email_pending", "user_id", user.ID)
	}
	return nil
}

// waitUntil blocks until t or until ctx is done.
func waitUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// ResetURL builds the link a user follows to choose a new password.
func (s *Service) ResetURL(resetToken string) string {
	return s.baseURL + "/reset-password?token=" + resetToken
}

// ResetPassword sets a new password for the holder of a valid reset token.
// A weak password is rejected before the token is looked at, so it is not consumed.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := s.passwordValidator.Validate(newPassword); err != nil {
		return err
	}

	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	userID, err := s.repo.ResetPassword(ctx, token.HashToken(resetToken), passwordHash, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("password_reset_failed", "reason", "invalid_or_expired_token")
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	slog.Info("password_reset_success", "user_id", userID)
	return nil
}
