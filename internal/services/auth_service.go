package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/auth"
	"github.com/oldrefery/summit-backend-sub001/internal/metrics"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	pkgauth "github.com/oldrefery/summit-backend-sub001/pkg/auth"
	pkglogger "github.com/oldrefery/summit-backend-sub001/pkg/logger"
)

// AdminRepository defines the data access the auth service needs
type AdminRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	Create(ctx context.Context, admin *models.Admin) (*models.Admin, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// LoginLimiter is the view of LoginRateLimiter used during login
type LoginLimiter interface {
	IsRateLimited(ctx context.Context, key string) bool
	Increment(ctx context.Context, key string)
}

// AuthService handles operator authentication
type AuthService struct {
	repo        AdminRepository
	sessions    *auth.SessionManager
	limiter     LoginLimiter
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	metrics     *metrics.Metrics
	env         string
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo AdminRepository,
	sessions *auth.SessionManager,
	limiter LoginLimiter,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	m *metrics.Metrics,
	env string,
) *AuthService {
	return &AuthService{
		repo:        repo,
		sessions:    sessions,
		limiter:     limiter,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
		metrics:     m,
		env:         env,
	}
}

// LoginResult carries the signed session token for the cookie
type LoginResult struct {
	Token   string
	Session *models.Session
}

// Login checks the client's attempt budget, then the credentials. Every
// failure is counted against clientKey; a success leaves the counter alone.
func (s *AuthService) Login(ctx context.Context, email, password, clientKey string) (*LoginResult, error) {
	start := time.Now()

	if s.limiter.IsRateLimited(ctx, clientKey) {
		s.logger.Warn("login rejected: rate limited", slog.String("client_key", clientKey))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_rate_limited",
			ClientKey:     clientKey,
			FailureReason: "rate_limited",
		})
		s.metrics.LoginAttempt("rate_limited")
		return nil, models.ErrRateLimitExceeded
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, s.loginFailed(ctx, start, email, clientKey, "missing_credentials")
	}

	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.CompareDummy(password)
			return nil, s.loginFailed(ctx, start, email, clientKey, "invalid_credentials")
		}
		s.logger.Error("failed to get admin by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(admin.PasswordHash, password); err != nil {
		return nil, s.loginFailed(ctx, start, email, clientKey, "invalid_credentials")
	}

	token, session, err := s.sessions.Issue(admin.Email)
	if err != nil {
		s.logger.Error("failed to issue session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("admin logged in", pkglogger.RedactedAttr("email", admin.Email, s.env))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Actor:     admin.Email,
		ClientKey: clientKey,
		Success:   true,
	})
	s.metrics.LoginAttempt("success")

	return &LoginResult{Token: token, Session: session}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, start time.Time, email, clientKey, reason string) error {
	s.limiter.Increment(ctx, clientKey)

	s.logger.Info("login failed", slog.String("reason", reason), slog.String("client_key", clientKey))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Actor:         email,
		ClientKey:     clientKey,
		FailureReason: reason,
	})
	s.metrics.LoginAttempt("invalid")

	s.timing.WaitFrom(ctx, start, false)
	return models.ErrUnauthorized
}

// Logout records the end of a session. The cookie itself is cleared by the
// handler; sessions are stateless so nothing is revoked server-side.
func (s *AuthService) Logout(ctx context.Context, session *models.Session, clientKey string) {
	event := pkglogger.AuditEvent{EventType: "logout", ClientKey: clientKey, Success: true}
	if session != nil {
		event.Actor = session.Email
	}
	s.auditLogger.LogAuthAttempt(event)
}

// EnsureAdmin creates the bootstrap operator account, or updates its
// password when the configured one no longer matches. Empty credentials
// skip seeding.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set; skipping admin bootstrap")
		return nil
	}

	if s.env == "production" {
		if err := pkgauth.ValidatePassword(password); err != nil {
			return fmt.Errorf("ADMIN_PASSWORD rejected: %w", err)
		}
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, models.ErrNotFound):
		hash, err := pkgauth.HashPassword(password)
		if err != nil {
			return err
		}
		if _, err := s.repo.Create(ctx, &models.Admin{Email: email, PasswordHash: hash, Name: "Administrator"}); err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		s.logger.Info("admin account created", pkglogger.RedactedAttr("email", email, s.env))
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	if pkgauth.ComparePassword(existing.PasswordHash, password) == nil {
		return nil
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, existing.ID, hash); err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	s.logger.Info("admin password rotated", pkglogger.RedactedAttr("email", email, s.env))
	return nil
}
