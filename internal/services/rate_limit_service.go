package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// LoginAttemptStore persists failed login counters per client key
type LoginAttemptStore interface {
	Get(ctx context.Context, key string) (*models.LoginAttemptRecord, error)
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (*models.LoginAttemptRecord, error)
	Delete(ctx context.Context, key string) error
}

// RateLimitConfig holds configuration for login throttling
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// LoginRateLimiter counts failed logins per client key inside a fixed window
// anchored at the first failure. A key is limited once it has MaxAttempts
// failures in a live window. Store errors are logged and treated as "not
// limited" so an outage of the store never locks operators out.
type LoginRateLimiter struct {
	store  LoginAttemptStore
	config RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewLoginRateLimiter(store LoginAttemptStore, config RateLimitConfig, logger *slog.Logger) *LoginRateLimiter {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.Window <= 0 {
		config.Window = 15 * time.Minute
	}
	return &LoginRateLimiter{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source, used by tests
func (l *LoginRateLimiter) SetClock(now func() time.Time) {
	l.now = now
}

// live returns the record for key if its window has not expired, removing
// it otherwise
func (l *LoginRateLimiter) live(ctx context.Context, key string) *models.LoginAttemptRecord {
	rec, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Error("failed to read login attempts", slog.String("client_key", key), slog.Any("error", err))
		return nil
	}
	if rec == nil {
		return nil
	}
	if rec.Expired(l.now(), l.config.Window) {
		if err := l.store.Delete(ctx, key); err != nil {
			l.logger.Warn("failed to drop expired login attempts", slog.String("client_key", key), slog.Any("error", err))
		}
		return nil
	}
	return rec
}

// IsRateLimited reports whether key has used up its attempts in the current window
func (l *LoginRateLimiter) IsRateLimited(ctx context.Context, key string) bool {
	rec := l.live(ctx, key)
	return rec != nil && rec.Count >= l.config.MaxAttempts
}

// Increment records one failed attempt for key
func (l *LoginRateLimiter) Increment(ctx context.Context, key string) {
	rec, err := l.store.Increment(ctx, key, l.now(), l.config.Window)
	if err != nil {
		l.logger.Error("failed to record login attempt", slog.String("client_key", key), slog.Any("error", err))
		return
	}
	if rec.Count == l.config.MaxAttempts {
		l.logger.Warn("client reached login attempt limit",
			slog.String("client_key", key),
			slog.Int("attempts", rec.Count),
			slog.Time("window_start", rec.WindowStart))
	}
}

// RetryAfter returns how long key stays limited, or zero when it is not
func (l *LoginRateLimiter) RetryAfter(ctx context.Context, key string) time.Duration {
	rec := l.live(ctx, key)
	if rec == nil || rec.Count < l.config.MaxAttempts {
		return 0
	}
	remaining := rec.WindowStart.Add(l.config.Window).Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
