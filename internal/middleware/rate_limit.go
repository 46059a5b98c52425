package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/oldrefery/summit-backend-sub001/internal/auth"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAPIRateLimit returns the default budget for mutating API calls
func DefaultAPIRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
	}
}

func limitExceeded(w http.ResponseWriter, _ *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
}

// RateLimitByIP limits requests per client IP. It is coarse API throttling
// and is independent of the login attempt limiter.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// sessionKey buckets signed-in operators by email and everyone else by IP
func sessionKey(r *http.Request) (string, error) {
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		return "session:" + session.Email, nil
	}
	return httprate.KeyByRealIP(r)
}

// RateLimitBySession limits requests per operator. It must run after
// auth.RequireSession.
func RateLimitBySession(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(sessionKey),
		httprate.WithLimitHandler(limitExceeded),
	)
}
