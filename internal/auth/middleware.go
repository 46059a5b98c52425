package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/oldrefery/summit-backend-sub001/internal/models"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing the session in context
	SessionContextKey contextKey = "session"

	// LoginPath is where unauthenticated page requests are sent
	LoginPath = "/login"
)

// GateConfig lists the paths the page gate lets through without a session
type GateConfig struct {
	ExemptPrefixes []string
	ExemptPaths    []string
	LoginPath      string
}

// DefaultGateConfig exempts the API, framework and static asset prefixes and
// the login page itself
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ExemptPrefixes: []string{"/api", "/_next", "/static"},
		ExemptPaths:    []string{LoginPath, "/favicon.ico"},
		LoginPath:      LoginPath,
	}
}

func (c GateConfig) exempt(path string) bool {
	for _, p := range c.ExemptPaths {
		if path == p {
			return true
		}
	}
	// A prefix covers itself and everything below it: "/api" matches "/api"
	// and "/api/versions" but not "/apiary".
	for _, prefix := range c.ExemptPrefixes {
		prefix = strings.TrimSuffix(prefix, "/")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// sessionFromRequest reads and verifies the session cookie. Missing, empty,
// malformed and expired cookies all return nil.
func sessionFromRequest(sm *SessionManager, r *http.Request) *models.Session {
	token, err := GetSessionCookie(r)
	if err != nil {
		return nil
	}
	session, err := sm.Parse(token)
	if err != nil {
		return nil
	}
	return session
}

// SessionGate protects dashboard pages. Requests to exempt paths pass
// through untouched; everything else needs a valid session or is redirected
// to the login page with 307.
func SessionGate(sm *SessionManager, config GateConfig) func(next http.Handler) http.Handler {
	if config.LoginPath == "" {
		config.LoginPath = LoginPath
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			session := sessionFromRequest(sm, r)
			if session == nil {
				http.Redirect(w, r, config.LoginPath, http.StatusTemporaryRedirect)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession is the API counterpart of SessionGate: it answers 401 JSON
// instead of redirecting
func RequireSession(sm *SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFromRequest(sm, r)
			if session == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by SessionGate or
// RequireSession
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(SessionContextKey).(*models.Session)
	return session, ok && session != nil
}
