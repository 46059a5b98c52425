package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

const sessionIssuer = "summit-admin"

// SessionManager issues and verifies signed session tokens
type SessionManager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. Sessions last duration from the
// moment they are issued.
func NewSessionManager(secret string, duration time.Duration) *SessionManager {
	return &SessionManager{
		secret:   []byte(secret),
		duration: duration,
		now:      time.Now,
	}
}

// SetClock replaces the time source, used by tests
func (sm *SessionManager) SetClock(now func() time.Time) {
	sm.now = now
}

// Duration is how long a freshly issued session stays valid
func (sm *SessionManager) Duration() time.Duration {
	return sm.duration
}

// Issue creates a session for email and returns the signed token
func (sm *SessionManager) Issue(email string) (string, *models.Session, error) {
	if email == "" {
		return "", nil, fmt.Errorf("%w: email required", models.ErrBadRequest)
	}

	now := sm.now().Truncate(time.Second)
	session := &models.Session{
		Email:   email,
		Created: now,
		Expires: now.Add(sm.duration),
	}

	claims := &models.SessionClaims{
		Email:   session.Email,
		Created: session.Created.Unix(),
		Expires: session.Expires.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(session.Created),
			ExpiresAt: jwt.NewNumericDate(session.Expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(sm.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, session, nil
}

// Parse verifies tokenString and returns the session it carries. Any
// malformed, tampered or foreign token yields ErrSessionInvalid; a token whose
// expiry is not in the future yields ErrSessionExpired.
func (sm *SessionManager) Parse(tokenString string) (*models.Session, error) {
	if tokenString == "" {
		return nil, models.ErrSessionInvalid
	}

	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(sm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrSessionExpired
		}
		return nil, models.ErrSessionInvalid
	}
	if !token.Valid {
		return nil, models.ErrSessionInvalid
	}

	session := &models.Session{
		Email:   claims.Email,
		Created: time.Unix(claims.Created, 0),
		Expires: time.Unix(claims.Expires, 0),
	}
	if session.Email == "" || claims.Expires == 0 {
		return nil, models.ErrSessionInvalid
	}
	if !session.Valid(sm.now()) {
		return nil, models.ErrSessionExpired
	}
	return session, nil
}
