package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session identifies an authenticated dashboard operator
type Session struct {
	Email   string    `json:"email"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// Valid reports whether the session has not yet expired at now
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Email != "" && now.Before(s.Expires)
}

// SessionClaims is the signed payload carried by the session cookie
type SessionClaims struct {
	Email   string `json:"email"`
	Created int64  `json:"created"`
	Expires int64  `json:"expires"`
	jwt.RegisteredClaims
}
