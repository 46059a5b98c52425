package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors
	ErrRateLimitExceeded = errors.New("too many login attempts")
	ErrSessionInvalid    = errors.New("session is invalid")
	ErrSessionExpired    = errors.New("session has expired")

	// Versioning errors
	ErrUnknownTable     = errors.New("unknown entity table")
	ErrArtifactStorage  = errors.New("artifact storage failure")
	ErrArtifactCorrupt  = errors.New("artifact is not a valid snapshot")
	ErrPublishInFlight  = errors.New("another publish is in progress")
	ErrNoPushRecipients = errors.New("no registered push tokens")
)
