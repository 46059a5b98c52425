package models

import "time"

// LoginAttemptRecord counts failed login attempts for one client key.
// The window is anchored at the first attempt and is never refreshed.
type LoginAttemptRecord struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Expired reports whether the record is older than window at now
func (r *LoginAttemptRecord) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.WindowStart) > window
}
