package models

import "time"

// Admin is a dashboard operator account
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
