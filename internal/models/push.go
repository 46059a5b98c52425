package models

import "time"

// MaxPushBatch is the largest number of messages the gateway accepts per call
const MaxPushBatch = 100

// PushMessage is one notification addressed to a single device token
type PushMessage struct {
	Token string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushTicket is the gateway's per-message outcome
type PushTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// PushResult partitions a dispatch into delivered and failed tokens
type PushResult struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
}

// PushToken is a registered device
type PushToken struct {
	Token      string    `json:"token"`
	Platform   string    `json:"platform"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// NotificationRecord is the history entry written for each send
type NotificationRecord struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Data         map[string]string `json:"data,omitempty"`
	SentAt       time.Time         `json:"sent_at"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	FailedTokens []string          `json:"failed_tokens"`
}
