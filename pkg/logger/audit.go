package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Actor         string // operator email, masked outside development
	ClientKey     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

// NewAuditLogger creates a new audit logger. In production, actor emails are
// masked with SanitizedEmail.
func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

func (al *AuditLogger) actor(email string) string {
	if al.env == "production" {
		return SanitizedEmail(email)
	}
	return email
}

func (al *AuditLogger) emit(success bool, attrs []slog.Attr) {
	if al == nil || al.logger == nil {
		return
	}
	if success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogAuthAttempt logs login, logout and rate limiting events
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	if al == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Actor != "" {
		attrs = append(attrs, slog.String("actor", al.actor(event.Actor)))
	}
	if event.ClientKey != "" {
		attrs = append(attrs, slog.String("client_key", event.ClientKey))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.emit(event.Success, attrs)
}

// LogVersionAction logs publish, rollback and delete operations on versions
func (al *AuditLogger) LogVersionAction(eventType, actor, version string, success bool, metadata map[string]string) {
	if al == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("audit_type", "version"),
		slog.String("event_type", eventType),
		slog.Bool("success", success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if actor != "" {
		attrs = append(attrs, slog.String("actor", al.actor(actor)))
	}
	if version != "" {
		attrs = append(attrs, slog.String("version", version))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.emit(success, attrs)
}
