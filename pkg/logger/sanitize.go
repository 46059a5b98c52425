package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		// Mask all but the TLD
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// sensitiveParams are query keys whose values must never reach the logs:
// credentials, session cookies, device push tokens and presigned storage
// signatures
var sensitiveParams = map[string]bool{
	"password":         true,
	"email":            true,
	"session":          true,
	"admin_session":    true,
	"secret":           true,
	"push_token":       true,
	"device_token":     true,
	"access_token":     true,
	"token":            true,
	"x-amz-signature":  true,
	"x-amz-credential": true,
}

// SanitizeQueryString reports whether the query string carries a sensitive
// parameter, in which case the whole query should be redacted. Keys are
// matched exactly (case-insensitive) plus any key containing "token" or
// "password". An unparsable non-empty query is treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		k := strings.ToLower(key)
		if sensitiveParams[k] || strings.Contains(k, "token") || strings.Contains(k, "password") {
			return true
		}
	}
	return false
}

// sensitivePathPrefixes are routes whose next path segment is a secret
var sensitivePathPrefixes = []string{
	"/api/push-tokens/",
}

// RedactPath hides secrets carried in the URL path, such as the device push
// token in DELETE /api/push-tokens/{token}
func RedactPath(path string) string {
	for _, prefix := range sensitivePathPrefixes {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + "[REDACTED]"
		}
	}
	return path
}
