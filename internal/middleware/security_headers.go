package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
	// ImageSources are extra origins the dashboard may load images from,
	// such as the artifact CDN
	ImageSources []string
}

func dashboardCSP(config SecurityHeadersConfig) string {
	img := strings.TrimSpace("'self' data: " + strings.Join(config.ImageSources, " "))

	if config.Env == "production" {
		return "default-src 'self'; " +
			"script-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src " + img + "; " +
			"font-src 'self'; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
	}

	// dev servers inject inline scripts and open websockets for hot reload
	return "default-src 'self' http: https: ws:; " +
		"script-src 'self' 'unsafe-inline' 'unsafe-eval' http: https: ws:; " +
		"style-src 'self' 'unsafe-inline' http: https:; " +
		"img-src " + img + " http: https:; " +
		"font-src 'self' data: http: https:; " +
		"connect-src 'self' http: https: ws: wss:; " +
		"frame-ancestors 'self'; " +
		"base-uri 'self'; " +
		"form-action 'self'"
}

// SecurityHeaders adds browser hardening headers to every response of the
// dashboard and its API
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	csp := dashboardCSP(config)
	production := config.Env == "production"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", csp)
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			h.Set("X-DNS-Prefetch-Control", "off")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")

			if production && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			// API responses are per-operator and must not be cached
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
			}

			next.ServeHTTP(w, r)
		})
	}
}
