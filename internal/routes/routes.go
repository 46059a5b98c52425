package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oldrefery/summit-backend-sub001/internal/auth"
	"github.com/oldrefery/summit-backend-sub001/internal/handlers"
	"github.com/oldrefery/summit-backend-sub001/internal/middleware"
)

// Dependencies are the handlers and settings the router is built from
type Dependencies struct {
	Auth          *handlers.AuthHandler
	Entities      *handlers.EntityHandler
	Versions      *handlers.VersionHandler
	Notifications *handlers.NotificationHandler
	Sessions      *auth.SessionManager

	// Health answers /health; Metrics, when set, answers /metrics
	Health  http.HandlerFunc
	Metrics http.Handler

	APIRateLimit middleware.RateLimitConfig
	StaticDir    string
}

// RegisterRoutes registers all application routes. It installs the page
// session gate, so it must be called before any other route is added.
func RegisterRoutes(router chi.Router, deps Dependencies) {
	gate := auth.DefaultGateConfig()
	gate.ExemptPaths = append(gate.ExemptPaths, "/health", "/metrics")
	router.Use(auth.SessionGate(deps.Sessions, gate))

	router.Get("/health", deps.Health)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

	apiLimit := middleware.RateLimitByIP(deps.APIRateLimit)

	router.Route("/api", func(r chi.Router) {
		// Public routes - no session required. Login throttling is done by
		// the login attempt limiter, not by httprate.
		r.Post("/auth/login", deps.Auth.Login)
		r.Post("/auth/logout", deps.Auth.Logout)

		// Device registration comes from the mobile app
		r.With(apiLimit).Post("/push-tokens", deps.Notifications.RegisterToken)
		r.With(apiLimit).Delete("/push-tokens/{token}", deps.Notifications.UnregisterToken)

		// Protected routes - operator session required
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(deps.Sessions))
			r.Use(middleware.RateLimitBySession(deps.APIRateLimit))

			r.Get("/auth/session", deps.Auth.Session)

			r.Get("/entities/{table}", deps.Entities.List)
			r.Post("/entities/{table}", deps.Entities.Create)
			r.Get("/entities/{table}/{id}", deps.Entities.Get)
			r.Put("/entities/{table}/{id}", deps.Entities.Update)
			r.Delete("/entities/{table}/{id}", deps.Entities.Delete)

			r.Get("/changes", deps.Versions.Changes)
			r.Get("/versions", deps.Versions.List)
			r.Post("/versions/publish", deps.Versions.Publish)
			r.Post("/versions/{version}/rollback", deps.Versions.Rollback)
			r.Delete("/versions/{id}", deps.Versions.Delete)

			r.Get("/notifications", deps.Notifications.List)
			r.Post("/notifications", deps.Notifications.Send)
		})
	})

	if deps.StaticDir != "" {
		router.Handle("/*", StaticHandler(deps.StaticDir))
	}
}
