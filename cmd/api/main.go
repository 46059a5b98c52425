package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oldrefery/summit-backend-sub001/internal/auth"
	"github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/oldrefery/summit-backend-sub001/internal/handlers"
	"github.com/oldrefery/summit-backend-sub001/internal/metrics"
	middlewareCustom "github.com/oldrefery/summit-backend-sub001/internal/middleware"
	"github.com/oldrefery/summit-backend-sub001/internal/push"
	"github.com/oldrefery/summit-backend-sub001/internal/repositories"
	"github.com/oldrefery/summit-backend-sub001/internal/routes"
	"github.com/oldrefery/summit-backend-sub001/internal/services"
	"github.com/oldrefery/summit-backend-sub001/internal/storage"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
	pkglogger "github.com/oldrefery/summit-backend-sub001/pkg/logger"
)

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	if err := db.Migrate(startupCtx, "up"); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Metrics
	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	// Login attempt store: shared through Redis when configured, else in-process
	var attemptStore services.LoginAttemptStore
	if cfg.Redis.Addr != "" {
		redisStore, err := repositories.NewRedisLoginAttemptStore(startupCtx, cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisStore.Close()
		attemptStore = redisStore
		logger.Info("login attempts tracked in redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		attemptStore = repositories.NewMemoryLoginAttemptStore()
	}

	limiter := services.NewLoginRateLimiter(attemptStore, services.RateLimitConfig{
		MaxAttempts: cfg.Auth.MaxLoginAttempts,
		Window:      cfg.Auth.LoginWindow,
	}, logger)

	sessionManager := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionDuration)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)

	// Initialize repositories
	adminRepo := repositories.NewAdminRepository(db)
	changeRepo := repositories.NewChangeRepository(db)
	entityRepo := repositories.NewEntityRepository(db)
	versionRepo := repositories.NewVersionRepository(db)
	pushTokenRepo := repositories.NewPushTokenRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// External collaborators
	artifactStore, err := storage.NewS3ArtifactStore(startupCtx, cfg.Storage, m, logger)
	if err != nil {
		logger.Error("failed to initialize artifact storage", slog.Any("error", err))
		os.Exit(1)
	}

	var notifier services.PublishNotifier
	sesNotifier, err := services.NewSESPublishNotifier(startupCtx, cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize publish notifier", slog.Any("error", err))
		os.Exit(1)
	}
	if sesNotifier != nil {
		notifier = sesNotifier
	}

	pushGateway := push.NewExpoClient(cfg.Push, logger)

	// Initialize services
	authService := services.NewAuthService(adminRepo, sessionManager, limiter, timingDelay, logger, auditLogger, m, cfg.Server.Env)
	entityService := services.NewEntityService(entityRepo, logger)
	versioningService := services.NewVersioningService(
		versionRepo,
		changeRepo,
		artifactStore,
		notifier,
		services.VersioningConfig{LockKey: cfg.Publish.LockKey},
		logger,
		auditLogger,
		m,
	)
	pushService := services.NewPushService(
		pushGateway,
		pushTokenRepo,
		notificationRepo,
		services.PushConfig{ChunkSize: cfg.Push.ChunkSize, Concurrency: cfg.Push.Concurrency},
		logger,
		m,
	)

	// Bootstrap the operator account if configured
	if err := authService.EnsureAdmin(startupCtx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	startupCancel()

	// Initialize handlers
	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Server.IsProduction(),
		SameSite: "lax",
	}
	authHandler := handlers.NewAuthHandler(authService, sessionManager, limiter, cookieConfig, logger)
	entityHandler := handlers.NewEntityHandler(entityService)
	versionHandler := handlers.NewVersionHandler(versioningService)
	notificationHandler := handlers.NewNotificationHandler(pushService)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	deps := routes.Dependencies{
		Auth:          authHandler,
		Entities:      entityHandler,
		Versions:      versionHandler,
		Notifications: notificationHandler,
		Sessions:      sessionManager,
		Health:        healthHandler(db),
		APIRateLimit:  middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Auth.APIRequestsPerMinute},
		StaticDir:     cfg.Server.StaticDir,
	}
	if cfg.Server.MetricsEnabled {
		deps.Metrics = metrics.Handler(registry)
	}
	routes.RegisterRoutes(router, deps)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// healthResponse is the body of /health
type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	TotalConns  int32  `json:"total_conns,omitempty"`
	IdleConns   int32  `json:"idle_conns,omitempty"`
	AcquireWait string `json:"acquire_wait,omitempty"`
}

// healthHandler reports whether the database answers, with pool statistics
func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Database: "down"})
			return
		}

		stats := db.Stats()
		pkghttp.WriteJSON(w, http.StatusOK, healthResponse{
			Status:      "healthy",
			Database:    "up",
			TotalConns:  stats.TotalConns(),
			IdleConns:   stats.IdleConns(),
			AcquireWait: stats.AcquireDuration().String(),
		})
	}
}
