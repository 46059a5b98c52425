package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Push     PushConfig
	Email    EmailConfig
	Redis    RedisConfig
	Publish  PublishConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	StaticDir      string
	MetricsEnabled bool
}

type AuthConfig struct {
	SessionSecret        string
	SessionDuration      time.Duration
	MaxLoginAttempts     int
	LoginWindow          time.Duration
	TimingDelayBaseMs    int
	TimingDelayRandomMs  int
	APIRequestsPerMinute int
	AdminEmail           string
	AdminPassword        string
}

// StorageConfig describes the S3-compatible bucket holding version artifacts
type StorageConfig struct {
	Bucket        string
	Region        string
	Prefix        string
	Endpoint      string // optional, for S3-compatible providers
	UsePathStyle  bool
	PublicBaseURL string
	Timeout       time.Duration
}

type PushConfig struct {
	GatewayURL  string
	AccessToken string
	ChunkSize   int
	Concurrency int
	Timeout     time.Duration
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	NotifyEmails []string
	DashboardURL string
}

// RedisConfig enables the shared login attempt store when Addr is set
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

type PublishConfig struct {
	LockKey int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "summit"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			StaticDir:      getEnv("STATIC_DIR", "./web"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Auth: AuthConfig{
			SessionSecret:        sessionSecret,
			SessionDuration:      getEnvAsDuration("SESSION_DURATION", 24*time.Hour),
			MaxLoginAttempts:     getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:          getEnvAsDuration("LOGIN_WINDOW", 15*time.Minute),
			TimingDelayBaseMs:    getEnvAsInt("LOGIN_DELAY_BASE_MS", 250),
			TimingDelayRandomMs:  getEnvAsInt("LOGIN_DELAY_RANDOM_MS", 250),
			APIRequestsPerMinute: getEnvAsInt("API_REQUESTS_PER_MINUTE", 120),
			AdminEmail:           strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
			AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
		},
		Storage: StorageConfig{
			Bucket:        getEnv("STORAGE_BUCKET", "summit-versions"),
			Region:        getEnv("STORAGE_REGION", "us-east-1"),
			Prefix:        getEnv("STORAGE_PREFIX", ""),
			Endpoint:      getEnv("STORAGE_ENDPOINT", ""),
			UsePathStyle:  getEnvAsBool("STORAGE_USE_PATH_STYLE", false),
			PublicBaseURL: strings.TrimSuffix(getEnv("STORAGE_PUBLIC_BASE_URL", ""), "/"),
			Timeout:       getEnvAsDuration("STORAGE_TIMEOUT", 60*time.Second),
		},
		Push: PushConfig{
			GatewayURL:  getEnv("PUSH_GATEWAY_URL", "https://exp.host/--/api/v2/push/send"),
			AccessToken: getEnv("PUSH_ACCESS_TOKEN", ""),
			ChunkSize:   getEnvAsInt("PUSH_CHUNK_SIZE", 100),
			Concurrency: getEnvAsInt("PUSH_CONCURRENCY", 4),
			Timeout:     getEnvAsDuration("PUSH_TIMEOUT", 15*time.Second),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
			NotifyEmails: splitList(getEnv("PUBLISH_NOTIFY_EMAILS", "")),
			DashboardURL: strings.TrimSuffix(getEnv("DASHBOARD_URL", "http://localhost:8080"), "/"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "summit:login:"),
		},
		Publish: PublishConfig{
			LockKey: int64(getEnvAsInt("PUBLISH_LOCK_KEY", 73_110_001)),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if cfg.Push.ChunkSize <= 0 || cfg.Push.ChunkSize > 100 {
		return nil, fmt.Errorf("PUSH_CHUNK_SIZE must be between 1 and 100 (got %d)", cfg.Push.ChunkSize)
	}

	if cfg.Auth.MaxLoginAttempts <= 0 {
		return nil, fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production settings
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// validateSessionSecret enforces minimum security standards for the session signing key
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
