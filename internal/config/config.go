package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// MartPal's own Firestore project
	FirestoreBaseURL   string
	FirestoreProjectID string
	FirestoreAPIKey    string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// JWT / sessions
	JWTSecret         string
	JWTAccessTTL      time.Duration
	InactivityTimeout time.Duration

	// Credential store (external-DB connection persistence)
	CredentialFile string

	// Import behavior: case-insensitive dedup at import time.
	// Off by default; import-time dedup is exact-match.
	DedupFold bool

	// Lead watch stream
	WatchInterval time.Duration

	// Email channel (SMTP)
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	// WhatsApp channel (UltraMsg)
	UltraMsgBaseURL    string
	UltraMsgInstanceID string
	UltraMsgToken      string
}

// Load reads configuration from environment variables with defaults.
// A .env file, if present, is loaded first (env takes precedence).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FirestoreBaseURL:   getEnv("FIRESTORE_BASE_URL", "https://firestore.googleapis.com"),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreAPIKey:    getEnv("FIRESTORE_API_KEY", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 10),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret:         getEnv("JWT_SECRET", "martpal-default-dev-secret-change-me"),
		JWTAccessTTL:      getEnvDuration("JWT_ACCESS_TTL", 12*time.Hour),
		InactivityTimeout: getEnvDuration("SESSION_INACTIVITY_TIMEOUT", time.Hour),

		CredentialFile: getEnv("CREDENTIAL_FILE", "martpal-connections.json"),

		DedupFold: getEnv("DEDUP_CASE_INSENSITIVE", "false") == "true",

		WatchInterval: getEnvDuration("WATCH_INTERVAL", 3*time.Second),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		MailFrom: getEnv("MAIL_FROM", "no-reply@martpal.app"),

		UltraMsgBaseURL:    getEnv("ULTRAMSG_BASE_URL", "https://api.ultramsg.com"),
		UltraMsgInstanceID: getEnv("ULTRAMSG_INSTANCE_ID", ""),
		UltraMsgToken:      getEnv("ULTRAMSG_TOKEN", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
