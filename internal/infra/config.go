package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBMaxConns         int
	DBMinConns         int
	SessionJWTSecret   string
	StoragePath        string
	StorageBaseURL     string
	PublicAssetBaseURL string
	GeoIPDBPath        string
	InferenceAPIKey    string
	InferenceBaseURL   string
	MailAPIKey         string
	MailBaseURL        string
	MailFromEmail      string
	MailFromName       string
	DefaultLocale      string
	AllowedOrigins     []string
	SweepSchedule      string
	SweepGrace         time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:         getEnvInt("DB_MIN_CONNS", 1),
		SessionJWTSecret:   os.Getenv("SESSION_JWT_SECRET"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		PublicAssetBaseURL: getEnv("PUBLIC_ASSET_BASE_URL", ""),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		InferenceAPIKey:    os.Getenv("INFERENCE_API_KEY"),
		InferenceBaseURL:   getEnv("INFERENCE_BASE_URL", "https://api.inference.dev/v1"),
		MailAPIKey:         os.Getenv("MAIL_API_KEY"),
		MailBaseURL:        getEnv("MAIL_BASE_URL", "https://api.sendgrid.com"),
		MailFromEmail:      getEnv("MAIL_FROM_EMAIL", "no-reply@localhost"),
		MailFromName:       getEnv("MAIL_FROM_NAME", "Image Studio"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		AllowedOrigins:     splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "@hourly"),
		SweepGrace:         time.Hour * time.Duration(getEnvInt("SWEEP_GRACE_HOURS", 24)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SessionJWTSecret == "" {
		return nil, fmt.Errorf("SESSION_JWT_SECRET is required")
	}

	if cfg.PublicAssetBaseURL == "" {
		cfg.PublicAssetBaseURL = cfg.StorageBaseURL
	}

	return cfg, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
