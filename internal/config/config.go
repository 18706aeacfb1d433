// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment        string
	HTTPPort           string
	DatabaseURL        string
	RedisURL           string
	DUIDSecret         string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ChallengeTTL       time.Duration
	CallerRateLimit    int64
	CallerRateWindow   time.Duration
	AccountRateLimit   int64
	AccountRateWindow  time.Duration
	CORSAllowedOrigins []string
	TrustedProxies     []string
	EventsEnabled      bool
	EventsTopic        string
}

// Development reports whether the service runs in a development environment.
func (c Config) Development() bool {
	return c.Environment == "development"
}

// Load reads configuration from environment variables with sane defaults.
// A missing DUID_SERVER_SECRET is not an error here: the service starts and
// every sign-in fails closed until an operator sets it.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:        getEnv("APP_ENV", "production"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DUIDSecret:         os.Getenv("DUID_SERVER_SECRET"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getEnv("JWT_ISSUER", "nostrauth"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "nostrauth-api"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ChallengeTTL:       getDuration("CHALLENGE_TTL", 5*time.Minute),
		CallerRateLimit:    getInt64("CALLER_RATE_LIMIT", 60),
		CallerRateWindow:   getDuration("CALLER_RATE_WINDOW", time.Minute),
		AccountRateLimit:   getInt64("ACCOUNT_RATE_LIMIT", 10),
		AccountRateWindow:  getDuration("ACCOUNT_RATE_WINDOW", 15*time.Minute),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", nil),
		TrustedProxies:     getList("TRUSTED_PROXIES", nil),
		EventsEnabled:      getBool("EVENTS_ENABLED", false),
		EventsTopic:        getEnv("EVENTS_TOPIC", "nostrauth.events"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if cfg.CallerRateLimit <= 0 || cfg.AccountRateLimit <= 0 {
		return Config{}, fmt.Errorf("rate limits must be positive")
	}
	if cfg.CallerRateWindow <= 0 || cfg.AccountRateWindow <= 0 {
		return Config{}, fmt.Errorf("rate windows must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
