// Package config loads the gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// DatabaseURL is the PostgreSQL DSN for the resume store.
	DatabaseURL string

	// GeminiAPIKey authenticates every generative call. Resolution order is
	// handled by the keyselect package; this holds the resolved value.
	GeminiAPIKey string

	// Blob storage for exported documents.
	BlobBucket        string
	BlobRegion        string
	BlobAccessKey     string
	BlobSecretKey     string
	BlobEndpoint      string
	BlobPublicBaseURL string

	MaxBodyBytes   int64
	MaxUploadBytes int64

	// CORS allowlist; empty disables cross-origin access.
	CORSAllowedOrigins map[string]struct{}

	// SSE
	SSEPingInterval      time.Duration
	SSEMaxStreamDuration time.Duration

	// In-memory per-client limits.
	LimitRPS   float64
	LimitBurst int

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("CAREERDEV_ADDR", ":8080"),
		DatabaseURL:          envOr("CAREERDEV_DATABASE_URL", ""),
		BlobBucket:           envOr("CAREERDEV_BLOB_BUCKET", "downloads"),
		BlobRegion:           envOr("CAREERDEV_BLOB_REGION", "auto"),
		BlobAccessKey:        envOr("CAREERDEV_BLOB_ACCESS_KEY", ""),
		BlobSecretKey:        envOr("CAREERDEV_BLOB_SECRET_KEY", ""),
		BlobEndpoint:         envOr("CAREERDEV_BLOB_ENDPOINT", ""),
		BlobPublicBaseURL:    envOr("CAREERDEV_BLOB_PUBLIC_BASE_URL", ""),
		MaxBodyBytes:         envInt64Or("CAREERDEV_MAX_BODY_BYTES", 1<<20),    // 1 MiB
		MaxUploadBytes:       envInt64Or("CAREERDEV_MAX_UPLOAD_BYTES", 10<<20), // 10 MiB
		CORSAllowedOrigins:   make(map[string]struct{}),
		SSEPingInterval:      envDurationOr("CAREERDEV_SSE_PING_INTERVAL", 15*time.Second),
		SSEMaxStreamDuration: envDurationOr("CAREERDEV_SSE_MAX_DURATION", 5*time.Minute),
		LimitRPS:             envFloat64Or("CAREERDEV_RATE_LIMIT_RPS", 5.0),
		LimitBurst:           envIntOr("CAREERDEV_RATE_LIMIT_BURST", 10),
		ReadHeaderTimeout:    envDurationOr("CAREERDEV_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("CAREERDEV_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("CAREERDEV_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("CAREERDEV_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("CAREERDEV_DATABASE_URL must be set")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("CAREERDEV_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("CAREERDEV_MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.SSEPingInterval <= 0 {
		return Config{}, fmt.Errorf("CAREERDEV_SSE_PING_INTERVAL must be > 0")
	}
	if cfg.SSEMaxStreamDuration <= 0 {
		return Config{}, fmt.Errorf("CAREERDEV_SSE_MAX_DURATION must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("CAREERDEV_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("CAREERDEV_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CAREERDEV_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("CAREERDEV_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CAREERDEV_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
