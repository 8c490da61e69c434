package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CAREERDEV_DATABASE_URL", "postgres://localhost:5432/careerdev")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.MaxBodyBytes != 1<<20 || cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("body limits = %d/%d", cfg.MaxBodyBytes, cfg.MaxUploadBytes)
	}
	if cfg.SSEPingInterval != 15*time.Second {
		t.Fatalf("SSEPingInterval = %v", cfg.SSEPingInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORS enabled by default: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromEnvRequiresDatabase(t *testing.T) {
	t.Setenv("CAREERDEV_DATABASE_URL", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("LoadFromEnv accepted empty database URL")
	}
}

func TestLoadFromEnvOverridesAndCSV(t *testing.T) {
	setRequired(t)
	t.Setenv("CAREERDEV_ADDR", "127.0.0.1:9000")
	t.Setenv("CAREERDEV_CORS_ORIGINS", "https://app.careerdev.example, https://staging.careerdev.example")
	t.Setenv("CAREERDEV_SSE_PING_INTERVAL", "5s")
	t.Setenv("CAREERDEV_RATE_LIMIT_RPS", "2.5")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORS origins = %v", cfg.CORSAllowedOrigins)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://staging.careerdev.example"]; !ok {
		t.Fatalf("CSV origin not trimmed: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.SSEPingInterval != 5*time.Second {
		t.Fatalf("SSEPingInterval = %v", cfg.SSEPingInterval)
	}
	if cfg.LimitRPS != 2.5 {
		t.Fatalf("LimitRPS = %v", cfg.LimitRPS)
	}
}

func TestLoadFromEnvRejectsNonPositiveDurations(t *testing.T) {
	setRequired(t)
	t.Setenv("CAREERDEV_SSE_MAX_DURATION", "-1s")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("LoadFromEnv accepted negative SSE duration")
	}
}
