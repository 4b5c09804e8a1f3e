package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesDefaults(t *testing.T) {
	t.Setenv(configFileEnv, "")
	t.Setenv("APP_PORT", "")
	t.Setenv("DEFAULT_TIMEZONE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}
	if cfg.AppPort != "8000" {
		t.Fatalf("expected default port 8000, got %q", cfg.AppPort)
	}
	if cfg.DefaultTimezone != "America/New_York" {
		t.Fatalf("expected default timezone, got %q", cfg.DefaultTimezone)
	}
	if len(cfg.CORSAllowOrigins) != 3 {
		t.Fatalf("expected default CORS origins, got %v", cfg.CORSAllowOrigins)
	}
	if cfg.StoreTimeoutSeconds != 10 {
		t.Fatalf("expected default store timeout, got %d", cfg.StoreTimeoutSeconds)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newbie.yaml")
	content := []byte("app_port: \"9090\"\nkafka_summary_topic: file.topic\nstore_timeout_seconds: 3\ncors_allow_origins:\n  - https://file.example\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(configFileEnv, path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("KAFKA_SUMMARY_TOPIC", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}
	if cfg.AppPort != "7070" {
		t.Fatalf("expected env port to win, got %q", cfg.AppPort)
	}
	if cfg.KafkaSummaryTopic != "file.topic" {
		t.Fatalf("expected empty env to keep file value, got %q", cfg.KafkaSummaryTopic)
	}
	if cfg.StoreTimeoutSeconds != 3 {
		t.Fatalf("expected file timeout, got %d", cfg.StoreTimeoutSeconds)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("expected CSV brokers, got %v", cfg.KafkaBrokers)
	}
	if len(cfg.CORSAllowOrigins) != 1 || cfg.CORSAllowOrigins[0] != "https://file.example" {
		t.Fatalf("expected file CORS origins, got %v", cfg.CORSAllowOrigins)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); !errors.Is(err, ErrLoadConfig) {
		t.Fatalf("expected ErrLoadConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.JWTSecret = "test-secret-1234567890"
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected defaults with secret to validate: %v", err)
	}

	cases := map[string]func(*Config){
		"missing database": func(c *Config) { c.DatabaseURL = " " },
		"missing secret":   func(c *Config) { c.JWTSecret = "" },
		"insecure secret":  func(c *Config) { c.JWTSecret = "change-me-in-production" },
		"short secret":     func(c *Config) { c.JWTSecret = "short" },
		"bad prefix":       func(c *Config) { c.APIPrefix = "api" },
		"bad timezone":     func(c *Config) { c.DefaultTimezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
