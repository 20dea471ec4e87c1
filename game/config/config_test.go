package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StoreDriver != "memory" {
		t.Errorf("Expected memory driver, got %q", cfg.StoreDriver)
	}
	if cfg.Container != "chopsticks_game_service" {
		t.Errorf("Expected default container, got %q", cfg.Container)
	}
	if cfg.Retention != 24*time.Hour {
		t.Errorf("Expected 24h retention, got %v", cfg.Retention)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("Expected hourly sweep, got %v", cfg.SweepInterval)
	}
	if cfg.RejectSelfJoin {
		t.Error("Expected self join allowed by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("CHOPSTICKS_STORE_DRIVER", "bolt")
	t.Setenv("CHOPSTICKS_STORE_PATH", "/tmp/games.db")
	t.Setenv("CHOPSTICKS_REJECT_SELF_JOIN", "true")
	t.Setenv("CHOPSTICKS_RETENTION", "90m")
	t.Setenv("CHOPSTICKS_LOG_LEVEL", "DEBUG")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StoreDriver != "bolt" || cfg.StorePath != "/tmp/games.db" {
		t.Errorf("Unexpected store settings: %s %s", cfg.StoreDriver, cfg.StorePath)
	}
	if !cfg.RejectSelfJoin {
		t.Error("Expected self join rejected")
	}
	if cfg.Retention != 90*time.Minute {
		t.Errorf("Expected 90m retention, got %v", cfg.Retention)
	}
	level, err := cfg.Level()
	if err != nil || level != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %v (%v)", level, err)
	}
	if !cfg.Durable() {
		t.Error("Expected bolt to be durable")
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("CHOPSTICKS_RETENTION", "forever")

	_, err := Parse()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CHOPSTICKS_CONTAINER=from_dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override set variables; t.Setenv restores it afterwards
	t.Setenv("CHOPSTICKS_CONTAINER", "")
	os.Unsetenv("CHOPSTICKS_CONTAINER")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Container != "from_dotenv" {
		t.Errorf("Expected container from .env, got %q", cfg.Container)
	}
}

func TestLoadMissingDotEnv(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Missing .env should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:   "memory",
			Container:     "c",
			Retention:     time.Hour,
			SweepInterval: time.Minute,
			LogLevel:      "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "redis" }},
		{"sqlite without path", func(c *Config) { c.StoreDriver = "sqlite" }},
		{"file without path", func(c *Config) { c.StoreDriver = "file" }},
		{"empty container", func(c *Config) { c.Container = "" }},
		{"zero retention", func(c *Config) { c.Retention = 0 }},
		{"zero sweep interval", func(c *Config) { c.SweepInterval = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
