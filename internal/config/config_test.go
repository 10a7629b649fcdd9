package config

import (
	"runtime"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "RULES_FILE", "DEFAULT_PROFILE", "BATCH_WORKERS", "MIGRATE_ON_START", "OPENAI_API_KEY", "LOG_LEVEL", "RULE_CACHE_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DefaultProfile != "default" {
		t.Errorf("DefaultProfile = %q, want default", cfg.DefaultProfile)
	}
	if cfg.BatchWorkers != runtime.NumCPU() {
		t.Errorf("BatchWorkers = %d, want %d", cfg.BatchWorkers, runtime.NumCPU())
	}
	if !cfg.MigrateOnStart {
		t.Error("MigrateOnStart should default to true")
	}
	if cfg.RuleCacheTTL != 30*time.Second {
		t.Errorf("RuleCacheTTL = %v, want 30s", cfg.RuleCacheTTL)
	}
	if cfg.DatabaseURL != "" || cfg.OpenAIAPIKey != "" {
		t.Errorf("unexpected non-empty settings: %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/healthpro")
	t.Setenv("DEFAULT_PROFILE", "senior")
	t.Setenv("BATCH_WORKERS", "3")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("RULE_CACHE_TTL", "5s")

	cfg := Load()
	if cfg.Port != "9090" || cfg.DatabaseURL != "postgres://localhost/healthpro" {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.DefaultProfile != "senior" {
		t.Errorf("DefaultProfile = %q, want senior", cfg.DefaultProfile)
	}
	if cfg.BatchWorkers != 3 {
		t.Errorf("BatchWorkers = %d, want 3", cfg.BatchWorkers)
	}
	if cfg.MigrateOnStart {
		t.Error("MigrateOnStart should be false")
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("OpenAIModel = %q, want gpt-4o", cfg.OpenAIModel)
	}
	if cfg.RuleCacheTTL != 5*time.Second {
		t.Errorf("RuleCacheTTL = %v, want 5s", cfg.RuleCacheTTL)
	}
}

func TestGetenvFallbacks(t *testing.T) {
	t.Setenv("HP_INT", "nope")
	t.Setenv("HP_ZERO", "0")
	t.Setenv("HP_BOOL", "maybe")

	if got := getenvInt("HP_INT", 4); got != 4 {
		t.Errorf("getenvInt(invalid) = %d, want 4", got)
	}
	if got := getenvInt("HP_ZERO", 4); got != 4 {
		t.Errorf("getenvInt(0) = %d, want 4", got)
	}
	if got := getenvBool("HP_BOOL", true); !got {
		t.Error("getenvBool(invalid) should fall back")
	}
}
