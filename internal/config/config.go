// Package config reads service settings from .env and the environment.
package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/liamcoop/healthpro/internal/logger"
)

type Config struct {
	Port           string
	DatabaseURL    string // empty keeps everything in memory
	MigrationsPath string // empty uses the embedded migrations
	MigrateOnStart bool
	RulesFile      string // empty uses the built-in rule table
	NormsFile      string // empty uses the built-in reference norms
	DefaultProfile string
	BatchWorkers   int
	RuleCacheTTL   time.Duration // how long a database-backed engine serves its cached rule table

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	LogLevel string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	// .env may set LOG_LEVEL after the logger already read the environment
	logLevel := getenv("LOG_LEVEL", "")
	if logLevel != "" {
		if level, err := logger.ParseLevel(logLevel); err == nil {
			logger.SetLevel(level)
		} else {
			logger.Warn("ignoring LOG_LEVEL", "error", err)
		}
	}

	return Config{
		Port:           getenv("PORT", "8080"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		MigrationsPath: getenv("MIGRATIONS_PATH", ""),
		MigrateOnStart: getenvBool("MIGRATE_ON_START", true),
		RulesFile:      getenv("RULES_FILE", ""),
		NormsFile:      getenv("NORMS_FILE", ""),
		DefaultProfile: getenv("DEFAULT_PROFILE", "default"),
		BatchWorkers:   getenvInt("BATCH_WORKERS", runtime.NumCPU()),
		RuleCacheTTL:   getenvDuration("RULE_CACHE_TTL", 30*time.Second),
		OpenAIAPIKey:   getenv("OPENAI_API_KEY", ""),
		OpenAIModel:    getenv("OPENAI_MODEL", ""),
		OpenAIBaseURL:  getenv("OPENAI_BASE_URL", ""),
		LogLevel:       logLevel,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
