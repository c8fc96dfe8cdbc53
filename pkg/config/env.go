// Package config provides shared environment variable helpers.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already present in the process environment win.
func LoadDotEnv(log *slog.Logger) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env file", "error", err)
	}
}

// EnvOr returns the environment variable value or a fallback default.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvOrInt returns an integer environment variable or a fallback default.
// Logs a warning if the value is set but not parseable.
func EnvOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return n
}

// EnvOrBool accepts true/false/1/0 (any case). Anything else yields fallback.
func EnvOrBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		slog.Warn("invalid boolean env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return b
}

// EnvOrSeconds reads an integer number of seconds as a duration.
func EnvOrSeconds(key string, fallback time.Duration) time.Duration {
	n := EnvOrInt(key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// PostgresDSN builds the ledger connection string from POSTGRES_* variables.
func PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		EnvOr("POSTGRES_USER", "monterosa"),
		EnvOr("POSTGRES_PASSWORD", "changeme"),
		EnvOr("POSTGRES_HOST", "localhost"),
		EnvOr("POSTGRES_PORT", "5432"),
		EnvOr("POSTGRES_DB", "monterosa_connector"),
		EnvOr("POSTGRES_SSLMODE", "disable"),
	)
}
