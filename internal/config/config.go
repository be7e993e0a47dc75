// Package config loads server settings from the environment and an optional
// TOML file named by CONFIG_FILE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"multitimer/internal/model"
)

type Config struct {
	Port          string
	DBPath        string
	DBDriver      string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string
	TickInterval  time.Duration
	Limits        Limits
}

// Limits bounds user input accepted by the timer service.
type Limits struct {
	MaxNameLength int
	MaxTimers     int
	MaxPresets    int
}

type fileConfig struct {
	Server struct {
		Port        string   `toml:"port"`
		JWTSecret   string   `toml:"jwt-secret"`
		TokenTTL    int      `toml:"token-ttl-hours"`
		CORSOrigins []string `toml:"cors-origins"`
	} `toml:"server"`
	Database struct {
		Path          string `toml:"path"`
		Driver        string `toml:"driver"`
		MigrationsDir string `toml:"migrations-dir"`
	} `toml:"database"`
	Countdown struct {
		TickIntervalMillis int `toml:"tick-interval-ms"`
	} `toml:"countdown"`
	Limits struct {
		MaxNameLength int `toml:"max-name-length"`
		MaxTimers     int `toml:"max-timers"`
		MaxPresets    int `toml:"max-presets"`
	} `toml:"limits"`
}

func Default() Config {
	return Config{
		Port:          "8080",
		DBPath:        "./data/multitimer.db",
		DBDriver:      "sqlite3",
		JWTSecret:     "change-this-secret",
		TokenTTL:      72 * time.Hour,
		CORSOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		MigrationsDir: "./migrations",
		TickInterval:  100 * time.Millisecond,
		Limits: Limits{
			MaxNameLength: model.DefaultMaxNameLength,
			MaxTimers:     model.DefaultMaxTimers,
			MaxPresets:    model.DefaultMaxPresets,
		},
	}
}

// Load builds the configuration from defaults, then the CONFIG_FILE TOML
// file, then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = time.Duration(getEnvInt("TOKEN_TTL_HOURS", int(cfg.TokenTTL/time.Hour))) * time.Hour
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.TickInterval = time.Duration(getEnvInt("TICK_INTERVAL_MS", int(cfg.TickInterval/time.Millisecond))) * time.Millisecond
	cfg.Limits.MaxNameLength = getEnvInt("MAX_NAME_LENGTH", cfg.Limits.MaxNameLength)
	cfg.Limits.MaxTimers = getEnvInt("MAX_TIMERS", cfg.Limits.MaxTimers)
	cfg.Limits.MaxPresets = getEnvInt("MAX_PRESETS", cfg.Limits.MaxPresets)

	if cfg.DBDriver != "sqlite3" && cfg.DBDriver != "sqlite" {
		return cfg, fmt.Errorf("unsupported db driver %q (valid: sqlite3, sqlite)", cfg.DBDriver)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var file fileConfig
	meta, err := toml.Decode(string(data), &file)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if meta.IsDefined("server", "port") {
		cfg.Port = strings.TrimSpace(file.Server.Port)
	}
	if meta.IsDefined("server", "jwt-secret") {
		cfg.JWTSecret = file.Server.JWTSecret
	}
	if meta.IsDefined("server", "token-ttl-hours") {
		cfg.TokenTTL = time.Duration(file.Server.TokenTTL) * time.Hour
	}
	if meta.IsDefined("server", "cors-origins") {
		cfg.CORSOrigins = append([]string(nil), file.Server.CORSOrigins...)
	}
	if meta.IsDefined("database", "path") {
		cfg.DBPath = file.Database.Path
	}
	if meta.IsDefined("database", "driver") {
		cfg.DBDriver = strings.TrimSpace(file.Database.Driver)
	}
	if meta.IsDefined("database", "migrations-dir") {
		cfg.MigrationsDir = file.Database.MigrationsDir
	}
	if meta.IsDefined("countdown", "tick-interval-ms") {
		cfg.TickInterval = time.Duration(file.Countdown.TickIntervalMillis) * time.Millisecond
	}
	if meta.IsDefined("limits", "max-name-length") {
		cfg.Limits.MaxNameLength = file.Limits.MaxNameLength
	}
	if meta.IsDefined("limits", "max-timers") {
		cfg.Limits.MaxTimers = file.Limits.MaxTimers
	}
	if meta.IsDefined("limits", "max-presets") {
		cfg.Limits.MaxPresets = file.Limits.MaxPresets
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
