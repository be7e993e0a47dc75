package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("TICK_INTERVAL_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DBDriver != "sqlite3" {
		t.Fatalf("expected sqlite3 driver, got %s", cfg.DBDriver)
	}
	if cfg.TickInterval != 100*time.Millisecond {
		t.Fatalf("expected 100ms tick, got %s", cfg.TickInterval)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multitimer.toml")
	content := `
[server]
port = "9000"
cors-origins = ["https://timers.example"]

[database]
driver = "sqlite"

[countdown]
tick-interval-ms = 250

[limits]
max-name-length = 12
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("TICK_INTERVAL_MS", "")
	t.Setenv("MAX_NAME_LENGTH", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Fatalf("expected env port to win, got %s", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected file driver sqlite, got %s", cfg.DBDriver)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms tick, got %s", cfg.TickInterval)
	}
	if cfg.Limits.MaxNameLength != 12 {
		t.Fatalf("expected max name length 12, got %d", cfg.Limits.MaxNameLength)
	}
	if cfg.Limits.MaxTimers != 50 {
		t.Fatalf("expected untouched max timers 50, got %d", cfg.Limits.MaxTimers)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://timers.example" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DRIVER", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
