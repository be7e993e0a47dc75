package service

import (
	"context"
	"database/sql"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"multitimer/internal/config"
	"multitimer/internal/db"
	"multitimer/internal/feed"
	"multitimer/internal/model"
	"multitimer/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func createUser(t *testing.T, database *sql.DB, id string) {
	t.Helper()
	now := time.Now().UTC()
	if err := repository.NewUserRepository(database).Create(context.Background(), &model.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func testLimits() config.Limits {
	return config.Limits{MaxNameLength: 20, MaxTimers: 3, MaxPresets: 4}
}

func newTimerService(t *testing.T, database *sql.DB) (*TimerService, *feed.Hub[TimerFeed]) {
	t.Helper()
	hub := feed.NewHub[TimerFeed]()
	logger := log.New(io.Discard, "", 0)
	return NewTimerService(repository.NewTimerRepository(database), testLimits(), hub, logger), hub
}

func mustCreate(t *testing.T, svc *TimerService, userID, name string, presets ...PresetInput) *model.TimerWithPresets {
	t.Helper()
	ctx := context.Background()
	timer, apiErr := svc.Create(ctx, userID, name)
	if apiErr != nil {
		t.Fatalf("create %s: %s", name, apiErr.Message)
	}
	for _, preset := range presets {
		timer, apiErr = svc.AddPreset(ctx, userID, name, preset)
		if apiErr != nil {
			t.Fatalf("add preset %s: %s", preset.PresetName, apiErr.Message)
		}
	}
	return timer
}

func presetNames(presets []model.PresetTimer) []string {
	names := make([]string, 0, len(presets))
	for _, preset := range presets {
		names = append(names, preset.PresetName)
	}
	return names
}
