// Package main implements timerctl, a terminal client that works directly on
// the multitimer database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"multitimer/internal/config"
	"multitimer/internal/db"
	"multitimer/internal/feed"
	"multitimer/internal/model"
	"multitimer/internal/repository"
	"multitimer/internal/service"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var userEmail string

var rootCmd = &cobra.Command{
	Use:           "timerctl",
	Short:         "Manage and run preset timers from the terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userEmail, "user", "u", os.Getenv("TIMERCTL_USER"), "email of the account to act as")
}

// app bundles the services a command needs for one user.
type app struct {
	cfg       config.Config
	database  *sql.DB
	user      *model.User
	timers    *service.TimerService
	transfers *service.TransferService
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		database.Close()
		return nil, err
	}

	a, err := newApp(ctx, cfg, database, userEmail)
	if err != nil {
		database.Close()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, cfg config.Config, database *sql.DB, email string) (*app, error) {
	if email == "" {
		return nil, errors.New("--user is required")
	}
	user, err := repository.NewUserRepository(database).GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("no account for %s", email)
	}
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "timerctl: ", 0)
	timers := service.NewTimerService(repository.NewTimerRepository(database), cfg.Limits, feed.NewHub[service.TimerFeed](), logger)
	return &app{
		cfg:       cfg,
		database:  database,
		user:      user,
		timers:    timers,
		transfers: service.NewTransferService(timers),
	}, nil
}

func (a *app) Close() error {
	return a.database.Close()
}
