package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multitimer/internal/config"
	"multitimer/internal/db"
	"multitimer/internal/feed"
	"multitimer/internal/handler"
	"multitimer/internal/repository"
	"multitimer/internal/router"
	"multitimer/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	logger := log.Default()
	userRepo := repository.NewUserRepository(database)
	timerRepo := repository.NewTimerRepository(database)
	runRepo := repository.NewRunRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	timerService := service.NewTimerService(timerRepo, cfg.Limits, feed.NewHub[service.TimerFeed](), logger)
	runService := service.NewRunService(timerRepo, runRepo, service.RunOptions{
		TickInterval: cfg.TickInterval,
		Logger:       logger,
	})
	transferService := service.NewTransferService(timerService)

	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Timer:    handler.NewTimerHandler(timerService, cfg.CORSOrigins),
		Run:      handler.NewRunHandler(runService, cfg.CORSOrigins),
		Transfer: handler.NewTransferHandler(transferService),
	}, cfg.CORSOrigins)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: engine}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown server: %v", err)
		}
	}()

	log.Printf("multitimer listening on :%s (driver %s)", cfg.Port, cfg.DBDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("run server: %v", err)
	}

	runService.Close()
	log.Println("server stopped")
}
