package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"patrol-session-backend/config"
	"patrol-session-backend/internal/api"
	"patrol-session-backend/internal/db"
	"patrol-session-backend/internal/notify"
	"patrol-session-backend/internal/patrol"
	"patrol-session-backend/internal/remote"
	"patrol-session-backend/internal/store"
	"patrol-session-backend/internal/verify"
)

func main() {
	logger := log.New(os.Stdout, "patrold ", log.LstdFlags)

	// Local development convenience; missing .env is fine.
	if err := godotenv.Load(); err == nil {
		logger.Println("loaded environment from .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; supervisor notifications disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := store.NewGormStore(gormDB)
	logger.Println("snapshot store initialized")

	var notifier patrol.Notifier
	if webpushOptions != nil {
		pool := notify.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		notifier = pool
	}

	client := remote.NewClient(&cfg.Remote)
	verifications := verify.NewStore(cfg.Patrol.VerificationTTL)

	orch := patrol.New(ctx, &cfg.Patrol, snapshots, client, client, client, verifications, notifier)
	logger.Println("patrol orchestrator ready")

	router := api.NewRouter(cfg, orch, snapshots, webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
