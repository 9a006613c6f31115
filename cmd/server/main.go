package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/xreply/internal/api"
	"github.com/iconidentify/xreply/internal/api/handler"
	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/publisher"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/internal/scheduler"
	"github.com/iconidentify/xreply/internal/service"
	"github.com/iconidentify/xreply/internal/worker"
	"github.com/iconidentify/xreply/pkg/apify"
	"github.com/iconidentify/xreply/pkg/crypto"
	"github.com/iconidentify/xreply/pkg/openai"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// resultPublisher is what main needs from a publisher backend.
type resultPublisher interface {
	service.ResultPublisher
	Close() error
}

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xreply %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger; the level is applied once config is loaded
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting xreply",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("unknown log level, using info", "log_level", cfg.LogLevel)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// Storage
	store, err := repository.Open(startCtx, cfg.Storage)
	if err != nil {
		logger.Error("failed to open settings store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	logger.Info("settings store ready", "driver", cfg.Storage.Driver)

	var sealer *crypto.Sealer
	if cfg.Storage.EncryptionKey != "" {
		if sealer, err = crypto.NewSealer(cfg.Storage.EncryptionKey); err != nil {
			logger.Error("failed to initialize key sealing", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("STORAGE_ENCRYPTION_KEY not set, API keys are stored in plaintext")
	}

	// Activity log
	events, err := service.NewEventService(service.EventServiceConfigFrom(cfg.Events), logger)
	if err != nil {
		logger.Error("failed to initialize event service", "error", err)
		os.Exit(1)
	}

	// Worker pool shared by every generation batch
	pool := worker.NewPool(worker.Config{Workers: cfg.Session.GenerationWorkers}, logger)
	pool.Start()

	// Upstream clients and services
	extraction := service.NewExtractionService(apify.NewClient(cfg.Apify), cfg.Apify.ActorID, events, logger)
	generation := service.NewGenerationService(openai.NewClient(cfg.OpenAI), pool, events, logger)
	settings := service.NewSettingsService(store, sealer, cfg.Cache, events, logger)

	hub := handler.NewHub(events, cfg.Server.AllowedOrigins, logger)

	var pub resultPublisher
	if cfg.Publisher.Enabled() {
		rmq, err := publisher.NewRabbitMQ(publisher.ConfigFrom(cfg.Publisher), logger)
		if err != nil {
			logger.Error("failed to connect result publisher", "error", err)
			os.Exit(1)
		}
		pub = rmq
	} else {
		pub = publisher.NewNoop(logger)
	}

	sessions := service.NewSessionManager(service.SessionConfigFrom(cfg.Session), service.SessionDeps{
		Extractor:   extraction,
		Generator:   generation,
		Credentials: settings,
		Drafts:      store,
		Events:      events,
		Notifier:    hub,
		Publisher:   pub,
	}, logger)

	// Scheduled maintenance
	sched := scheduler.New(0, logger)
	if err := sched.AddJob("events-cleanup", cfg.Events.CleanupSchedule, events.CleanupOldEvents); err != nil {
		logger.Error("failed to schedule event cleanup", "schedule", cfg.Events.CleanupSchedule, "error", err)
		os.Exit(1)
	}
	sched.Start()

	// Setup router
	router := api.NewRouter(api.Handlers{
		Session:  handler.NewSessionHandler(sessions, logger),
		Settings: handler.NewSettingsHandler(settings, logger),
		Events:   handler.NewEventHandler(events, logger),
		Health:   handler.NewHealthHandler(store, sessions, events, sched),
		Hub:      hub,
	}, api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Apify.Timeout + time.Minute,
	}, logger)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Cancel in-flight runs and wait for them to unwind
	if err := sessions.Shutdown(ctx); err != nil {
		logger.Error("session shutdown error", "error", err)
	}

	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		logger.Warn("scheduled job still running at shutdown")
	}

	if err := pool.Stop(10 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}
	if err := pub.Close(); err != nil {
		logger.Error("publisher close error", "error", err)
	}
	if err := events.Close(); err != nil {
		logger.Error("event service close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("settings store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
