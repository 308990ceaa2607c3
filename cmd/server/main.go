// LINE hand-off gateway server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/line-handoff/internal/api"
	"github.com/ashureev/line-handoff/internal/cache"
	"github.com/ashureev/line-handoff/internal/config"
	"github.com/ashureev/line-handoff/internal/handoff"
	"github.com/ashureev/line-handoff/internal/line"
	"github.com/ashureev/line-handoff/internal/notify"
	"github.com/ashureev/line-handoff/internal/nlu"
	"github.com/ashureev/line-handoff/internal/store"
	"github.com/ashureev/line-handoff/internal/sweeper"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Process-wide credential/profile cache.
	credCache := cache.New()

	lineClient := line.NewClient(line.ClientConfig{
		BaseURL:       cfg.MessagingAPIURL,
		ChannelID:     cfg.ChannelID,
		ChannelSecret: cfg.ChannelSecret,
		TokenEndpoint: cfg.TokenIssueURL,
		CacheTTL:      cfg.CacheTTL,
	}, credCache, logger)
	notifier := notify.NewClient(cfg.NotifyURL, cfg.NotifyToken)
	forwarder := nlu.NewForwarder(cfg.NLUWebhookURL)

	machine := handoff.NewMachine(repo, lineClient, notifier, forwarder, logger)

	// Initialize handlers.
	handler := api.NewHandler(machine, cfg.ChannelSecret)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional in-process sweep, for deployments without an external
	// scheduler hitting /schedule.
	if cfg.Sweep.Cron != "" {
		worker, err := sweeper.New(machine, cfg.Sweep.Cron, cfg.Sweep.ThresholdMinutes, logger)
		if err != nil {
			slog.Error("Failed to initialize sweep worker", "error", err)
			os.Exit(1)
		}
		worker.Start(ctx)
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
