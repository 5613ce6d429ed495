// Command ingester runs the publication ingestion scheduler: it monitors
// city publication feeds on their weekly publication cadence, extracts
// candidate event items, persists them, and announces new items downstream.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wanderhub/publication-ingest/internal/catalog"
	"github.com/wanderhub/publication-ingest/internal/config"
	"github.com/wanderhub/publication-ingest/internal/control"
	"github.com/wanderhub/publication-ingest/internal/fetching"
	"github.com/wanderhub/publication-ingest/internal/ingest"
	"github.com/wanderhub/publication-ingest/internal/messaging"
	"github.com/wanderhub/publication-ingest/internal/notify"
	"github.com/wanderhub/publication-ingest/internal/parsing"
	"github.com/wanderhub/publication-ingest/internal/scheduler"
	"github.com/wanderhub/publication-ingest/internal/storage"

	_ "github.com/lib/pq" // Postgres driver
)

const (
	// Allows ongoing fetches to complete before the process exits.
	defaultShutdownTimeout = 15 * time.Second
	// Timeout for the startup database connectivity check.
	dbPingTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	logger.Info("Starting publication ingester")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(logger, cancel)

	// --- Database ---
	dbPool, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Error("Failed to open database connection pool", slog.Any("error", err))
		os.Exit(1)
	}
	dbPool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbPool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbPool.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, pingCancel := context.WithTimeout(ctx, dbPingTimeout)
	err = dbPool.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		logger.Error("Failed to ping database", slog.Any("error", err))
		_ = dbPool.Close()
		os.Exit(1)
	}
	logger.Info("Database connection pool established",
		slog.Int("max_open_conns", cfg.Database.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	store := storage.NewEventStore(dbPool, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Error closing database connection pool", slog.Any("error", err))
		}
	}()

	// --- Message queue ---
	mqClient, err := messaging.NewClient(cfg.MessageQueue.URL, logger)
	if err != nil {
		logger.Error("Failed to initialize message queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mqClient.Close(); err != nil {
			logger.Error("Error closing message queue connection", slog.Any("error", err))
		}
	}()

	// --- Ingest pipeline ---
	fetcher := fetching.NewFetcher(fetching.DefaultConfig(), logger)
	parser := parsing.NewParser(logger)

	notifier, err := notify.NewNotifier(cfg.Notify, mqClient, logger)
	if err != nil {
		logger.Error("Failed to initialize event notifier", slog.Any("error", err))
		os.Exit(1)
	}

	processor := ingest.NewProcessor(fetcher, parser, store, notifier, logger)

	// --- Scheduler over the publication catalog ---
	feedCatalog := catalog.Builtin()
	logger.Info("Loaded publication catalog",
		slog.Int("feeds", len(feedCatalog.All())),
		slog.Int("active", len(feedCatalog.ActiveFeeds())),
		slog.Int("cities", len(feedCatalog.Cities())),
	)

	sched := scheduler.New(cfg.Scheduler, feedCatalog, processor, logger)
	sched.Start(ctx)
	defer sched.Stop()

	// --- Operator command channel ---
	controlHandler := control.NewHandler(sched, mqClient, cfg.MessageQueue.ControlQueue, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := controlHandler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Control handler failed", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping scheduler")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All background services stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout exceeded, forcing exit")
	}

	logger.Info("Publication ingester shut down")
}

// setupSignalHandler registers for SIGINT and SIGTERM and cancels the main
// context on the first signal.
func setupSignalHandler(logger *slog.Logger, cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signalChan
		logger.Info("Received signal, initiating shutdown", slog.String("signal", sig.String()))
		cancel()
	}()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
