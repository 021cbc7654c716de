package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musicvault/internal/assetcache"
	"musicvault/internal/catalog"
	"musicvault/internal/cleanup"
	"musicvault/internal/config"
	"musicvault/internal/downloads"
	"musicvault/internal/musicapi"
	"musicvault/internal/network"
	"musicvault/internal/syncer"
	"musicvault/internal/uploads"
	"musicvault/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup structured logging
	setupLogging(cfg.LogLevel)

	slog.Info("Starting MusicVault", "version", "1.0.0")

	// Initialize catalog index
	db, err := catalog.New(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close catalog", "error", err)
		}
	}()

	// Initialize asset cache
	assets, err := assetcache.New(cfg.AssetCachePath)
	if err != nil {
		return fmt.Errorf("failed to initialize asset cache: %w", err)
	}
	defer func() {
		if err := assets.Close(); err != nil {
			slog.Error("Failed to close asset cache", "error", err)
		}
	}()

	// Initialize music API client
	apiClient := musicapi.New(cfg.MusicAPIBaseURL)

	// Initialize download orchestrator and rebuild the downloaded id sets
	orchestrator := downloads.New(db, assets, apiClient)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = orchestrator.Init(initCtx)
	initCancel()
	if err != nil {
		return fmt.Errorf("failed to load download state: %w", err)
	}

	// Initialize upload registry, network monitor and reconciler
	registry := uploads.New()
	monitor := network.New(cfg.MusicAPIBaseURL)
	reconciler := syncer.New(db, apiClient, orchestrator, cfg.SyncDelay)

	// Initialize web server
	server := web.NewServer(cfg, orchestrator, registry, monitor)

	return runServer(cfg, server, monitor, reconciler, registry)
}

func runServer(cfg *config.Config, server *web.Server, monitor *network.Monitor, reconciler *syncer.Reconciler, registry *uploads.Registry) error {
	// Create main context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reconnect triggers a delayed library sync pass
	reconciler.Attach(ctx, monitor)

	// Start reachability probing
	go monitor.Run(ctx, cfg.NetworkProbeInterval)

	// Start the temp-upload sweep
	sweeper := cleanup.NewService(registry, cfg.TempUploadPaths, cfg.TempFileRetention)
	go sweeper.Run(ctx, cfg.CleanupInterval)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	// Cancel context to stop the background services
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
