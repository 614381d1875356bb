package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vertextoedge/download-manager/internal/adapter/filesystem"
	"github.com/vertextoedge/download-manager/internal/adapter/sqlite"
	"github.com/vertextoedge/download-manager/internal/config"
	"github.com/vertextoedge/download-manager/internal/domain/event"
	"github.com/vertextoedge/download-manager/internal/logger"
	"github.com/vertextoedge/download-manager/internal/service/downloader"
	"github.com/vertextoedge/download-manager/internal/service/history"
	"github.com/vertextoedge/download-manager/internal/service/maintenance"
	"github.com/vertextoedge/download-manager/internal/service/reporter"
	"github.com/vertextoedge/download-manager/internal/service/server"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (defaults and DLM_* env vars apply without one)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, "download-manager"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting download-manager",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Initialize download directory
	fsManager, err := filesystem.NewManager(cfg.Download.Dir)
	if err != nil {
		zapLogger.Fatal("failed to prepare download directory", zap.Error(err))
	}

	// Open history database
	dbPath := cfg.GetDatabasePath()
	store, err := sqlite.Open(dbPath)
	if err != nil {
		zapLogger.Fatal("failed to open database", zap.Error(err), zap.String("path", dbPath))
	}
	defer store.Close()

	// Domain events
	dispatcher := event.NewInMemoryDispatcher(true, zapLogger)
	metrics := event.NewMetricsHandler()
	dispatcher.Subscribe(event.NewLoggingHandler(zapLogger))
	dispatcher.Subscribe(metrics)
	dispatcher.Subscribe(history.NewRecorder(store, zapLogger))

	// Create download manager
	managerCfg := downloader.Config{
		MaxConcurrent: cfg.Download.MaxConcurrent,
		ServerURL:     cfg.Download.ServerURL,
		AuthToken:     cfg.Download.AuthToken,
		SafetyMargin:  cfg.Download.GetMinFreeSpace(),
		Executor: downloader.ExecutorConfig{
			RequestTimeout:   cfg.Download.GetRequestTimeout(),
			MaxAttempts:      cfg.Download.RetryAttempts,
			RetryBackoff:     cfg.Download.GetRetryBackoff(),
			ProgressInterval: cfg.Download.GetProgressInterval(),
			BytesPerSecond:   cfg.Download.MaxBytesPerSecond,
		},
	}
	httpClient := downloader.NewHTTPClient(cfg.Download.GetRequestTimeout())
	manager := downloader.New(managerCfg, fsManager, httpClient, dispatcher, zapLogger)

	if cfg.Download.ReportProgress {
		dispatcher.Subscribe(reporter.New(manager, 10*time.Second, zapLogger))
	}

	// Create maintenance service
	maintenanceCfg := &maintenance.Config{
		StatsInterval:   cfg.Maintenance.GetStatsInterval(),
		CleanupInterval: cfg.Maintenance.GetCleanupInterval(),
		HistoryMaxAge:   cfg.Database.GetHistoryMaxAge(),
		DownloadDir:     cfg.Download.Dir,
	}
	maintenanceService := maintenance.New(maintenanceCfg, store, manager, fsManager, zapLogger)

	// Create HTTP server
	serverCfg := &server.Config{
		BindAddr:     cfg.HTTP.BindAddr,
		APIToken:     cfg.HTTP.APIToken,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
	}
	httpServer := server.New(serverCfg, manager, store, metrics, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Start maintenance service
	go func() {
		if err := maintenanceService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("download_dir", cfg.Download.Dir),
		zap.Int("max_concurrent", cfg.Download.MaxConcurrent),
	)
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")

	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting commands first, then pause transfers so partial files resume on restart
	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}
	maintenanceService.Stop()

	if err := manager.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("transfers did not stop in time", zap.Error(err))
	}

	// Flush pending event handlers before the database closes
	dispatcher.Wait()

	zapLogger.Info("application stopped successfully")
}
