package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/event-comb/app/api"
	"github.com/lysyi3m/event-comb/app/cfg"
	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/pipeline"
	"github.com/lysyi3m/event-comb/app/source"
	"github.com/lysyi3m/event-comb/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		// --help was shown
		return nil
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Event Comb", "version", appCfg.Version, "timezone", appCfg.Timezone)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}

	enabled := configCache.GetEnabledConfigs()
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "total", configCache.GetConfigCount(), "enabled", len(enabled))

	httpClient := &http.Client{Timeout: time.Duration(appCfg.SourceTimeout) * time.Second}
	fetcher := source.NewFetcher(httpClient, appCfg.UserAgent, appCfg.RequestsPerSecond)

	adapters, err := source.NewAdapters(enabled, fetcher, source.NewContentExtractor())
	if err != nil {
		return fmt.Errorf("failed to build source adapters: %w", err)
	}

	eventRepo := database.NewEventRepository(db)
	runLogRepo := database.NewRunLogRepository(db)

	orchestrator := pipeline.NewOrchestrator(
		adapters,
		event.NewNormalizer(appCfg.DescriptionMaxLength),
		eventRepo,
		runLogRepo,
		event.NewSnapshotWriter(appCfg.SnapshotPath),
		pipeline.Options{
			Concurrency:   appCfg.SourceConcurrency,
			SourceTimeout: time.Duration(appCfg.SourceTimeout) * time.Second,
		},
	)

	if appCfg.RunOnce {
		return runOnce(orchestrator, eventRepo, appCfg.RetentionDays)
	}

	scheduler := tasks.NewScheduler(orchestrator, eventRepo, tasks.SchedulerOptions{
		Interval:      time.Duration(appCfg.SchedulerInterval) * time.Second,
		RetentionDays: appCfg.RetentionDays,
	})
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(configCache, eventRepo, runLogRepo, orchestrator, scheduler, appCfg.SnapshotPath, appCfg.SchedulerInterval)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case serveErr = <-serverErrChan:
		slog.Error("Server error, shutting down", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Event Comb shutdown complete")
	return serveErr
}

// runOnce executes the retention sweep followed by a single pipeline run.
// Only a publish failure makes the process exit non-zero.
func runOnce(runner tasks.PipelineRunner, eventRepo database.EventRepository, retentionDays int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	purgeTask := tasks.NewPurgeEventsTask(eventRepo, retentionDays, tasks.TriggerManual)
	purgeTask.Start()
	if err := purgeTask.Execute(ctx); err != nil {
		slog.Warn("Retention sweep failed", "error", err)
	}

	runTask := tasks.NewRunPipelineTask(runner, tasks.TriggerManual)
	runTask.Start()
	return runTask.Execute(ctx)
}
