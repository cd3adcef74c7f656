package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/api/handlers"
	"github.com/dvloznov/revenue-cohorts/internal/app"
	"github.com/dvloznov/revenue-cohorts/internal/config"
	"github.com/dvloznov/revenue-cohorts/internal/export"
	"github.com/dvloznov/revenue-cohorts/internal/jobs"
	"github.com/dvloznov/revenue-cohorts/internal/jobs/inmemory"
	"github.com/dvloznov/revenue-cohorts/internal/logger"
)

func main() {
	cfg := config.FromEnv()

	// Parse command-line flags
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "Store backend: memory, sqlite or bigquery (or set REPORT_BACKEND env)")
	flag.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file (or set SQLITE_PATH env)")
	flag.StringVar(&cfg.Bucket, "bucket", cfg.Bucket, "GCS bucket for report exports (or set GCS_BUCKET env)")
	flag.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Reporting time zone (or set REPORT_TZ env)")
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	services, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	log.Info().
		Str("backend", cfg.Backend).
		Str("timezone", services.Resolver.Location().String()).
		Msg("Store opened")

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	exportsEnabled := cfg.Bucket != ""
	if exportsEnabled {
		storage, err := export.NewGCSStorage(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()

		exporter := export.NewExporter(storage, cfg.Bucket)
		jobsHandler.WithFetcher(exporter)
		jobHandler := jobs.NewExportHandler(services.Reports, exporter)

		// Start job consumer in background
		go func() {
			log.Info().Str("bucket", cfg.Bucket).Msg("Starting export worker")
			if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
				log.Error().Err(err).Msg("Export worker stopped with error")
			}
		}()
	} else {
		log.Warn().Msg("No GCS bucket configured - report exports will be disabled")
	}

	handler := newRouter(routes{
		reports:  handlers.NewReportsHandler(services.Reports, services.Comparator, log),
		exports:  handlers.NewExportsHandler(jobQueue, exportsEnabled, log),
		jobs:     jobsHandler,
		apiToken: cfg.APIToken,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
