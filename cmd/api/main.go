package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/analyst"
	"github.com/dvloznov/fop-tax-tracker/internal/api"
	"github.com/dvloznov/fop-tax-tracker/internal/api/handlers"
	"github.com/dvloznov/fop-tax-tracker/internal/config"
	"github.com/dvloznov/fop-tax-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/fop-tax-tracker/internal/infra/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/pipeline"
	"github.com/dvloznov/fop-tax-tracker/internal/rowextract"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Parse command-line flags
	port := flag.Int("port", cfg.Port, "HTTP server port (or set API_PORT env)")
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx := logger.WithContext(context.Background(), log)

	group, err := cfg.TaxGroupConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tax group configuration")
	}

	storage := gcsuploader.NewGCSStorageService()
	store := snapshot.Open(storage, cfg.DataDir, cfg.GCSBucket, cfg.GCSPrefix)

	rowExtractor, extractorName, err := rowextract.New(ctx, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create row extractor")
	}

	deps := pipeline.Deps{
		Storage:          storage,
		RowExtractor:     rowExtractor,
		RowExtractorName: extractorName,
		Store:            store,
		MaskSnapshots:    cfg.MaskSnapshots,
	}

	if cfg.BigQueryProject != "" {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		deps.Exporter = repo
	} else {
		log.Warn().Msg("No BigQuery project configured - imports will not be exported")
	}

	importer := pipeline.NewStatementImporter(deps)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.QueueConfig{
		Workers:    cfg.QueueWorkers,
		MaxRetries: cfg.QueueMaxRetries,
		Log:        log,
	}, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.QueueWorkers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, pipeline.ImportJobHandler(importer)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	// Initialize handlers
	router := api.NewRouter(api.RouterConfig{
		Log:        log,
		Statements: handlers.NewStatementsHandler(importer, jobQueue, log),
		Jobs:       handlers.NewJobsHandler(jobStore, log),
		Tax: handlers.NewTaxHandler(store, pipeline.ReportConfig{
			Group:             group,
			ClosedPeriodsOnly: cfg.ClosedPeriodsOnly,
		}, time.Now, log),
		Accounts: handlers.NewAccountsHandler(store, loadMCCDictionary(cfg.MCCDictionaryPath, log), log),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", *port).Int("tax_group", cfg.TaxGroup).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// loadMCCDictionary reads the merchant category names. A missing or broken
// file leaves every expense uncategorized.
func loadMCCDictionary(path string, log zerolog.Logger) analyst.MCCDictionary {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("MCC dictionary not loaded")
		return analyst.MCCDictionary{}
	}
	dict, err := analyst.ParseMCCDictionary(data)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("MCC dictionary not loaded")
		return analyst.MCCDictionary{}
	}
	return dict
}
