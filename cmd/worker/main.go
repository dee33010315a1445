package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/config"
	"github.com/dvloznov/fop-tax-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/fop-tax-tracker/internal/infra/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/livefeed"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/monobank"
	"github.com/dvloznov/fop-tax-tracker/internal/nbu"
	"github.com/dvloznov/fop-tax-tracker/internal/notionsync"
	"github.com/dvloznov/fop-tax-tracker/internal/pipeline"
	"github.com/dvloznov/fop-tax-tracker/internal/scheduler"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	once := flag.Bool("once", false, "Run the sync once and exit instead of scheduling it")
	schedule := flag.String("schedule", cfg.SyncSchedule, "Cron schedule with seconds (or set SYNC_SCHEDULE env)")
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.MonobankToken == "" {
		log.Fatal().Msg("MONOBANK_TOKEN is required")
	}

	group, err := cfg.TaxGroupConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tax group configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store := snapshot.Open(gcsuploader.NewGCSStorageService(), cfg.DataDir, cfg.GCSBucket, cfg.GCSPrefix)

	syncer := livefeed.NewSyncer(livefeed.SyncerConfig{
		Source: monobank.NewClient(cfg.MonobankToken, log,
			monobank.WithBaseURL(cfg.MonobankBaseURL),
			monobank.WithPause(cfg.MonobankPause),
		),
		Store:    store,
		Rates:    nbu.NewRateCache(store, nbu.NewClient(cfg.NBUBaseURL, log), log),
		Currency: group.AccountCurrency,
		Log:      log,
	})

	sinks := pipeline.ReportSinks{Store: store}
	if cfg.BigQueryProject != "" {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		sinks.Summaries = repo
	}
	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		sinks.Notion = notionsync.NewNotionClient(cfg.NotionToken)
		sinks.NotionDatabaseID = cfg.NotionDatabaseID
	}

	reportCfg := pipeline.ReportConfig{Group: group, ClosedPeriodsOnly: cfg.ClosedPeriodsOnly}

	job := scheduler.NewLiveFeedSyncJob(scheduler.LiveFeedSyncConfig{
		Log:    log,
		Syncer: syncer,
		OnSynced: func(ctx context.Context, res *livefeed.SyncResult) error {
			ctx = logger.WithContext(ctx, log.With().Int("year", res.Year).Logger())

			report, err := pipeline.LiveFeedReport(ctx, store, reportCfg, res.Year, time.Now())
			if err != nil {
				return err
			}
			_, err = pipeline.PublishReport(ctx, report, sinks)
			return err
		},
	})

	sched := scheduler.New(log)

	if *once {
		if err := sched.RunNow(job); err != nil {
			log.Fatal().Err(err).Msg("Live-feed sync failed")
		}
		log.Info().Msg("Live-feed sync completed")
		return
	}

	if err := sched.AddJob(*schedule, job); err != nil {
		log.Fatal().Err(err).Str("schedule", *schedule).Msg("Failed to schedule live-feed sync")
	}
	sched.Start()

	log.Info().Str("schedule", *schedule).Str("currency", group.AccountCurrency).Msg("Worker service started, waiting for schedule...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Stop waits for a running sync to finish
	sched.Stop()

	log.Info().Msg("Worker service exited")
}
