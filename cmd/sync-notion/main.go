package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/config"
	"github.com/dvloznov/fop-tax-tracker/internal/gcsuploader"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/notionsync"
	"github.com/dvloznov/fop-tax-tracker/internal/pipeline"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.LogLevel)

	// Parse CLI flags
	year := flag.Int("year", time.Now().Year(), "Year to compute from the live-feed snapshot")
	fromSnapshot := flag.Bool("from-snapshot", false, "Sync the last published report instead of computing one")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDatabaseID, "Notion database ID (or set NOTION_DATABASE_ID env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	store := snapshot.Open(gcsuploader.NewGCSStorageService(), cfg.DataDir, cfg.GCSBucket, cfg.GCSPrefix)

	var report *tax.Report
	if *fromSnapshot {
		report = &tax.Report{}
		found, err := store.Load(ctx, snapshot.ReportKey, report)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load report snapshot")
		}
		if !found {
			log.Fatal().Str("key", snapshot.ReportKey).Msg("No report has been published yet")
		}
	} else {
		group, err := cfg.TaxGroupConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid tax group configuration")
		}
		report, err = pipeline.LiveFeedReport(ctx, store, pipeline.ReportConfig{
			Group:             group,
			ClosedPeriodsOnly: cfg.ClosedPeriodsOnly,
		}, *year, time.Now())
		if err != nil {
			log.Fatal().Err(err).Int("year", *year).Msg("Failed to compute report")
		}
	}

	log.Info().
		Int("years", len(report.Years)).
		Bool("from_snapshot", *fromSnapshot).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	stats, err := notionsync.SyncReport(ctx, notionClient, *notionDBID, report, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		stats.Created, stats.Updated, stats.Archived, stats.Failed)
}
