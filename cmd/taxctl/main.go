package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
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
	"github.com/dvloznov/fop-tax-tracker/internal/rowextract"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	switch os.Args[1] {
	case "import":
		runImport(cfg, log)
	case "report":
		runReport(cfg, log)
	case "sync":
		runSync(cfg, log)
	case "summaries":
		runSummaries(cfg, log)
	case "transactions":
		runTransactions(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FOP Tax Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  taxctl <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import         Parse a bank statement PDF and print its tax report")
	fmt.Println("  report         Compute the tax report of a year from the live-feed snapshots")
	fmt.Println("  sync           Fetch a year of Monobank transactions and NBU rates")
	fmt.Println("  summaries      List the exported quarter summaries of a year")
	fmt.Println("  transactions   List exported transactions in a date range")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'taxctl <command> -h' for more information on a command.")
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func openStore(cfg *config.Config) snapshot.Store {
	return snapshot.Open(gcsuploader.NewGCSStorageService(), cfg.DataDir, cfg.GCSBucket, cfg.GCSPrefix)
}

func openRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger) *infraBQ.Repository {
	if cfg.BigQueryProject == "" {
		log.Fatal().Msg("Error: BIGQUERY_PROJECT is required")
	}
	repo, err := infraBQ.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	return repo
}

func reportConfig(cfg *config.Config, log zerolog.Logger) pipeline.ReportConfig {
	group, err := cfg.TaxGroupConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tax group configuration")
	}
	return pipeline.ReportConfig{Group: group, ClosedPeriodsOnly: cfg.ClosedPeriodsOnly}
}

func runImport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "Path to a local statement PDF")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the statement PDF")
	export := fs.Bool("export", false, "Export the transactions to BigQuery and save snapshots")
	fs.Parse(os.Args[2:])

	source := *file
	if source == "" {
		source = *gcsURI
	}
	if source == "" || (*file != "" && *gcsURI != "") {
		log.Fatal().Msg("Error: exactly one of --file or --gcs-uri is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rowExtractor, extractorName, err := rowextract.New(ctx, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create row extractor")
	}

	deps := pipeline.Deps{
		RowExtractor:     rowExtractor,
		RowExtractorName: extractorName,
	}
	if *export {
		repo := openRepository(ctx, cfg, log)
		defer repo.Close()
		deps.Exporter = repo
		deps.Store = openStore(cfg)
		deps.MaskSnapshots = cfg.MaskSnapshots
	}

	log.Info().Str("source", source).Str("row_extractor", extractorName).Msg("Starting import")

	state, err := pipeline.NewStatementImporter(deps).Import(ctx, source, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Println("\n=== Statement ===")
	fmt.Printf("Bank:         %s\n", state.Bank)
	if state.ImportRunID != "" {
		fmt.Printf("Import run:   %s\n", state.ImportRunID)
	}
	fmt.Printf("Transactions: %d\n", len(state.Transactions))
	fmt.Printf("Income:       %d\n", len(state.Income))

	if state.Result != nil && len(state.Result.Warnings) > 0 {
		fmt.Printf("\n=== Warnings (%d) ===\n", len(state.Result.Warnings))
		for _, w := range state.Result.Warnings {
			fmt.Printf("  %s\n", w.Error())
		}
	}

	report, err := pipeline.ComputeReport(ctx, state.Income, nil, reportConfig(cfg, log), time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute report")
	}
	fmt.Println("\n=== Report ===")
	printJSON(report)
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	year := fs.Int("year", time.Now().Year(), "Year to report on")
	publish := fs.Bool("publish", false, "Publish the report to the snapshot store, BigQuery and Notion")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(cfg)
	report, err := pipeline.LiveFeedReport(ctx, store, reportConfig(cfg, log), *year, time.Now())
	if err != nil {
		log.Fatal().Err(err).Int("year", *year).Msg("Failed to compute report")
	}

	if !*publish {
		printJSON(report)
		return
	}

	sinks := pipeline.ReportSinks{Store: store}
	if cfg.BigQueryProject != "" {
		repo := openRepository(ctx, cfg, log)
		defer repo.Close()
		sinks.Summaries = repo
	}
	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		sinks.Notion = notionsync.NewNotionClient(cfg.NotionToken)
		sinks.NotionDatabaseID = cfg.NotionDatabaseID
	}

	res, err := pipeline.PublishReport(ctx, report, sinks)
	if err != nil {
		log.Fatal().Err(err).Msg("Publishing failed")
	}
	printJSON(res)
}

func runSync(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	year := fs.Int("year", time.Now().Year(), "Year to fetch")
	token := fs.String("token", cfg.MonobankToken, "Monobank personal token (or set MONOBANK_TOKEN env)")
	fs.Parse(os.Args[2:])

	if *token == "" {
		log.Fatal().Msg("Error: --token is required")
	}

	// A full year takes a rate-limited request per month and account.
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(cfg)
	currency := reportConfig(cfg, log).Group.AccountCurrency

	syncer := livefeed.NewSyncer(livefeed.SyncerConfig{
		Source: monobank.NewClient(*token, log,
			monobank.WithBaseURL(cfg.MonobankBaseURL),
			monobank.WithPause(cfg.MonobankPause),
		),
		Store:    store,
		Rates:    nbu.NewRateCache(store, nbu.NewClient(cfg.NBUBaseURL, log), log),
		Currency: currency,
		Log:      log,
	})

	res, err := syncer.Sync(ctx, *year)
	if err != nil {
		log.Fatal().Err(err).Int("year", *year).Msg("Sync failed")
	}
	printJSON(res)
}

func runSummaries(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("summaries", flag.ExitOnError)
	year := fs.Int("year", time.Now().Year(), "Year to list")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	repo := openRepository(ctx, cfg, log)
	defer repo.Close()

	rows, err := repo.ListQuarterSummariesByYear(ctx, *year)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list quarter summaries")
	}

	fmt.Printf("\n=== Quarter summaries %d (%d) ===\n", *year, len(rows))
	for _, r := range rows {
		fmt.Printf("\n%s (group %d)\n", r.Quarter, r.TaxGroup)
		fmt.Printf("   Income:      %s\n", r.TotalIncome.FloatString(2))
		fmt.Printf("   Single tax:  %s\n", r.SingleTax.FloatString(2))
		fmt.Printf("   Military:    %s\n", r.MilitaryTax.FloatString(2))
		fmt.Printf("   ESV:         %s\n", r.SocialContribution.FloatString(2))
		fmt.Printf("   Closed:      %t\n", r.IsQuarterClosed)
		fmt.Printf("   Report by:   %s\n", r.ReportDeadline)
	}
	fmt.Println()
}

func runTransactions(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	from := fs.String("from", "", "Start date, YYYY-MM-DD (required)")
	to := fs.String("to", "", "End date, YYYY-MM-DD (defaults to today)")
	fs.Parse(os.Args[2:])

	start, err := time.Parse(time.DateOnly, *from)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: --from must be YYYY-MM-DD")
	}
	end := time.Now()
	if *to != "" {
		if end, err = time.Parse(time.DateOnly, *to); err != nil {
			log.Fatal().Err(err).Msg("Error: --to must be YYYY-MM-DD")
		}
	}

	ctx := logger.WithContext(context.Background(), log)
	repo := openRepository(ctx, cfg, log)
	defer repo.Close()

	rows, err := repo.QueryTransactionsByDateRange(ctx, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query transactions")
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(rows))
	for i, r := range rows {
		fmt.Printf("\n%d. %s\n", i+1, r.Description)
		fmt.Printf("   Date:     %s\n", r.TransactionDate)
		fmt.Printf("   Type:     %s\n", r.Type)
		fmt.Printf("   Amount:   %s %s\n", r.AmountOperation.FloatString(2), r.OperationCurrency)
		if r.Bank.Valid {
			fmt.Printf("   Bank:     %s\n", r.Bank.StringVal)
		}
	}
	fmt.Println()
}
