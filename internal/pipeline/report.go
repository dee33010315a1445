package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/classifier"
	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/livefeed"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/nbu"
	"github.com/dvloznov/fop-tax-tracker/internal/quarters"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
)

// ReportConfig selects the regime and period filter of a report.
type ReportConfig struct {
	Group             domain.TaxGroupConfig
	ClosedPeriodsOnly bool
	// Classifier flags the transactions before bucketing. Nil uses the
	// default keyword lists.
	Classifier *classifier.Classifier
}

// ComputeReport classifies txs, buckets them by quarter as of now and runs
// the tax engine over every year found.
func ComputeReport(ctx context.Context, txs []domain.Transaction, rates tax.Rates, cfg ReportConfig, now time.Time) (*tax.Report, error) {
	log := logger.FromContext(ctx)

	c := cfg.Classifier
	if c == nil {
		c = classifier.New(classifier.DefaultKeywords())
	}
	classified := c.ClassifyAll(txs)

	years := quarters.New(func() time.Time { return now }).Bucket(classified)
	report, err := tax.NewEngine(cfg.Group).BuildReport(years, rates, cfg.ClosedPeriodsOnly, now)
	if err != nil {
		return nil, fmt.Errorf("ComputeReport: %w", err)
	}

	log.Info().
		Int("group", int(cfg.Group.Group)).
		Int("transactions", len(txs)).
		Int("years", len(report.Years)).
		Bool("closed_periods_only", cfg.ClosedPeriodsOnly).
		Msg("Computed tax report")
	return report, nil
}

// LiveFeedReport computes the report of year from the live-feed snapshot of
// the configured account currency and its cached rate table.
func LiveFeedReport(ctx context.Context, store snapshot.Store, cfg ReportConfig, year int, now time.Time) (*tax.Report, error) {
	currency := cfg.Group.AccountCurrency

	txs, err := livefeed.LoadYear(ctx, store, currency, year)
	if err != nil {
		return nil, fmt.Errorf("LiveFeedReport: %w", err)
	}

	rates, err := nbu.NewRateCache(store, nil, logger.FromContext(ctx)).Load(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("LiveFeedReport: %w", err)
	}

	return ComputeReport(ctx, txs, rates, cfg, now)
}
