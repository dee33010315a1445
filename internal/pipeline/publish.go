package pipeline

import (
	"context"
	"errors"
	"fmt"

	infra "github.com/dvloznov/fop-tax-tracker/internal/infra/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/notionsync"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
)

// SummaryExporter appends quarter summaries to the warehouse.
type SummaryExporter interface {
	InsertQuarterSummaries(ctx context.Context, rows []*infra.QuarterSummaryRow) error
}

// ReportSinks are the destinations of a computed report. Every sink is
// optional.
type ReportSinks struct {
	Store            snapshot.Store
	Summaries        SummaryExporter
	Notion           notionsync.NotionService
	NotionDatabaseID string
}

// PublishResult tells what each sink received.
type PublishResult struct {
	Snapshot    bool                  `json:"snapshot"`
	SummaryRows int                   `json:"summary_rows"`
	Notion      *notionsync.SyncStats `json:"notion,omitempty"`
}

// PublishReport saves report as the latest snapshot, appends its quarter
// summaries to the warehouse and mirrors it to Notion. A failing sink does
// not stop the others; their errors are joined.
func PublishReport(ctx context.Context, report *tax.Report, sinks ReportSinks) (PublishResult, error) {
	log := logger.FromContext(ctx)
	var (
		res  PublishResult
		errs []error
	)

	if sinks.Store != nil {
		if err := sinks.Store.Save(ctx, snapshot.ReportKey, report); err != nil {
			errs = append(errs, fmt.Errorf("PublishReport: snapshot: %w", err))
		} else {
			res.Snapshot = true
		}
	}

	if sinks.Summaries != nil {
		rows, err := infra.NewQuarterSummaryRows(report)
		if err == nil && len(rows) > 0 {
			err = sinks.Summaries.InsertQuarterSummaries(ctx, rows)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("PublishReport: quarter summaries: %w", err))
		} else {
			res.SummaryRows = len(rows)
		}
	}

	if sinks.Notion != nil && sinks.NotionDatabaseID != "" {
		stats, err := notionsync.SyncReport(ctx, sinks.Notion, sinks.NotionDatabaseID, report, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("PublishReport: notion: %w", err))
		} else {
			res.Notion = &stats
		}
	}

	log.Info().
		Bool("snapshot", res.Snapshot).
		Int("summary_rows", res.SummaryRows).
		Bool("notion", res.Notion != nil).
		Msg("Published tax report")
	return res, errors.Join(errs...)
}
