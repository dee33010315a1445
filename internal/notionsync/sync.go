package notionsync

import (
	"context"
	"fmt"
	"slices"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
)

// SyncStats counts what a sync did. In dry-run mode the counts are what it
// would have done.
type SyncStats struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// SyncReport upserts one page per computed (year, quarter) of report, keyed
// by the page title. Pages of a reported year whose quarter is no longer
// computed are archived; pages of other years are never read. Per-page
// failures are logged and counted; only a failure to list the database
// aborts the sync.
func SyncReport(ctx context.Context, notionClient NotionService, notionDBID string, report *tax.Report, dryRun bool) (SyncStats, error) {
	log := logger.FromContext(ctx)
	var stats SyncStats

	years := make([]int, 0, len(report.Years))
	for year := range report.Years {
		years = append(years, year)
	}
	slices.Sort(years)

	log.Info().
		Ints("years", years).
		Bool("dry_run", dryRun).
		Msg("Starting report sync to Notion")

	existing, err := notionClient.PeriodPages(ctx, notionDBID, years)
	if err != nil {
		return stats, fmt.Errorf("SyncReport: %w", err)
	}
	log.Info().Int("notion_page_count", len(existing)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool)
	for _, year := range years {
		yr := report.Years[year]
		for _, q := range domain.Quarters {
			s, ok := yr.Quarters[q]
			if !ok {
				continue
			}
			period := PeriodTitle(year, q)
			wanted[period] = true

			var cumulative *domain.IntermediateSummary
			if c, ok := yr.Cumulative[q]; ok {
				cumulative = &c
			}

			props, err := SummaryToNotionProperties(year, q, s, cumulative)
			if err != nil {
				log.Warn().Err(err).Str("period", period).Msg("Failed to map summary")
				stats.Failed++
				continue
			}

			pageID, found := existing[period]
			if dryRun {
				if found {
					log.Info().Str("period", period).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
					stats.Updated++
				} else {
					log.Info().Str("period", period).Msg("[DRY RUN] Would create Notion page")
					stats.Created++
				}
				continue
			}

			id, err := notionClient.UpsertPeriod(ctx, notionDBID, pageID, props)
			if err != nil {
				log.Warn().Err(err).Str("period", period).Msg("Failed to write Notion page")
				stats.Failed++
				continue
			}
			if found {
				stats.Updated++
			} else {
				log.Debug().Str("period", period).Str("page_id", id).Msg("Created Notion page")
				stats.Created++
			}
		}
	}

	stale := make([]string, 0, len(existing))
	for period := range existing {
		if !wanted[period] {
			stale = append(stale, period)
		}
	}
	slices.Sort(stale)

	for _, period := range stale {
		pageID := existing[period]
		if dryRun {
			log.Info().Str("period", period).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := notionClient.ArchivePeriod(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("period", period).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Report sync completed")

	return stats, nil
}
