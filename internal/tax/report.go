package tax

import (
	"fmt"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/quarters"
)

// YearReport holds the computed quarters of one year and their running
// totals. Total is the last running total, nil when nothing was computed.
type YearReport struct {
	Quarters   map[domain.Quarter]domain.QuarterSummary      `json:"quarters"`
	Cumulative map[domain.Quarter]domain.IntermediateSummary `json:"cumulative"`
	Total      *domain.IntermediateSummary                   `json:"total,omitempty"`
}

// Report is the tax computation over every bucketed year.
type Report struct {
	Group             domain.TaxGroup    `json:"group"`
	VATPayer          bool               `json:"vat_payer"`
	ClosedPeriodsOnly bool               `json:"closed_periods_only"`
	GeneratedAt       time.Time          `json:"generated_at"`
	Years             map[int]YearReport `json:"years"`
}

// BuildReport runs QuarterSummaries and IntermediateSummaries for every year
// in years. The first invariant violation aborts the whole report.
func (e *Engine) BuildReport(years quarters.Years, rates Rates, closedPeriods bool, now time.Time) (*Report, error) {
	r := &Report{
		Group:             e.cfg.Group,
		VATPayer:          e.cfg.VATPayer,
		ClosedPeriodsOnly: closedPeriods,
		GeneratedAt:       now.UTC(),
		Years:             make(map[int]YearReport, len(years)),
	}

	for _, year := range years.SortedYears() {
		summaries, err := e.QuarterSummaries(year, years[year], rates, closedPeriods)
		if err != nil {
			return nil, fmt.Errorf("BuildReport: year %d: %w", year, err)
		}

		cumulative := e.IntermediateSummaries(summaries)
		yr := YearReport{Quarters: summaries, Cumulative: cumulative}
		for i := len(domain.Quarters) - 1; i >= 0; i-- {
			if c, ok := cumulative[domain.Quarters[i]]; ok {
				yr.Total = &c
				break
			}
		}
		r.Years[year] = yr
	}
	return r, nil
}
