// Package quarters groups transactions by calendar year and quarter and
// decides which quarters have elapsed.
package quarters

import (
	"slices"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
)

// Years maps a calendar year to its four quarter buckets.
type Years map[int]map[domain.Quarter]domain.QuarterBucket

// SortedYears returns the years present, ascending.
func (y Years) SortedYears() []int {
	out := make([]int, 0, len(y))
	for year := range y {
		out = append(out, year)
	}
	slices.Sort(out)
	return out
}

// Count returns the number of bucketed transactions across all years.
func (y Years) Count() int {
	n := 0
	for _, qs := range y {
		for _, b := range qs {
			n += len(b.Transactions)
		}
	}
	return n
}

// Bucketer groups transactions relative to a clock.
type Bucketer struct {
	now func() time.Time
}

// New returns a Bucketer reading the current time from now. A nil now uses
// time.Now.
func New(now func() time.Time) *Bucketer {
	if now == nil {
		now = time.Now
	}
	return &Bucketer{now: now}
}

// Bucket groups txs by (year, quarter) of their date. Every year that has at
// least one transaction gets all four quarters, empty ones included, so
// the closure flag is available for each of them. Undated transactions are
// skipped.
func (b *Bucketer) Bucket(txs []domain.Transaction) Years {
	now := b.now()
	out := make(Years)

	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		year := tx.Date.Year()
		qs, ok := out[year]
		if !ok {
			qs = make(map[domain.Quarter]domain.QuarterBucket, len(domain.Quarters))
			for _, q := range domain.Quarters {
				qs[q] = domain.QuarterBucket{IsClosed: IsClosed(year, q, now)}
			}
			out[year] = qs
		}

		q := domain.QuarterOf(tx.Date.Month())
		bucket := qs[q]
		bucket.Transactions = append(bucket.Transactions, tx)
		qs[q] = bucket
	}
	return out
}

// IsClosed reports whether quarter q of year has elapsed as of the
// Bucketer's clock.
func (b *Bucketer) IsClosed(year int, q domain.Quarter) bool {
	return IsClosed(year, q, b.now())
}

// IsClosed reports whether quarter q of year has elapsed as of now: every
// quarter of a past year is closed, a quarter of the current year is closed
// once the current month is past its last month, and future years are open.
func IsClosed(year int, q domain.Quarter, now time.Time) bool {
	switch {
	case year < now.Year():
		return true
	case year == now.Year():
		return now.Month() > q.LastMonth()
	default:
		return false
	}
}
