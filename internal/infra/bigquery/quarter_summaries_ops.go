package bigquery

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"slices"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/money"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
	"google.golang.org/api/iterator"
)

const quarterSummariesTable = "quarter_summaries"

// NewQuarterSummaryRows flattens every computed quarter of report into rows,
// ordered by year then quarter.
func NewQuarterSummaryRows(report *tax.Report) ([]*QuarterSummaryRow, error) {
	var rows []*QuarterSummaryRow
	for _, year := range slices.Sorted(maps.Keys(report.Years)) {
		yr := report.Years[year]
		for _, q := range domain.Quarters {
			s, ok := yr.Quarters[q]
			if !ok {
				continue
			}
			row, err := newQuarterSummaryRow(report, year, q, s)
			if err != nil {
				return nil, fmt.Errorf("NewQuarterSummaryRows: %d-%s: %w", year, q, err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func newQuarterSummaryRow(report *tax.Report, year int, q domain.Quarter, s domain.QuarterSummary) (*QuarterSummaryRow, error) {
	row := &QuarterSummaryRow{
		Year:                 int64(year),
		Quarter:              q.String(),
		TaxGroup:             int64(report.Group),
		VATPayer:             report.VATPayer,
		TotalIncome:          moneyRat(s.TotalIncome),
		SingleTax:            moneyRat(s.SingleTax),
		MilitaryTax:          moneyRat(s.MilitaryTax),
		SocialContribution:   moneyRat(s.SocialContribution),
		IsQuarterClosed:      s.IsQuarterClosed,
		TransactionCount:     int64(s.TransactionCount),
		UnpricedTransactions: int64(s.UnpricedTransactions),
		GeneratedTS:          report.GeneratedAt,
	}

	var err error
	if row.ReportDeadline, err = civil.ParseDate(s.ReportDeadline); err != nil {
		return nil, fmt.Errorf("report deadline: %w", err)
	}
	if row.TaxPaymentDeadline, err = civil.ParseDate(s.TaxPaymentDeadline); err != nil {
		return nil, fmt.Errorf("tax payment deadline: %w", err)
	}
	if row.SocialContributionDeadline, err = civil.ParseDate(s.SocialContributionDeadline); err != nil {
		return nil, fmt.Errorf("esv deadline: %w", err)
	}
	if s.AverageRate != "" {
		row.AverageRate = bigquery.NullFloat64{Float64: money.Parse(s.AverageRate).InexactFloat64(), Valid: true}
	}
	return row, nil
}

func moneyRat(s string) *big.Rat {
	return money.Parse(s).Rat()
}

// InsertQuarterSummariesWithClient appends the report rows. Every export is
// a new set of rows distinguished by generated_ts.
func InsertQuarterSummariesWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*QuarterSummaryRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(quarterSummariesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertQuarterSummaries: inserting rows: %w", err)
	}
	return nil
}

// ListQuarterSummariesByYearWithClient returns the most recent export of
// each quarter of year.
func ListQuarterSummariesByYearWithClient(ctx context.Context, client *bigquery.Client, datasetID string, year int) ([]*QuarterSummaryRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT * EXCEPT(rn)
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY quarter ORDER BY generated_ts DESC) AS rn
			FROM %s.%s
			WHERE year = @year
		)
		WHERE rn = 1
		ORDER BY quarter
	`, datasetID, quarterSummariesTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: year},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListQuarterSummariesByYear: running query: %w", err)
	}

	var rows []*QuarterSummaryRow
	for {
		var row QuarterSummaryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListQuarterSummariesByYear: reading row: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
