package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

type QuarterSummaryRow struct {
	Year    int64  `bigquery:"year"`    // REQUIRED
	Quarter string `bigquery:"quarter"` // REQUIRED: Q1..Q4

	TaxGroup int64 `bigquery:"tax_group"` // REQUIRED
	VATPayer bool  `bigquery:"vat_payer"`

	TotalIncome        *big.Rat `bigquery:"total_income"`        // REQUIRED NUMERIC
	SingleTax          *big.Rat `bigquery:"single_tax"`          // REQUIRED NUMERIC
	MilitaryTax        *big.Rat `bigquery:"military_tax"`        // REQUIRED NUMERIC
	SocialContribution *big.Rat `bigquery:"social_contribution"` // REQUIRED NUMERIC

	IsQuarterClosed            bool       `bigquery:"is_quarter_closed"`
	ReportDeadline             civil.Date `bigquery:"report_deadline"`
	TaxPaymentDeadline         civil.Date `bigquery:"tax_payment_deadline"`
	SocialContributionDeadline civil.Date `bigquery:"esv_payment_deadline"`

	TransactionCount     int64                `bigquery:"transaction_count"`
	UnpricedTransactions int64                `bigquery:"unpriced_transactions"`
	AverageRate          bigquery.NullFloat64 `bigquery:"average_rate"` // NULLABLE

	GeneratedTS time.Time `bigquery:"generated_ts"` // REQUIRED
}
