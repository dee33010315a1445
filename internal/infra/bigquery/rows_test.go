package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionRows(t *testing.T) {
	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	name := "ТОВ Клієнт"
	txs := []domain.Transaction{
		{
			Date:                      domain.NewTimestamp(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)),
			Description:               "Invoice 12",
			Type:                      domain.Credit,
			AmountInOperationCurrency: decimal.RequireFromString("1500.25"),
			OperationCurrency:         "USD",
			AmountInReferenceCurrency: decimal.NewNullDecimal(decimal.RequireFromString("61500.00")),
			ReferenceCurrency:         "UAH",
			CounterpartyName:          &name,
			Source:                    domain.SourceStatement,
		},
		{
			ID:                        "mono-1",
			Date:                      domain.NewTimestamp(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)),
			Type:                      domain.Debit,
			AmountInOperationCurrency: decimal.NewFromInt(10),
			OperationCurrency:         "UAH",
			MCC:                       5411,
			Source:                    domain.SourceLiveFeed,
		},
	}

	rows := NewTransactionRows(txs, "run-1", "monobank", now)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.NotEmpty(t, first.TransactionID)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 14}, first.TransactionDate)
	assert.True(t, first.BookingDatetime.Valid)
	assert.Equal(t, "CREDIT", first.Type)
	assert.Equal(t, "1500.25", first.AmountOperation.FloatString(2))
	assert.Equal(t, "61500.00", first.AmountReference.FloatString(2))
	assert.Nil(t, first.ExchangeRate)
	assert.Nil(t, first.AmountAccount)
	assert.Equal(t, "ТОВ Клієнт", first.CounterpartyName.StringVal)
	assert.False(t, first.CounterpartyIBAN.Valid)
	assert.False(t, first.MCC.Valid)
	assert.Equal(t, "run-1", first.ImportRunID.StringVal)
	assert.Equal(t, now, first.CreatedTS)

	second := rows[1]
	assert.Equal(t, "mono-1", second.TransactionID)
	assert.Equal(t, int64(5411), second.MCC.Int64)

	again := NewTransactionRows(txs, "run-1", "monobank", now)
	assert.Equal(t, first.TransactionID, again[0].TransactionID, "ids are deterministic")

	other := NewTransactionRows(txs, "run-2", "monobank", now)
	assert.NotEqual(t, first.TransactionID, other[0].TransactionID)
}

func TestNewTransactionRows_EmptyRunIsNull(t *testing.T) {
	rows := NewTransactionRows([]domain.Transaction{{Type: domain.Credit}}, "", "", time.Now())
	require.Len(t, rows, 1)
	assert.False(t, rows[0].ImportRunID.Valid)
	assert.False(t, rows[0].Bank.Valid)
	assert.False(t, rows[0].BookingDatetime.Valid)
}

func TestNewQuarterSummaryRows(t *testing.T) {
	summary := domain.QuarterSummary{
		TotalIncome:                "1,000,000.00",
		SingleTax:                  "50,000.00",
		MilitaryTax:                "10,000.00",
		SocialContribution:         "5,280.00",
		IsQuarterClosed:            true,
		ReportDeadline:             "2025-05-10",
		TaxPaymentDeadline:         "2025-05-20",
		SocialContributionDeadline: "2025-04-20",
		TransactionCount:           4,
		AverageRate:                "41.25",
	}
	report := &tax.Report{
		Group:       domain.Group3,
		GeneratedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Years: map[int]tax.YearReport{
			2025: {Quarters: map[domain.Quarter]domain.QuarterSummary{domain.Q2: summary, domain.Q1: summary}},
			2024: {Quarters: map[domain.Quarter]domain.QuarterSummary{domain.Q4: summary}},
		},
	}

	rows, err := NewQuarterSummaryRows(report)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, int64(2024), rows[0].Year)
	assert.Equal(t, "Q4", rows[0].Quarter)
	assert.Equal(t, "Q1", rows[1].Quarter)
	assert.Equal(t, "Q2", rows[2].Quarter)

	r := rows[1]
	assert.Equal(t, int64(3), r.TaxGroup)
	assert.Equal(t, "1000000.00", r.TotalIncome.FloatString(2))
	assert.Equal(t, civil.Date{Year: 2025, Month: 5, Day: 10}, r.ReportDeadline)
	assert.Equal(t, 41.25, r.AverageRate.Float64)
	assert.Equal(t, int64(4), r.TransactionCount)
}

func TestNewQuarterSummaryRows_BadDeadline(t *testing.T) {
	report := &tax.Report{Years: map[int]tax.YearReport{
		2025: {Quarters: map[domain.Quarter]domain.QuarterSummary{domain.Q1: {ReportDeadline: "soon"}}},
	}}

	_, err := NewQuarterSummaryRows(report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2025-Q1")
}
