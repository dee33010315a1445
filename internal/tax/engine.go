// Package tax computes quarterly and cumulative single-tax obligations of a
// sole proprietor from bucketed transactions.
package tax

import (
	"fmt"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/money"
	"github.com/shopspring/decimal"
)

// Rates maps a YYYY-MM-DD date to the home-currency rate of the account
// currency on that date.
type Rates map[string]decimal.Decimal

// NegativeIncomeError is returned when subtracting returns drives a
// quarter's income below zero. It usually means returns were misclassified.
type NegativeIncomeError struct {
	Year    int
	Quarter domain.Quarter
	Income  decimal.Decimal
}

func (e *NegativeIncomeError) Error() string {
	return fmt.Sprintf("tax: income of %d %s is negative (%s) after subtracting returns", e.Year, e.Quarter, money.Format(e.Income))
}

// Deadlines are the filing and payment dates of one quarter.
type Deadlines struct {
	QuarterEnd         time.Time
	Report             time.Time
	TaxPayment         time.Time
	SocialContribution time.Time
}

// Engine applies one tax group configuration.
type Engine struct {
	cfg domain.TaxGroupConfig
}

// NewEngine returns an engine for cfg.
func NewEngine(cfg domain.TaxGroupConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() domain.TaxGroupConfig {
	return e.cfg
}

// Deadlines returns the deadlines of quarter q of year. The social
// contribution is due on a fixed day of the month following the quarter,
// which for Q4 is January of the next year.
func (e *Engine) Deadlines(year int, q domain.Quarter) Deadlines {
	end := q.EndDate(year)
	return Deadlines{
		QuarterEnd:         end,
		Report:             end.AddDate(0, 0, e.cfg.ReportingDeadlineDays),
		TaxPayment:         end.AddDate(0, 0, e.cfg.PaymentDeadlineDays),
		SocialContribution: time.Date(year, q.LastMonth()+1, e.cfg.ESVDeadlineDay, 0, 0, 0, 0, time.UTC),
	}
}

// QuarterSummaries computes the summary of every quarter of year that passes
// the filters: with closedPeriods only elapsed quarters are computed, and
// disabled quarters are always skipped.
func (e *Engine) QuarterSummaries(year int, buckets map[domain.Quarter]domain.QuarterBucket, rates Rates, closedPeriods bool) (map[domain.Quarter]domain.QuarterSummary, error) {
	out := make(map[domain.Quarter]domain.QuarterSummary, len(buckets))

	for _, q := range domain.Quarters {
		b, ok := buckets[q]
		if !ok {
			continue
		}
		if closedPeriods && !b.IsClosed {
			continue
		}
		if e.cfg.IsDisabled(q) {
			continue
		}

		s, err := e.quarterSummary(year, q, b, rates)
		if err != nil {
			return nil, err
		}
		out[q] = s
	}
	return out, nil
}

func (e *Engine) quarterSummary(year int, q domain.Quarter, b domain.QuarterBucket, rates Rates) (domain.QuarterSummary, error) {
	agg := e.aggregate(b.Transactions, rates)

	income := agg.income
	if e.cfg.SubtractReturns {
		income = money.Subtract(income, agg.returns)
		if income.IsNegative() {
			return domain.QuarterSummary{}, &NegativeIncomeError{Year: year, Quarter: q, Income: income}
		}
	}

	single, military := e.taxes(income)
	d := e.Deadlines(year, q)

	s := domain.QuarterSummary{
		TotalIncome:                money.Format(income),
		SingleTax:                  money.Format(single),
		MilitaryTax:                money.Format(military),
		SocialContribution:         money.Format(e.cfg.ESVPerQuarter),
		IsQuarterClosed:            b.IsClosed,
		ReportDeadline:             d.Report.Format(domain.DateLayout),
		TaxPaymentDeadline:         d.TaxPayment.Format(domain.DateLayout),
		SocialContributionDeadline: d.SocialContribution.Format(domain.DateLayout),
		TransactionCount:           agg.count,
		UnpricedTransactions:       agg.unpriced,
	}
	if agg.rated > 0 {
		s.AverageRate = agg.rateSum.Div(decimal.NewFromInt(int64(agg.rated))).StringFixed(4)
	}
	if e.cfg.SubtractReturns && agg.returns.IsPositive() {
		s.ReturnsSubtracted = money.Format(agg.returns)
	}
	return s, nil
}

// taxes returns the single and military tax on income. Groups 1 and 2 pay a
// flat quarterly amount and no military tax.
func (e *Engine) taxes(income decimal.Decimal) (single, military decimal.Decimal) {
	if e.cfg.FixedTax() {
		return money.Round(e.cfg.FixedMonthlyTax.Mul(decimal.NewFromInt(3))), decimal.Zero
	}
	single = money.Round(income.Mul(e.cfg.SingleTaxRate()))
	military = money.Round(income.Mul(e.cfg.MilitaryTaxRate))
	return single, military
}

type aggregate struct {
	income   decimal.Decimal
	returns  decimal.Decimal
	count    int
	unpriced int
	rated    int
	rateSum  decimal.Decimal
}

// aggregate sums the home-currency income of credits and, when configured,
// the returns among debits. Other debits are ignored.
func (e *Engine) aggregate(txs []domain.Transaction, rates Rates) aggregate {
	agg := aggregate{income: decimal.Zero, returns: decimal.Zero, rateSum: decimal.Zero}

	for _, tx := range txs {
		switch {
		case tx.Type == domain.Credit:
			p := e.price(tx, rates)
			agg.count++
			agg.income = money.Add(agg.income, p.amount)
			if !p.priced {
				agg.unpriced++
			}
			if p.rate.Valid {
				agg.rated++
				agg.rateSum = agg.rateSum.Add(p.rate.Decimal)
			}
		case tx.Type == domain.Debit && tx.IsReturn && e.cfg.SubtractReturns:
			agg.returns = money.Add(agg.returns, e.price(tx, rates).amount)
		}
	}
	return agg
}

type priced struct {
	amount decimal.Decimal
	priced bool
	rate   decimal.NullDecimal
}

// price converts tx to the home currency. Live-feed amounts are multiplied
// by the rate of their date, and a missing rate prices them at zero.
// Statement amounts carry the bank's own equivalent, summed as is.
func (e *Engine) price(tx domain.Transaction, rates Rates) priced {
	if tx.Source == domain.SourceStatement {
		if !tx.AmountInReferenceCurrency.Valid {
			return priced{amount: decimal.Zero}
		}
		return priced{amount: tx.AmountInReferenceCurrency.Decimal, priced: true, rate: tx.ExchangeRate}
	}

	base := tx.AmountInOperationCurrency
	if tx.AmountInAccountCurrency.Valid {
		base = tx.AmountInAccountCurrency.Decimal
	}
	if e.cfg.AccountCurrency == "UAH" {
		return priced{amount: base, priced: true}
	}

	rate, ok := rates[tx.DateKey()]
	if !ok || !rate.IsPositive() {
		return priced{amount: decimal.Zero}
	}
	return priced{amount: base.Mul(rate), priced: true, rate: decimal.NewNullDecimal(rate)}
}

// IntermediateSummaries walks Q1 to Q4 accumulating the formatted quarter
// totals. Quarters absent from summaries are skipped and get no entry.
func (e *Engine) IntermediateSummaries(summaries map[domain.Quarter]domain.QuarterSummary) map[domain.Quarter]domain.IntermediateSummary {
	out := make(map[domain.Quarter]domain.IntermediateSummary, len(summaries))

	income, single, military, esv := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, q := range domain.Quarters {
		s, ok := summaries[q]
		if !ok {
			continue
		}

		income = money.Add(income, money.Parse(s.TotalIncome))
		single = money.Add(single, money.Parse(s.SingleTax))
		military = money.Add(military, money.Parse(s.MilitaryTax))
		esv = money.Add(esv, money.Parse(s.SocialContribution))

		out[q] = domain.IntermediateSummary{
			TotalIncome:             money.Format(income),
			TotalSingleTax:          money.Format(single),
			TotalMilitaryTax:        money.Format(military),
			TotalSocialContribution: money.Format(esv),
			TaxLoadPercent:          TaxLoad(income, money.Sum(single, military, esv)),
			IncomeCeilingExceeded:   income.GreaterThan(e.cfg.IncomeCeiling),
		}
	}
	return out
}

// TaxLoad renders taxes as a percentage of income with two decimals, or
// "0%" when there is no income.
func TaxLoad(income, taxes decimal.Decimal) string {
	if !income.IsPositive() {
		return "0%"
	}
	return taxes.Div(income).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
