package domain

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// TaxGroup is a single-tax regime group of a sole proprietor (FOP).
type TaxGroup int

const (
	Group1 TaxGroup = 1
	Group2 TaxGroup = 2
	Group3 TaxGroup = 3
)

// Stock regime parameters. Callers get them only through
// DefaultTaxGroupConfig, which hands out fresh values.
const (
	incomeCeilingGroup1 = "1336000"
	incomeCeilingGroup2 = "6672000"
	incomeCeilingGroup3 = "9336000"

	fixedMonthlyTaxGroup1 = "302.8"
	fixedMonthlyTaxGroup2 = "1600"

	rateGroup3NonVAT = "0.05"
	rateGroup3VAT    = "0.03"
	militaryTaxRate  = "0.01"

	esvPerQuarter = "5280"
	esvRate       = "0.22"

	reportingDeadlineDays = 40
	paymentDeadlineDays   = 50
	esvDeadlineDay        = 20
)

// DefaultAccountCurrency is the FOP account currency when none is configured.
const DefaultAccountCurrency = "USD"

// TaxGroupConfig is the immutable parameter set of one regime group.
type TaxGroupConfig struct {
	Group         TaxGroup        `json:"group"`
	IncomeCeiling decimal.Decimal `json:"income_ceiling"`

	// FixedMonthlyTax applies to groups 1 and 2; the quarterly tax is three times this.
	FixedMonthlyTax decimal.Decimal `json:"fixed_monthly_tax"`

	// RateNonVAT and RateVAT apply to group 3.
	RateNonVAT decimal.Decimal `json:"rate_non_vat"`
	RateVAT    decimal.Decimal `json:"rate_vat"`
	VATPayer   bool            `json:"vat_payer"`

	MilitaryTaxRate decimal.Decimal `json:"military_tax_rate"`
	ESVPerQuarter   decimal.Decimal `json:"esv_per_quarter"`
	ESVRate         decimal.Decimal `json:"esv_rate"`

	ReportingDeadlineDays int `json:"reporting_deadline_days"`
	PaymentDeadlineDays   int `json:"payment_deadline_days"`
	ESVDeadlineDay        int `json:"esv_deadline_day"`

	// AccountCurrency is the currency of the FOP account whose live feed is taxed.
	AccountCurrency string `json:"account_currency"`

	// SubtractReturns deducts DEBIT transactions flagged as returns from
	// quarterly income. A negative result is reported, never clamped.
	SubtractReturns bool `json:"subtract_returns"`

	DisabledQuarters []Quarter `json:"disabled_quarters,omitempty"`
}

// DefaultTaxGroupConfig returns the stock parameters of group.
func DefaultTaxGroupConfig(group TaxGroup) (TaxGroupConfig, error) {
	cfg := TaxGroupConfig{
		Group:                 group,
		RateNonVAT:            decimal.RequireFromString(rateGroup3NonVAT),
		RateVAT:               decimal.RequireFromString(rateGroup3VAT),
		MilitaryTaxRate:       decimal.Zero,
		ESVPerQuarter:         decimal.RequireFromString(esvPerQuarter),
		ESVRate:               decimal.RequireFromString(esvRate),
		ReportingDeadlineDays: reportingDeadlineDays,
		PaymentDeadlineDays:   paymentDeadlineDays,
		ESVDeadlineDay:        esvDeadlineDay,
		AccountCurrency:       DefaultAccountCurrency,
	}

	switch group {
	case Group1:
		cfg.IncomeCeiling = decimal.RequireFromString(incomeCeilingGroup1)
		cfg.FixedMonthlyTax = decimal.RequireFromString(fixedMonthlyTaxGroup1)
		cfg.SubtractReturns = true
	case Group2:
		cfg.IncomeCeiling = decimal.RequireFromString(incomeCeilingGroup2)
		cfg.FixedMonthlyTax = decimal.RequireFromString(fixedMonthlyTaxGroup2)
	case Group3:
		cfg.IncomeCeiling = decimal.RequireFromString(incomeCeilingGroup3)
		cfg.MilitaryTaxRate = decimal.RequireFromString(militaryTaxRate)
	default:
		return TaxGroupConfig{}, fmt.Errorf("DefaultTaxGroupConfig: unsupported tax group %d", group)
	}

	return cfg, nil
}

// FixedTax reports whether the group pays a flat amount instead of a share of income.
func (c TaxGroupConfig) FixedTax() bool {
	return c.Group == Group1 || c.Group == Group2
}

// SingleTaxRate is the group 3 rate matching the VAT status.
func (c TaxGroupConfig) SingleTaxRate() decimal.Decimal {
	if c.VATPayer {
		return c.RateVAT
	}
	return c.RateNonVAT
}

// IsDisabled reports whether q is excluded from computation.
func (c TaxGroupConfig) IsDisabled(q Quarter) bool {
	return slices.Contains(c.DisabledQuarters, q)
}

// QuarterSummary is the tax result of one quarter. Money fields hold
// formatted strings ("1,234.56").
type QuarterSummary struct {
	TotalIncome        string `json:"total_income"`
	SingleTax          string `json:"single_tax"`
	MilitaryTax        string `json:"military_tax"`
	SocialContribution string `json:"social_contribution"`

	IsQuarterClosed            bool   `json:"is_quarter_closed"`
	ReportDeadline             string `json:"report_deadline_date"`
	TaxPaymentDeadline         string `json:"tax_payment_deadline_date"`
	SocialContributionDeadline string `json:"esv_payment_deadline_date"`

	TransactionCount int `json:"transaction_count"`
	// UnpricedTransactions counts live-feed income priced at rate 0 because
	// the rate table had no entry for its date.
	UnpricedTransactions int    `json:"unpriced_transactions"`
	AverageRate          string `json:"average_rate,omitempty"`
	ReturnsSubtracted    string `json:"returns_subtracted,omitempty"`
}

// IntermediateSummary is the running total from Q1 through a given quarter.
type IntermediateSummary struct {
	TotalIncome             string `json:"total_income"`
	TotalSingleTax          string `json:"total_single_tax"`
	TotalMilitaryTax        string `json:"total_military_tax"`
	TotalSocialContribution string `json:"total_social_contribution"`
	TaxLoadPercent          string `json:"tax_load_percent"`
	IncomeCeilingExceeded   bool   `json:"income_ceiling_exceeded"`
}
