// Package livefeed normalizes bank API transactions and keeps a yearly
// snapshot of them per account.
package livefeed

import (
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/money"
	"github.com/shopspring/decimal"
)

// UnknownCurrency is the code used for currencies missing from the table.
const UnknownCurrency = "UNKNOWN"

// Record is one transaction as returned by the bank API. Amounts are signed
// integers in minor units.
type Record struct {
	ID              string `json:"id"`
	Time            int64  `json:"time"`
	Description     string `json:"description"`
	MCC             int    `json:"mcc"`
	Amount          int64  `json:"amount"`
	OperationAmount int64  `json:"operationAmount"`
	CurrencyCode    int    `json:"currencyCode"`
	Balance         int64  `json:"balance"`
}

// CurrencyTable maps ISO 4217 numeric codes to alphabetic ones.
type CurrencyTable map[int]string

// DefaultCurrencies returns the currencies the bank accounts are held in.
func DefaultCurrencies() CurrencyTable {
	return CurrencyTable{
		980: "UAH",
		975: "BGN",
		978: "EUR",
		840: "USD",
		985: "PLN",
		949: "TRY",
	}
}

// Lookup returns the alphabetic code of code, or UnknownCurrency.
func (t CurrencyTable) Lookup(code int) string {
	if c, ok := t[code]; ok {
		return c
	}
	return UnknownCurrency
}

// Normalizer maps records to canonical transactions.
type Normalizer struct {
	currencies CurrencyTable
}

// NewNormalizer returns a Normalizer using currencies. A nil table uses
// DefaultCurrencies.
func NewNormalizer(currencies CurrencyTable) *Normalizer {
	if currencies == nil {
		currencies = DefaultCurrencies()
	}
	return &Normalizer{currencies: currencies}
}

// Normalize maps r from an account held in accountCurrency. The account
// amount carries the sign; the operation amount may be in another currency,
// which marks the transaction as cross-currency.
func (n *Normalizer) Normalize(r Record, accountCurrency string) domain.Transaction {
	signed := money.FromMinorUnits(r.Amount)
	operationCurrency := n.currencies.Lookup(r.CurrencyCode)

	return domain.Transaction{
		ID:                        r.ID,
		Date:                      domain.NewTimestamp(time.Unix(r.Time, 0)),
		Description:               r.Description,
		Type:                      domain.TypeOf(signed),
		AmountInOperationCurrency: money.FromMinorUnits(r.OperationAmount).Abs(),
		OperationCurrency:         operationCurrency,
		AmountInAccountCurrency:   decimal.NewNullDecimal(signed.Abs()),
		AccountCurrency:           accountCurrency,
		CrossCurrency:             operationCurrency != accountCurrency,
		MCC:                       r.MCC,
		BalanceAfter:              decimal.NewNullDecimal(money.FromMinorUnits(r.Balance).Abs()),
		Source:                    domain.SourceLiveFeed,
	}
}

// NormalizeAll maps every record.
func (n *Normalizer) NormalizeAll(records []Record, accountCurrency string) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(records))
	for _, r := range records {
		out = append(out, n.Normalize(r, accountCurrency))
	}
	return out
}

// Normalize maps r with the default currency table.
func Normalize(r Record, accountCurrency string) domain.Transaction {
	return NewNormalizer(nil).Normalize(r, accountCurrency)
}
