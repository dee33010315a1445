package statement

import (
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

const monobankColumns = 9

var monobankHeaderAnchors = []string{"дата та час", "date and time"}

// MonobankRow is one row of a Monobank (Universal Bank) FOP statement:
// date and time, purpose, partner details, signed amount, operation
// currency, NBU equivalent, rate, commission and balance.
type MonobankRow struct {
	DateTime      *domain.Timestamp
	Purpose       string
	Partner       Partner
	Amount        decimal.NullDecimal
	Currency      string
	NBUEquivalent decimal.NullDecimal
	// NBUCurrency is the currency the NBU equivalent is expressed in.
	NBUCurrency  string
	ExchangeRate decimal.NullDecimal
	Commission   decimal.NullDecimal
	Balance      decimal.NullDecimal
}

// ExtractMonobank reads the rows following the header. The header repeats on
// every page, so repeated header rows are skipped as well.
//
// The currency of the NBU equivalent is not printed per row. When the
// statement has a single operation currency it is that currency; when it has
// two (an FX account with its hryvnia leg) it is the other one of the pair.
func ExtractMonobank(doc Document) ([]MonobankRow, []CellError, error) {
	if len(doc.Rows) == 0 {
		return nil, nil, ErrNoRows
	}

	header := findHeader(doc.Rows, monobankHeaderAnchors)
	if header < 0 {
		return nil, nil, ErrHeaderNotFound
	}

	type indexed struct {
		i    int
		cols []string
	}
	var body []indexed
	for i := header + 1; i < len(doc.Rows); i++ {
		cols := doc.Rows[i]
		if len(cols) != monobankColumns || strings.TrimSpace(cols[0]) == "" || isHeader(cols, monobankHeaderAnchors) {
			continue
		}
		body = append(body, indexed{i: i, cols: cols})
	}
	if len(body) == 0 {
		return nil, nil, ErrLayoutMismatch
	}

	var currencies []string
	seen := make(map[string]bool)
	for _, r := range body {
		c := strings.ToUpper(strings.TrimSpace(r.cols[4]))
		if c != "" && !seen[c] {
			seen[c] = true
			currencies = append(currencies, c)
		}
	}

	var warnings []CellError
	out := make([]MonobankRow, 0, len(body))
	for _, r := range body {
		cr := cellReader{row: r.i}
		currency := strings.ToUpper(strings.TrimSpace(r.cols[4]))

		row := MonobankRow{
			DateTime:      cr.dateTime("date_and_time", r.cols[0]),
			Purpose:       flatten(r.cols[1]),
			Partner:       ParsePartner(r.cols[2]),
			Amount:        cr.amount("operation_amount", r.cols[3]),
			Currency:      currency,
			NBUEquivalent: cr.amount("nbu_equivalent", r.cols[5]),
			NBUCurrency:   nbuCurrency(currencies, currency),
			ExchangeRate:  cr.amount("exchange_rate", r.cols[6]),
			Commission:    cr.amount("commission", r.cols[7]),
			Balance:       cr.amount("balance", r.cols[8]),
		}
		out = append(out, row)
		warnings = append(warnings, cr.errs...)
	}
	return out, warnings, nil
}

func nbuCurrency(currencies []string, rowCurrency string) string {
	switch len(currencies) {
	case 1:
		return currencies[0]
	case 2:
		for _, c := range currencies {
			if c != rowCurrency {
				return c
			}
		}
	}
	return rowCurrency
}

// NormalizeMonobank maps a Monobank row to the canonical transaction. A null
// amount is treated as zero.
func NormalizeMonobank(r MonobankRow) domain.Transaction {
	signed := r.Amount.Decimal

	return domain.Transaction{
		Date:                      timestampOrZero(r.DateTime),
		Description:               r.Purpose,
		Type:                      domain.TypeOf(signed),
		AmountInOperationCurrency: signed.Abs(),
		OperationCurrency:         r.Currency,
		AmountInReferenceCurrency: absOrNull(r.NBUEquivalent),
		ReferenceCurrency:         r.NBUCurrency,
		ExchangeRate:              r.ExchangeRate,
		CounterpartyName:          r.Partner.Name,
		CounterpartyIBAN:          r.Partner.IBAN,
		BalanceAfter:              absOrNull(r.Balance),
		Commission:                r.Commission,
		Source:                    domain.SourceStatement,
	}
}

func timestampOrZero(ts *domain.Timestamp) domain.Timestamp {
	if ts == nil {
		return domain.Timestamp{}
	}
	return *ts
}
