package statement

import (
	"regexp"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

const ukrsibColumns = 6

var (
	ukrsibHeaderAnchors = []string{"дата опер."}
	looseIBAN           = regexp.MustCompile(`\b[A-Z]{2}\d{2}[0-9A-Z]{10,}\b`)
)

// UkrsibRow is one row of an UKRSIBBANK statement. Debit and credit are
// separate unsigned columns.
type UkrsibRow struct {
	DateTime            *domain.Timestamp
	DocumentNumber      *string
	Debit               decimal.NullDecimal
	Credit              decimal.NullDecimal
	CounterpartyDetails *string
	CounterpartyIBAN    *string
	PaymentDetails      string
	// AccountCurrency is declared once on the first page.
	AccountCurrency string
}

// ExtractUkrsib reads the rows following the header. Rows without payment
// details are page footers and are dropped.
func ExtractUkrsib(doc Document) ([]UkrsibRow, []CellError, error) {
	if len(doc.Rows) == 0 {
		return nil, nil, ErrNoRows
	}

	header := findHeader(doc.Rows, ukrsibHeaderAnchors)
	if header < 0 {
		return nil, nil, ErrHeaderNotFound
	}

	currency := hryvnia
	if m := accountCurrencyLine.FindStringSubmatch(doc.FirstPage()); m != nil {
		currency = strings.ToUpper(m[1])
	}

	var (
		out      []UkrsibRow
		warnings []CellError
	)
	for i := header + 1; i < len(doc.Rows); i++ {
		cols := doc.Rows[i]
		if len(cols) != ukrsibColumns || strings.TrimSpace(cols[5]) == "" || isHeader(cols, ukrsibHeaderAnchors) {
			continue
		}

		cr := cellReader{row: i}
		row := UkrsibRow{
			DateTime:            cr.dateTime("operation_datetime", cols[0]),
			Debit:               cr.amount("debit", cols[2]),
			Credit:              cr.amount("credit", cols[3]),
			CounterpartyDetails: optionalText(cols[4]),
			PaymentDetails:      flatten(cols[5]),
			AccountCurrency:     currency,
		}
		if docNo := strings.Join(strings.Fields(cols[1]), ""); docNo != "" {
			row.DocumentNumber = &docNo
		}
		if row.CounterpartyDetails != nil {
			if iban := looseIBAN.FindString(*row.CounterpartyDetails); iban != "" {
				row.CounterpartyIBAN = &iban
			}
		}

		out = append(out, row)
		warnings = append(warnings, cr.errs...)
	}
	if len(out) == 0 {
		return nil, nil, ErrLayoutMismatch
	}
	return out, warnings, nil
}

// Signed returns the credit amount when it is positive and the negated
// debit amount otherwise.
func (r UkrsibRow) Signed() decimal.Decimal {
	if r.Credit.Valid && r.Credit.Decimal.IsPositive() {
		return r.Credit.Decimal
	}
	if r.Debit.Valid {
		return r.Debit.Decimal.Abs().Neg()
	}
	return r.Credit.Decimal
}

// NormalizeUkrsib maps an UKRSIBBANK row to the canonical transaction. Only
// hryvnia accounts carry a reference amount.
func NormalizeUkrsib(r UkrsibRow) domain.Transaction {
	signed := r.Signed()
	amount := signed.Abs()

	var equivalent decimal.NullDecimal
	if r.AccountCurrency == hryvnia {
		equivalent = decimal.NewNullDecimal(amount)
	}

	return domain.Transaction{
		Date:                      timestampOrZero(r.DateTime),
		Description:               r.PaymentDetails,
		Type:                      domain.TypeOf(signed),
		AmountInOperationCurrency: amount,
		OperationCurrency:         r.AccountCurrency,
		AmountInReferenceCurrency: equivalent,
		ReferenceCurrency:         hryvnia,
		CounterpartyIBAN:          r.CounterpartyIBAN,
		Source:                    domain.SourceStatement,
	}
}
