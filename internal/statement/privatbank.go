package statement

import (
	"regexp"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	privatbankColumns = 6

	// PrivatbankTableMarker opens the transaction table on the first page.
	PrivatbankTableMarker = "вихідний залишок"

	// UnknownCurrency is used when a foreign-currency statement does not
	// declare its account currency.
	UnknownCurrency = "UNKNOWN"

	hryvnia = "UAH"
)

var (
	privatbankHeaderAnchors = []string{"номер документа", "№ документа", "document number"}
	privatbankEquivalentCol = "екв. грн"

	accountCurrencyLine = regexp.MustCompile(`(?i)Валюта:\s+([A-Z]{3})`)
)

// PrivatbankRow is one row of a PrivatBank statement: document number,
// date and time, signed amount, UAH equivalent, payment details and the
// counterparty block.
type PrivatbankRow struct {
	DocumentNumber *string
	DateTime       *domain.Timestamp
	Amount         decimal.NullDecimal
	// Currency is the account currency declared once for the whole document.
	Currency       string
	UAHEquivalent  decimal.NullDecimal
	PaymentDetails string
	Partner        Partner
}

// PrivatbankTableText returns the page texts with everything before the
// table marker removed from the first page. This is what the row extractor
// is fed.
func PrivatbankTableText(pages []string) []string {
	out := make([]string, 0, len(pages))
	for i, p := range pages {
		if i == 0 {
			if idx := strings.Index(strings.ToLower(p), PrivatbankTableMarker); idx >= 0 {
				p = p[idx:]
			}
		}
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// ExtractPrivatbank reads the rows following the header. PrivatBank does not
// print the currency per row: a statement printing a "Сума екв. грн." column
// belongs to a foreign-currency account whose currency is declared in the
// document header; without that column the account is in hryvnia.
func ExtractPrivatbank(doc Document) ([]PrivatbankRow, []CellError, error) {
	if len(doc.Rows) == 0 {
		return nil, nil, ErrNoRows
	}

	header := findHeader(doc.Rows, privatbankHeaderAnchors)
	if header < 0 {
		return nil, nil, ErrHeaderNotFound
	}

	currency := privatbankCurrency(doc.Rows[header], doc.Pages)

	var (
		out      []PrivatbankRow
		warnings []CellError
	)
	for i := header + 1; i < len(doc.Rows); i++ {
		cols := doc.Rows[i]
		if len(cols) != privatbankColumns || isHeader(cols, privatbankHeaderAnchors) {
			continue
		}
		if strings.TrimSpace(cols[1]) == "" && strings.TrimSpace(cols[2]) == "" {
			continue
		}

		cr := cellReader{row: i}
		out = append(out, PrivatbankRow{
			DocumentNumber: optionalText(cols[0]),
			DateTime:       cr.dateTime("operation_datetime", cols[1]),
			Amount:         cr.amount("amount", cols[2]),
			Currency:       currency,
			UAHEquivalent:  cr.amount("amount_uah_equivalent", cols[3]),
			PaymentDetails: flatten(cols[4]),
			Partner:        ParsePartner(cols[5]),
		})
		warnings = append(warnings, cr.errs...)
	}
	if len(out) == 0 {
		return nil, nil, ErrLayoutMismatch
	}
	return out, warnings, nil
}

// privatbankCurrency decides the account currency from the printed page
// text. The header row is only consulted for documents without page text:
// a row extractor may put a canonical header in front of its rows, and that
// header always names the equivalent column.
func privatbankCurrency(header []string, pages []string) string {
	var foreign bool
	if text := strings.ToLower(flatten(strings.Join(pages, " "))); text != "" {
		foreign = strings.Contains(text, privatbankEquivalentCol)
	} else {
		for _, c := range header {
			if strings.Contains(strings.ToLower(flatten(c)), privatbankEquivalentCol) {
				foreign = true
				break
			}
		}
	}
	if !foreign {
		return hryvnia
	}
	if m := accountCurrencyLine.FindStringSubmatch(strings.Join(pages, "\n")); m != nil {
		return strings.ToUpper(m[1])
	}
	return UnknownCurrency
}

// NormalizePrivatbank maps a PrivatBank row to the canonical transaction.
// For hryvnia accounts the amount itself is the reference amount; for
// foreign accounts only the printed equivalent is used.
func NormalizePrivatbank(r PrivatbankRow) domain.Transaction {
	signed := r.Amount.Decimal
	amount := signed.Abs()

	equivalent := absOrNull(r.UAHEquivalent)
	if !equivalent.Valid && r.Currency == hryvnia {
		equivalent = decimal.NewNullDecimal(amount)
	}

	return domain.Transaction{
		Date:                      timestampOrZero(r.DateTime),
		Description:               r.PaymentDetails,
		Type:                      domain.TypeOf(signed),
		AmountInOperationCurrency: amount,
		OperationCurrency:         r.Currency,
		AmountInReferenceCurrency: equivalent,
		ReferenceCurrency:         hryvnia,
		CounterpartyName:          r.Partner.Name,
		CounterpartyIBAN:          r.Partner.IBAN,
		Source:                    domain.SourceStatement,
	}
}
