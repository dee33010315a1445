package statement

// TableLayout describes the transaction table of one bank as the row
// extractor must produce it.
type TableLayout struct {
	Bank Bank
	// Headers are the column titles in order; Headers[0] contains the anchor
	// the extractor locates the table by.
	Headers []string
	// Notes are bank-specific hints for reading the printed table.
	Notes []string
}

// Columns returns the number of cells in a table row.
func (l TableLayout) Columns() int {
	return len(l.Headers)
}

var layouts = map[Bank]TableLayout{
	BankMonobank: {
		Bank: BankMonobank,
		Headers: []string{
			"Дата та час операції",
			"Деталі операції",
			"Контрагент",
			"Сума в валюті операції",
			"Валюта",
			"Еквівалент НБУ",
			"Курс",
			"Комісія",
			"Залишок після операції",
		},
		Notes: []string{
			"The header repeats on every page; keep the rows of every page.",
			"Outgoing amounts are negative.",
			partnerLinesNote("Контрагент"),
		},
	},
	BankPrivatbank: {
		Bank: BankPrivatbank,
		Headers: []string{
			"Номер документа",
			"Дата та час операції",
			"Сума",
			"Сума екв. грн.",
			"Призначення платежу",
			"Реквізити контрагента",
		},
		Notes: []string{
			"Date and time may be split over two lines; join them with a space.",
			"Leave the fourth cell empty when the statement has no \"Сума екв. грн.\" column.",
			"Never take a currency from the payment details.",
			partnerLinesNote("Реквізити контрагента"),
		},
	},
	BankUkrsib: {
		Bank: BankUkrsib,
		Headers: []string{
			"Дата опер.",
			"№ док.",
			"Дебет",
			"Кредит",
			"Реквізити кореспондента",
			"Призначення платежу",
		},
		Notes: []string{
			"Debit and credit are separate unsigned columns; one of them is empty.",
			"Drop page footers and turnover totals.",
		},
	},
}

func partnerLinesNote(column string) string {
	return "In the \"" + column + "\" cell keep every printed line and separate the lines with \"\\n\": the name first, the IBAN on its own line."
}

// LayoutOf returns the table layout of bank.
func LayoutOf(bank Bank) (TableLayout, error) {
	l, ok := layouts[bank]
	if !ok {
		return TableLayout{}, ErrUnknownBank
	}
	l.Headers = append([]string(nil), l.Headers...)
	l.Notes = append([]string(nil), l.Notes...)
	return l, nil
}
