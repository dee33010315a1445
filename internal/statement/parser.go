// Package statement turns tokenized bank statement tables into canonical
// transactions. Each supported bank is a tagged variant with its own
// extractor and normalizer; dispatch goes through the Bank discriminant
// returned by Detect.
package statement

import (
	"fmt"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
)

// Document is a statement as handed over by the text and row extraction
// collaborators.
type Document struct {
	// Pages holds the plain text of each page, in order.
	Pages []string
	// Rows holds the table rows, each an ordered list of cell strings.
	Rows [][]string
}

// FirstPage returns the text of the first page or "".
func (d Document) FirstPage() string {
	if len(d.Pages) == 0 {
		return ""
	}
	return d.Pages[0]
}

// Text returns all pages joined.
func (d Document) Text() string {
	return strings.Join(d.Pages, "\n\n")
}

// Result is the output of parsing one statement.
type Result struct {
	Bank         Bank                 `json:"bank"`
	Transactions []domain.Transaction `json:"transactions"`
	Warnings     []CellError          `json:"warnings,omitempty"`
}

// Parser converts one bank's statement into canonical transactions.
type Parser interface {
	Bank() Bank
	Parse(doc Document) (*Result, error)
}

// New returns the parser for bank. BankUnknown and unsupported values are
// refused rather than defaulted to another bank's layout.
func New(bank Bank) (Parser, error) {
	switch bank {
	case BankMonobank:
		return monobankParser{}, nil
	case BankPrivatbank:
		return privatbankParser{}, nil
	case BankUkrsib:
		return ukrsibParser{}, nil
	case BankUnknown:
		return nil, ErrUnknownBank
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBank, bank)
	}
}

// Parse detects the bank from the first page and runs its parser.
func Parse(doc Document) (*Result, error) {
	bank := Detect(doc.FirstPage()).Bank()

	p, err := New(bank)
	if err != nil {
		return nil, &DocumentError{Bank: bank, Err: err}
	}
	return p.Parse(doc)
}

type monobankParser struct{}

func (monobankParser) Bank() Bank { return BankMonobank }

func (monobankParser) Parse(doc Document) (*Result, error) {
	rows, warnings, err := ExtractMonobank(doc)
	if err != nil {
		return nil, &DocumentError{Bank: BankMonobank, Err: err}
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, NormalizeMonobank(r))
	}
	return &Result{Bank: BankMonobank, Transactions: txs, Warnings: warnings}, nil
}

type privatbankParser struct{}

func (privatbankParser) Bank() Bank { return BankPrivatbank }

func (privatbankParser) Parse(doc Document) (*Result, error) {
	rows, warnings, err := ExtractPrivatbank(doc)
	if err != nil {
		return nil, &DocumentError{Bank: BankPrivatbank, Err: err}
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, NormalizePrivatbank(r))
	}
	return &Result{Bank: BankPrivatbank, Transactions: txs, Warnings: warnings}, nil
}

type ukrsibParser struct{}

func (ukrsibParser) Bank() Bank { return BankUkrsib }

func (ukrsibParser) Parse(doc Document) (*Result, error) {
	rows, warnings, err := ExtractUkrsib(doc)
	if err != nil {
		return nil, &DocumentError{Bank: BankUkrsib, Err: err}
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, NormalizeUkrsib(r))
	}
	return &Result{Bank: BankUkrsib, Transactions: txs, Warnings: warnings}, nil
}
