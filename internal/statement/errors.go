package statement

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownBank is returned when no bank marker matched the first page.
	ErrUnknownBank = errors.New("unknown bank: no parser available")
	// ErrHeaderNotFound is returned when the bank's header anchor is absent.
	ErrHeaderNotFound = errors.New("header row not found")
	// ErrLayoutMismatch is returned when no row after the header has the expected shape.
	ErrLayoutMismatch = errors.New("no rows match the expected layout")
	// ErrNoRows is returned for an empty row set.
	ErrNoRows = errors.New("no rows provided")
	// ErrNotStatement is returned by callers that reject a document failing IsProbablyFinancial.
	ErrNotStatement = errors.New("document does not look like a bank statement")
)

// DocumentError is a fatal, document-level failure of one bank's extractor.
type DocumentError struct {
	Bank Bank
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s statement: %v", e.Bank, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// CellError records a cell that could not be parsed. The row is still
// emitted with the affected field left null.
type CellError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Err    error  `json:"-"`
}

func (e CellError) Error() string {
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e CellError) Unwrap() error {
	return e.Err
}
