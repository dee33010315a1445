// Package rowextract turns statement page text into table rows, the input
// of the bank table extractors.
package rowextract

import (
	"context"
	"regexp"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/statement"
)

// RowExtractor tokenizes the pages of a statement from bank into rows of
// cells. The first returned row is the table header.
type RowExtractor interface {
	ExtractRows(ctx context.Context, bank statement.Bank, pages []string) ([][]string, error)
}

var cellSeparator = regexp.MustCompile(`\s{2,}|\t+`)

// TextRowExtractor splits every line on runs of two or more spaces. It works
// for PDFs whose text layer keeps column gaps and needs no network access.
type TextRowExtractor struct{}

// NewTextRowExtractor returns a TextRowExtractor.
func NewTextRowExtractor() *TextRowExtractor {
	return &TextRowExtractor{}
}

// ExtractRows returns one row per non-empty line. Lines are not validated
// against the bank layout; the table extractor drops rows of the wrong width.
func (e *TextRowExtractor) ExtractRows(ctx context.Context, bank statement.Bank, pages []string) ([][]string, error) {
	if bank == statement.BankPrivatbank {
		pages = statement.PrivatbankTableText(pages)
	}

	var rows [][]string
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			rows = append(rows, cellSeparator.Split(line, -1))
		}
	}
	return rows, nil
}

// Extractor names recorded on import runs.
const (
	NameText   = "TEXT"
	NameGemini = "GEMINI"
)

// New returns a GeminiRowExtractor when model is set and a TextRowExtractor
// otherwise, together with its name.
func New(ctx context.Context, model string) (RowExtractor, string, error) {
	if model == "" {
		return NewTextRowExtractor(), NameText, nil
	}
	client, err := NewGeminiClient(ctx)
	if err != nil {
		return nil, "", err
	}
	return NewGeminiRowExtractor(client.Models, model), NameGemini, nil
}
