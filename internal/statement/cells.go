package statement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// placeholders are cell values banks print instead of leaving a cell empty.
var placeholders = map[string]bool{
	"":  true,
	"—": true,
	"–": true,
	"-": true,
}

var (
	dateTimeCell = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	uaIBANLine   = regexp.MustCompile(`^UA\d{2}[0-9A-Z]{10,}$`)

	// uaIBANToken finds a Ukrainian IBAN inside a line, digits optionally
	// grouped by single spaces.
	uaIBANToken = regexp.MustCompile(`\bUA\d{2}(?: ?\d){10,27}\b`)
	ibanLabel   = regexp.MustCompile(`[,;]?\s*\bIBAN\s*:?`)
)

// ParseAmount reads a numeric cell. Whitespace and thousands separators are
// dropped and a decimal comma is accepted. Placeholder cells are null
// without an error; anything else unparsable is null with an error.
func ParseAmount(cell string) (decimal.NullDecimal, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cell)

	if placeholders[s] {
		return decimal.NullDecimal{}, nil
	}

	s = strings.ReplaceAll(s, "−", "-")
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse amount %q: %w", cell, err)
	}
	return decimal.NewNullDecimal(v), nil
}

// ParseDateTime reads "DD.MM.YYYY[ HH:MM[:SS]]", tolerating line breaks
// between date and time. Missing time defaults to midnight.
func ParseDateTime(cell string) (*domain.Timestamp, error) {
	s := flatten(cell)
	if placeholders[s] {
		return nil, nil
	}

	m := dateTimeCell.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("parse date %q: expected DD.MM.YYYY[ HH:MM:SS]", cell)
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	var hour, minute, second int
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return nil, fmt.Errorf("parse date %q: out of range", cell)
	}

	ts := domain.NewTimestamp(t)
	return &ts, nil
}

// Partner is the parsed "partner details" block of a statement row.
type Partner struct {
	Name    *string
	IBAN    *string
	Details *string
}

// ParsePartner splits a counterparty block. The first Ukrainian IBAN is the
// IBAN, whether it sits on its own line or inside a line joined by the row
// extractor; the first remaining text that is not an IBAN label is the name.
// An absent block or a dash placeholder yields an empty Partner.
func ParsePartner(block string) Partner {
	if placeholders[strings.TrimSpace(block)] {
		return Partner{}
	}

	var p Partner
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		candidate := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "IBAN"), ":"))
		candidate = strings.ReplaceAll(candidate, " ", "")
		if p.IBAN == nil && uaIBANLine.MatchString(candidate) {
			p.IBAN = strPtr(candidate)
			continue
		}

		if p.IBAN == nil {
			if loc := uaIBANToken.FindStringIndex(line); loc != nil {
				p.IBAN = strPtr(strings.ReplaceAll(line[loc[0]:loc[1]], " ", ""))
				line = ibanLabel.ReplaceAllString(line[:loc[0]]+" "+line[loc[1]:], " ")
				line = strings.Trim(flatten(line), " ,;:-")
			}
		}

		if p.Name == nil && line != "" && !strings.HasPrefix(line, "IBAN") && !strings.HasPrefix(line, "UA") {
			p.Name = strPtr(line)
		}
	}

	if details := flatten(block); details != "" {
		p.Details = strPtr(details)
	}
	return p
}

// flatten collapses all whitespace runs, line breaks included, to one space.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func strPtr(s string) *string {
	return &s
}

// optionalText returns nil for placeholder cells and the flattened text otherwise.
func optionalText(cell string) *string {
	s := flatten(cell)
	if placeholders[s] {
		return nil
	}
	return &s
}

// cellReader parses the cells of one row and collects field-level failures.
type cellReader struct {
	row  int
	errs []CellError
}

func (c *cellReader) amount(column, raw string) decimal.NullDecimal {
	v, err := ParseAmount(raw)
	if err != nil {
		c.errs = append(c.errs, CellError{Row: c.row, Column: column, Value: raw, Err: err})
	}
	return v
}

func (c *cellReader) dateTime(column, raw string) *domain.Timestamp {
	v, err := ParseDateTime(raw)
	if err != nil {
		c.errs = append(c.errs, CellError{Row: c.row, Column: column, Value: raw, Err: err})
	}
	return v
}

// findHeader returns the index of the first row whose first cell contains
// one of anchors, case-insensitively, or -1.
func findHeader(rows [][]string, anchors []string) int {
	for i, row := range rows {
		if isHeader(row, anchors) {
			return i
		}
	}
	return -1
}

func isHeader(row []string, anchors []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(flatten(row[0]))
	for _, a := range anchors {
		if strings.Contains(first, a) {
			return true
		}
	}
	return false
}

func absOrNull(v decimal.NullDecimal) decimal.NullDecimal {
	if !v.Valid {
		return v
	}
	return decimal.NewNullDecimal(v.Decimal.Abs())
}
