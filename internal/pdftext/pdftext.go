// Package pdftext pulls per-page text out of statement PDFs.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF yields no text at all, which usually
// means it is a scan.
var ErrNoText = errors.New("pdftext: no text in document")

// columnGap is the horizontal distance between two words, in points, above
// which they are treated as separate table cells.
const columnGap = 6.0

// Pages returns the text of every page of the PDF in data. Words on the same
// baseline are joined by a single space, or by two spaces when far enough
// apart to belong to different columns.
func Pages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("Pages: pdf reader panicked: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("Pages: opening pdf: %w", err)
	}
	if r.NumPage() == 0 {
		return nil, fmt.Errorf("Pages: %w", ErrNoText)
	}

	pages = byRow(r)
	if totalLen(pages) == 0 {
		if plain := plainText(r); plain != "" {
			pages = []string{plain}
		}
	}
	if totalLen(pages) == 0 {
		return nil, fmt.Errorf("Pages: %w", ErrNoText)
	}
	return pages, nil
}

func byRow(r *pdf.Reader) []string {
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			pages = append(pages, "")
			continue
		}

		var lines []string
		for _, row := range rows {
			if line := joinWords(row.Content); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func joinWords(words pdf.TextHorizontal) string {
	var b strings.Builder
	var prevEnd float64
	for i, w := range words {
		if strings.TrimSpace(w.S) == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			if w.X-prevEnd > columnGap {
				b.WriteString("  ")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(strings.TrimSpace(w.S))
		prevEnd = w.X + w.W
	}
	return strings.TrimSpace(b.String())
}

func plainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func totalLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}

// FirstPage returns the first page, or "" for an empty document.
func FirstPage(pages []string) string {
	if len(pages) == 0 {
		return ""
	}
	return pages[0]
}

// Document joins pages with a blank line between them.
func Document(pages []string) string {
	return strings.Join(pages, "\n\n")
}
