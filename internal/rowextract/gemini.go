package rowextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/statement"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// ContentGenerator is the part of the genai models service used here.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiRowExtractor asks a Gemini model to tokenize each page into table
// rows. Page text is masked before it leaves the process.
type GeminiRowExtractor struct {
	models ContentGenerator
	model  string
}

// NewGeminiRowExtractor creates a GeminiRowExtractor on models. An empty
// model name selects DefaultModelName.
func NewGeminiRowExtractor(models ContentGenerator, model string) *GeminiRowExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiRowExtractor{models: models, model: model}
}

// NewGeminiClient creates a genai client the way the rest of the tooling
// does, reading credentials from the environment.
func NewGeminiClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: %w", err)
	}
	return client, nil
}

// ExtractRows sends the pages one at a time and concatenates the rows. The
// layout header is put back in front so the table extractor can anchor on it
// even though the model is told to leave header lines out. IBANs masked in
// the page text are restored in the returned cells.
func (e *GeminiRowExtractor) ExtractRows(ctx context.Context, bank statement.Bank, pages []string) ([][]string, error) {
	log := logger.FromContext(ctx)

	layout, err := statement.LayoutOf(bank)
	if err != nil {
		return nil, fmt.Errorf("ExtractRows: %w", err)
	}
	if bank == statement.BankPrivatbank {
		pages = statement.PrivatbankTableText(pages)
	}

	prompt := buildPrompt(layout)
	rows := [][]string{layout.Headers}

	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}

		pageRows, err := e.extractPage(ctx, prompt, statement.Mask(page))
		if err != nil {
			return nil, fmt.Errorf("ExtractRows: page %d: %w", i+1, err)
		}
		restoreIBANs(pageRows, statement.IBANMasks(page))
		log.Debug().Str("bank", string(bank)).Int("page", i+1).Int("rows", len(pageRows)).Msg("Extracted page rows")
		rows = append(rows, pageRows...)
	}
	return rows, nil
}

func (e *GeminiRowExtractor) extractPage(ctx context.Context, prompt, text string) ([][]string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{Text: text},
			},
		},
	}

	resp, err := e.models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var rows [][]string
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	return rows, nil
}

// restoreIBANs replaces masked IBANs in rows with the originals in masks.
func restoreIBANs(rows [][]string, masks map[string]string) {
	if len(masks) == 0 {
		return
	}
	pairs := make([]string, 0, 2*len(masks))
	for masked, iban := range masks {
		pairs = append(pairs, masked, iban)
	}
	r := strings.NewReplacer(pairs...)
	for _, row := range rows {
		for i, cell := range row {
			row[i] = r.Replace(cell)
		}
	}
}

func buildPrompt(l statement.TableLayout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are tokenizing ONE PAGE of a %s bank account statement in Ukrainian.\n\n", l.Bank)
	b.WriteString("TABLE COLUMNS (in order):\n")
	for _, h := range l.Headers {
		b.WriteString("- " + h + "\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Output one array per transaction row, with exactly ")
	fmt.Fprintf(&b, "%d strings, one per column.\n", l.Columns())
	b.WriteString("- Copy cell text exactly as printed: keep number formatting, signs and dates unchanged.\n")
	b.WriteString("- Join a cell that wraps over several lines with single spaces, unless a rule below says otherwise.\n")
	b.WriteString("- Use an empty string for an empty cell. Do NOT invent or guess values.\n")
	b.WriteString("- Skip header lines, page numbers, totals and any text outside the table.\n")
	for _, n := range l.Notes {
		b.WriteString("- " + n + "\n")
	}
	b.WriteString("\nReturn ONLY valid raw JSON: an array of arrays of strings.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost array if the model added prose around it.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
