package rowextract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/statement"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: s}}}},
		},
	}
}

func TestTextRowExtractor(t *testing.T) {
	pages := []string{
		"Дата опер.  № док.  Дебет  Кредит  Реквізити кореспондента  Призначення платежу\n" +
			"\n" +
			"02.01.2025  17  \t 1 000,00  ТОВ Клієнт  Оплата за послуги",
	}

	rows, err := NewTextRowExtractor().ExtractRows(context.Background(), statement.BankUkrsib, pages)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 6)
	assert.Equal(t, []string{"02.01.2025", "17", "1 000,00", "ТОВ Клієнт", "Оплата за послуги"}, rows[1])
}

func TestTextRowExtractor_PrivatbankSkipsPreamble(t *testing.T) {
	pages := []string{"Клієнт  ФОП Іваненко\nВихідний залишок  100,00\nНомер документа  Дата"}

	rows, err := NewTextRowExtractor().ExtractRows(context.Background(), statement.BankPrivatbank, pages)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Вихідний залишок", rows[0][0])
}

func TestGeminiRowExtractor_ExtractRows(t *testing.T) {
	var prompts, inputs []string
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			assert.Equal(t, DefaultModelName, model)
			prompts = append(prompts, contents[0].Parts[0].Text)
			inputs = append(inputs, contents[0].Parts[1].Text)
			return textResponse("```json\n[[\"02.01.2025\", \"17\", \"\", \"1 000,00\", \"ТОВ Клієнт\", \"Оплата\"]]\n```"), nil
		},
	}

	pages := []string{"рахунок UA213220010000026201234567890", "   ", "друга сторінка"}
	rows, err := NewGeminiRowExtractor(gen, "").ExtractRows(context.Background(), statement.BankUkrsib, pages)
	require.NoError(t, err)

	require.Len(t, rows, 3, "header plus one row per non-blank page")
	assert.Equal(t, "Дата опер.", rows[0][0])
	assert.Equal(t, "1 000,00", rows[1][3])

	require.Len(t, inputs, 2)
	assert.NotContains(t, inputs[0], "26201234567890", "account numbers are masked before sending")
	assert.Contains(t, prompts[0], "exactly 6 strings")
	assert.Contains(t, prompts[0], "Призначення платежу")
}

func TestGeminiRowExtractor_PrivatbankThroughEngine(t *testing.T) {
	const iban = "UA213220010000026201234567890"
	masked := statement.Mask(iban)

	tests := []struct {
		name         string
		page         string
		row          []string
		wantCurrency string
		wantIncome   string
		wantUnpriced int
	}{
		{
			name: "hryvnia account without equivalent column",
			page: "АТ КБ \"ПриватБанк\"\nВиписка з рахунку за 10.02.2025\nВихідний залишок 15 000,00\n" +
				"№ документа  Дата операції  Сума  Призначення платежу  Контрагент\n" +
				"@2PL1  10.02.2025 09:30  15 000,00  Оплата послуг  ТОВ Клієнт " + iban,
			row:          []string{"@2PL1", "10.02.2025 09:30", "15 000,00", "", "Оплата послуг", "ТОВ Клієнт\n" + masked},
			wantCurrency: "UAH",
			wantIncome:   "15,000.00",
		},
		{
			name: "foreign account with printed equivalent",
			page: "АТ КБ \"ПриватБанк\"\nВалюта: USD\nВихідний залишок 1 000.00\n" +
				"Номер документа  Дата та час операції  Сума  Сума екв. грн.  Призначення платежу\n" +
				"@2PL2  11.02.2025 10:00  1 000.00  41 500.00  Invoice 7  ТОВ Клієнт " + iban,
			row:          []string{"@2PL2", "11.02.2025 10:00", "1 000.00", "41 500.00", "Invoice 7", "ТОВ Клієнт " + masked},
			wantCurrency: "USD",
			wantIncome:   "41,500.00",
		},
		{
			name: "foreign account without equivalent value",
			page: "АТ КБ \"ПриватБанк\"\nВалюта: EUR\nВихідний залишок 10.00\n" +
				"Номер документа  Дата  Сума  Сума екв. грн.\n@2PL3  12.02.2025  10.00    Interest  —",
			row:          []string{"@2PL3", "12.02.2025", "10.00", "", "Interest", "ТОВ Клієнт " + iban},
			wantCurrency: "EUR",
			wantIncome:   "0.00",
			wantUnpriced: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := json.Marshal([][]string{tt.row})
			require.NoError(t, err)

			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					assert.NotContains(t, contents[0].Parts[1].Text, iban)
					return textResponse(string(reply)), nil
				},
			}

			pages := []string{tt.page}
			rows, err := NewGeminiRowExtractor(gen, "").ExtractRows(context.Background(), statement.BankPrivatbank, pages)
			require.NoError(t, err)

			res, err := statement.Parse(statement.Document{Pages: pages, Rows: rows})
			require.NoError(t, err)
			require.Len(t, res.Transactions, 1)

			tx := res.Transactions[0]
			assert.Equal(t, tt.wantCurrency, tx.OperationCurrency)
			require.NotNil(t, tx.CounterpartyName)
			assert.Equal(t, "ТОВ Клієнт", *tx.CounterpartyName)
			require.NotNil(t, tx.CounterpartyIBAN)
			assert.Equal(t, iban, *tx.CounterpartyIBAN)

			cfg, err := domain.DefaultTaxGroupConfig(domain.Group3)
			require.NoError(t, err)
			summaries, err := tax.NewEngine(cfg).QuarterSummaries(2025, map[domain.Quarter]domain.QuarterBucket{
				domain.Q1: {Transactions: res.Transactions, IsClosed: true},
			}, nil, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIncome, summaries[domain.Q1].TotalIncome)
			assert.Equal(t, tt.wantUnpriced, summaries[domain.Q1].UnpricedTransactions)
		})
	}
}

func TestBuildPrompt_PartnerLines(t *testing.T) {
	for _, bank := range []statement.Bank{statement.BankMonobank, statement.BankPrivatbank} {
		layout, err := statement.LayoutOf(bank)
		require.NoError(t, err)
		assert.Contains(t, buildPrompt(layout), "the IBAN on its own line", string(bank))
	}
}

func TestGeminiRowExtractor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		bank    statement.Bank
		resp    *genai.GenerateContentResponse
		err     error
		wantErr string
	}{
		{name: "unknown bank", bank: statement.BankUnknown, wantErr: "unknown bank"},
		{name: "model error", bank: statement.BankMonobank, err: errors.New("quota"), wantErr: "quota"},
		{name: "empty response", bank: statement.BankMonobank, resp: textResponse(""), wantErr: "empty response"},
		{name: "not json", bank: statement.BankMonobank, resp: textResponse("sorry, no table here"), wantErr: "unmarshal JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			_, err := NewGeminiRowExtractor(gen, "gemini-test").ExtractRows(context.Background(), tt.bank, []string{"page"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: `[["a"]]`, want: `[["a"]]`},
		{name: "fenced", raw: "```json\n[[\"a\"]]\n```", want: `[["a"]]`},
		{name: "prose around", raw: "Here you go: [[\"a\"]] hope it helps", want: `[["a"]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, strings.TrimSpace(cleanModelJSON(tt.raw)))
		})
	}
}

func TestNew_WithoutModelUsesText(t *testing.T) {
	ex, name, err := New(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, NameText, name)
	assert.IsType(t, &TextRowExtractor{}, ex)
}
