package statement

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomeCandidates(t *testing.T) {
	at := domain.NewTimestamp(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	txs := []domain.Transaction{
		{ID: "usd-in", Date: at, Type: domain.Credit, OperationCurrency: "USD", AmountInOperationCurrency: decimal.NewFromInt(100)},
		{ID: "uah-in", Date: at, Type: domain.Credit, OperationCurrency: "UAH", AmountInOperationCurrency: decimal.NewFromInt(4000)},
		{ID: "usd-out", Date: at, Type: domain.Debit, OperationCurrency: "USD", AmountInOperationCurrency: decimal.NewFromInt(50)},
		{ID: "undated", Type: domain.Credit, OperationCurrency: "USD", AmountInOperationCurrency: decimal.NewFromInt(1)},
	}

	ids := func(in []domain.Transaction) []string {
		var out []string
		for _, tx := range in {
			out = append(out, tx.ID)
		}
		return out
	}

	assert.Equal(t, []string{"usd-in"}, ids(IncomeCandidates(BankMonobank, txs)))
	assert.Equal(t, []string{"usd-in", "uah-in"}, ids(IncomeCandidates(BankUkrsib, txs)))
	assert.Empty(t, IncomeCandidates(BankPrivatbank, nil))
}

func TestMask(t *testing.T) {
	const iban = "UA213220010000026201234567890"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "iban keeps edges",
			in:   "IBAN " + iban,
			want: "IBAN UA21" + strings.Repeat("*", len(iban)-8) + "7890",
		},
		{name: "tax id", in: "ІПН 1234567890.", want: "ІПН **********."},
		{name: "long digit run", in: "card 123456789", want: "card *********"},
		{name: "short numbers untouched", in: "Сума 1500.00 за 03.2025", want: "Сума 1500.00 за 03.2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mask(tt.in))
		})
	}
}

func TestIBANMasks(t *testing.T) {
	const (
		iban  = "UA213220010000026201234567890"
		other = "UA211111111111111111111117890"
		third = "UA903052990000026007015012345"
	)

	masks := IBANMasks("Отримувач " + iban + "\nПлатник " + third)
	require.Len(t, masks, 2)
	masked := Mask(iban)
	assert.Equal(t, iban, masks[masked])
	assert.Equal(t, third, masks[Mask(third)])

	masks = IBANMasks(iban + " " + other + " " + iban)
	assert.Empty(t, masks, "two IBANs sharing a mask cannot be restored")
}

func TestIsProbablyFinancial(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  bool
	}{
		{name: "ukrainian statement", pages: []string{"Виписка по рахунку за період 01.01.2025 - 31.03.2025"}, want: true},
		{name: "english statement", pages: []string{"Account statement\nStatement date 2025-03-31"}, want: true},
		{name: "keyword without date", pages: []string{"Bank statement"}, want: false},
		{name: "date without keyword", pages: []string{"Invoice 01.01.2025"}, want: false},
		{name: "blank second page", pages: []string{"Виписка 01.01.2025", " "}, want: false},
		{name: "no pages", pages: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProbablyFinancial(tt.pages))
		})
	}
}
