// Package analyst summarizes live-feed accounts: totals per account,
// expenses by merchant category, and recurring payments.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/livefeed"
	"github.com/dvloznov/fop-tax-tracker/internal/money"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Uncategorized is the category of MCC codes missing from the dictionary.
const Uncategorized = "Uncategorized"

var (
	descriptionNoise = regexp.MustCompile(`[^a-z0-9а-яіїєґё\s]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	groceryLike      = regexp.MustCompile(`market|shop|store|super|express|gas|fuel|beer|food|grocery|mart|mini|alcohol|liquor|hyper`)

	lower = cases.Lower(language.Ukrainian)
)

// AccountTransactions is one account with its snapshotted transactions.
type AccountTransactions struct {
	Account      livefeed.Account
	Transactions []domain.Transaction
}

// AccountSummary holds the formatted totals of one account.
type AccountSummary struct {
	AccountType       string `json:"account_type"`
	Currency          string `json:"currency"`
	IncomeTotal       string `json:"income_total"`
	ExpenseTotal      string `json:"expense_total"`
	NetBalance        string `json:"net_balance"`
	TransactionsCount int    `json:"transactions_count"`
}

// TopCategory is the category with the largest expense total.
type TopCategory struct {
	Name   string  `json:"name"`
	Amount string  `json:"amount"`
	Share  float64 `json:"share"`
}

// Interpretation breaks down the expenses of one account.
type Interpretation struct {
	AccountType          string             `json:"account_type"`
	Currency             string             `json:"currency"`
	TotalExpense         string             `json:"total_expense"`
	Categories           map[string]string  `json:"categories"`
	CategorySharePercent map[string]float64 `json:"category_share_percent"`
	RecurrentPayments    []string           `json:"recurrent_payments"`
	TopCategory          *TopCategory       `json:"top_category,omitempty"`
}

// MCCDictionary maps merchant category codes to category names.
type MCCDictionary map[int]string

// ParseMCCDictionary reads a JSON object keyed by the code as a string.
func ParseMCCDictionary(data []byte) (MCCDictionary, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ParseMCCDictionary: %w", err)
	}

	dict := make(MCCDictionary, len(raw))
	for k, v := range raw {
		code, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("ParseMCCDictionary: code %q: %w", k, err)
		}
		dict[code] = v
	}
	return dict, nil
}

// Category returns the name of code, or Uncategorized.
func (d MCCDictionary) Category(code int) string {
	if name, ok := d[code]; ok && name != "" {
		return name
	}
	return Uncategorized
}

// amountOf is the magnitude in the account currency, falling back to the
// operation amount for transactions without one.
func amountOf(tx domain.Transaction) decimal.Decimal {
	if tx.AmountInAccountCurrency.Valid {
		return tx.AmountInAccountCurrency.Decimal.Abs()
	}
	return tx.AmountInOperationCurrency.Abs()
}

// Summarize totals the income and expenses of every account with at least
// one transaction, keyed by account ID.
func Summarize(accounts []AccountTransactions) map[string]AccountSummary {
	out := make(map[string]AccountSummary)
	for _, a := range accounts {
		if len(a.Transactions) == 0 {
			continue
		}

		income, expense := decimal.Zero, decimal.Zero
		for _, tx := range a.Transactions {
			switch tx.Type {
			case domain.Credit:
				income = money.Add(income, amountOf(tx))
			case domain.Debit:
				expense = money.Add(expense, amountOf(tx))
			}
		}

		out[a.Account.ID] = AccountSummary{
			AccountType:       a.Account.Type,
			Currency:          a.Account.Currency,
			IncomeTotal:       money.Format(income),
			ExpenseTotal:      money.Format(expense),
			NetBalance:        money.Format(money.Subtract(income, expense)),
			TransactionsCount: len(a.Transactions),
		}
	}
	return out
}

// Interpret groups the expenses of account by MCC category. It returns nil
// when the account has no expenses.
func Interpret(account livefeed.Account, txs []domain.Transaction, mcc MCCDictionary) *Interpretation {
	var expenses []domain.Transaction
	for _, tx := range txs {
		if tx.Type == domain.Debit {
			expenses = append(expenses, tx)
		}
	}
	if len(expenses) == 0 {
		return nil
	}

	totals := make(map[string]decimal.Decimal)
	for _, tx := range expenses {
		cat := mcc.Category(tx.MCC)
		totals[cat] = money.Add(totals[cat], amountOf(tx))
	}

	total := decimal.Zero
	for _, v := range totals {
		total = money.Add(total, v)
	}

	res := &Interpretation{
		AccountType:          account.Type,
		Currency:             account.Currency,
		TotalExpense:         money.Format(total),
		Categories:           make(map[string]string, len(totals)),
		CategorySharePercent: make(map[string]float64, len(totals)),
		RecurrentPayments:    RecurrentPayments(expenses),
	}

	names := make([]string, 0, len(totals))
	for name, v := range totals {
		names = append(names, name)
		res.Categories[name] = money.Format(v)
		res.CategorySharePercent[name] = sharePercent(v, total)
	}
	sort.Slice(names, func(i, j int) bool {
		if c := totals[names[i]].Cmp(totals[names[j]]); c != 0 {
			return c > 0
		}
		return names[i] < names[j]
	})

	top := names[0]
	res.TopCategory = &TopCategory{
		Name:   top,
		Amount: res.Categories[top],
		Share:  res.CategorySharePercent[top],
	}
	return res
}

func sharePercent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Mul(decimal.NewFromInt(100)).Div(total).Round(1).InexactFloat64()
}

// RecurrentPayments returns the normalized descriptions seen in at least two
// distinct months, excluding grocery-like merchants, sorted.
func RecurrentPayments(txs []domain.Transaction) []string {
	months := make(map[string]map[string]bool)
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		desc := NormalizeDescription(tx.Description)
		if desc == "" {
			continue
		}
		if months[desc] == nil {
			months[desc] = make(map[string]bool)
		}
		months[desc][tx.Date.Format("2006-01")] = true
	}

	out := []string{}
	for desc, m := range months {
		if len(m) >= 2 && !groceryLike.MatchString(desc) {
			out = append(out, desc)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeDescription lower-cases s, drops everything except Latin and
// Ukrainian letters, digits and whitespace, and collapses whitespace.
func NormalizeDescription(s string) string {
	s = lower.String(strings.TrimSpace(s))
	s = descriptionNoise.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// Month is the transactions of one calendar month.
type Month struct {
	Key          string               `json:"month"`
	Transactions []domain.Transaction `json:"transactions"`
}

// SplitByMonth groups txs by YYYY-MM in ascending order. Undated
// transactions are dropped.
func SplitByMonth(txs []domain.Transaction) []Month {
	byKey := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		key := tx.Date.Format("2006-01")
		byKey[key] = append(byKey[key], tx)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Month, 0, len(keys))
	for _, k := range keys {
		out = append(out, Month{Key: k, Transactions: byKey[k]})
	}
	return out
}

// LoadAccounts reads the year snapshot of every account in info. Accounts
// that were never synced come back with no transactions.
func LoadAccounts(ctx context.Context, store snapshot.Store, info *livefeed.ClientInfo, year int) ([]AccountTransactions, error) {
	out := make([]AccountTransactions, 0, len(info.Accounts))
	for _, acc := range info.Accounts {
		var txs []domain.Transaction
		key := snapshot.TransactionsKey(acc.Type, acc.Currency, year)
		if _, err := store.Load(ctx, key, &txs); err != nil {
			return nil, fmt.Errorf("LoadAccounts: %s: %w", key, err)
		}
		out = append(out, AccountTransactions{Account: acc, Transactions: txs})
	}
	return out, nil
}
