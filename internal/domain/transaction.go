package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the key format of rate tables and deadline dates.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the canonical timestamp format of a transaction.
	DateTimeLayout = "2006-01-02 15:04:05"
)

// TransactionType is the direction of a transaction. The sign of the
// underlying amount lives here and never in the magnitude.
type TransactionType string

const (
	Credit TransactionType = "CREDIT"
	Debit  TransactionType = "DEBIT"
)

// TypeOf returns Credit for non-negative amounts and Debit otherwise.
func TypeOf(signed decimal.Decimal) TransactionType {
	if signed.IsNegative() {
		return Debit
	}
	return Credit
}

// Source tells where a transaction was read from.
type Source string

const (
	SourceLiveFeed  Source = "LIVE_FEED"
	SourceStatement Source = "STATEMENT"
)

// Transaction is the canonical shape every bank row and live-feed record is
// normalized into. All downstream code consumes only this type.
type Transaction struct {
	ID          string          `json:"id,omitempty"`
	Date        Timestamp       `json:"date"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`

	// AmountInOperationCurrency is always >= 0.
	AmountInOperationCurrency decimal.Decimal `json:"amount_in_operation_currency"`
	OperationCurrency         string          `json:"operation_currency"`

	// AmountInReferenceCurrency is the home-currency (UAH) equivalent printed
	// on statements, when the bank provides one.
	AmountInReferenceCurrency decimal.NullDecimal `json:"amount_in_reference_currency"`
	ReferenceCurrency         string              `json:"reference_currency,omitempty"`
	ExchangeRate              decimal.NullDecimal `json:"exchange_rate"`

	CounterpartyName *string             `json:"counterparty_name"`
	CounterpartyIBAN *string             `json:"counterparty_iban"`
	BalanceAfter     decimal.NullDecimal `json:"balance_after"`
	Commission       decimal.NullDecimal `json:"commission,omitempty"`

	Source Source `json:"source"`

	// Live feed only.
	AmountInAccountCurrency decimal.NullDecimal `json:"amount_in_account_currency,omitempty"`
	AccountCurrency         string              `json:"account_currency,omitempty"`
	CrossCurrency           bool                `json:"cross_currency,omitempty"`
	MCC                     int                 `json:"mcc,omitempty"`

	IsFinancialAid bool `json:"is_financial_aid"`
	IsReturn       bool `json:"is_return"`
	IsFXSale       bool `json:"is_fx_sale"`
}

// DateKey returns the YYYY-MM-DD key used to look up exchange rates.
func (t Transaction) DateKey() string {
	return t.Date.Format(DateLayout)
}

// Timestamp is a second-precision UTC time serialized as "YYYY-MM-DD HH:MM:SS".
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to seconds and converts it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// ParseTimestamp reads "YYYY-MM-DD HH:MM:SS", falling back to a bare date.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.ParseInLocation(DateTimeLayout, s, time.UTC)
	if err != nil {
		d, dErr := time.ParseInLocation(DateLayout, s, time.UTC)
		if dErr != nil {
			return Timestamp{}, err
		}
		t = d
	}
	return Timestamp{t}, nil
}

func (ts Timestamp) String() string {
	return ts.Format(DateTimeLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (ts Timestamp) MarshalText() ([]byte, error) {
	return []byte(ts.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ts *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// MarshalJSON overrides the RFC 3339 encoding promoted from time.Time.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// UnmarshalJSON accepts the canonical layout only.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	return ts.UnmarshalText([]byte(s))
}
