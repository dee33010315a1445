package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

type TransactionRow struct {
	TransactionID string              `bigquery:"transaction_id"` // REQUIRED
	ImportRunID   bigquery.NullString `bigquery:"import_run_id"`  // NULLABLE, live feed has none

	Source string              `bigquery:"source"` // REQUIRED: STATEMENT or LIVE_FEED
	Bank   bigquery.NullString `bigquery:"bank"`   // NULLABLE

	TransactionDate civil.Date            `bigquery:"transaction_date"` // REQUIRED
	BookingDatetime bigquery.NullDateTime `bigquery:"booking_datetime"` // NULLABLE

	Type        string `bigquery:"type"`        // REQUIRED: CREDIT or DEBIT
	Description string `bigquery:"description"` // REQUIRED

	AmountOperation   *big.Rat `bigquery:"amount_operation_currency"` // REQUIRED NUMERIC, >= 0
	OperationCurrency string   `bigquery:"operation_currency"`        // REQUIRED

	AmountReference   *big.Rat            `bigquery:"amount_reference_currency"` // NULLABLE NUMERIC
	ReferenceCurrency bigquery.NullString `bigquery:"reference_currency"`        // NULLABLE
	ExchangeRate      *big.Rat            `bigquery:"exchange_rate"`             // NULLABLE NUMERIC

	AmountAccount   *big.Rat            `bigquery:"amount_account_currency"` // NULLABLE NUMERIC
	AccountCurrency bigquery.NullString `bigquery:"account_currency"`        // NULLABLE

	CounterpartyName bigquery.NullString `bigquery:"counterparty_name"` // NULLABLE
	CounterpartyIBAN bigquery.NullString `bigquery:"counterparty_iban"` // NULLABLE
	MCC              bigquery.NullInt64  `bigquery:"mcc"`               // NULLABLE

	IsFinancialAid bool `bigquery:"is_financial_aid"`
	IsReturn       bool `bigquery:"is_return"`
	IsFXSale       bool `bigquery:"is_fx_sale"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
