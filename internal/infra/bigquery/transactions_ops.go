package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "fop_transactions"
	dateFormat        = "2006-01-02"
)

// transactionNamespace seeds deterministic IDs of statement rows so that a
// re-imported statement produces the same transaction IDs.
var transactionNamespace = uuid.MustParse("6f1c9f3e-4a7e-4d0a-9b53-0c3f3d2f7a11")

// NewTransactionRows maps canonical transactions to export rows. Rows
// without a bank-provided ID get a name-based UUID derived from the run,
// position, date, type and amount.
func NewTransactionRows(txs []domain.Transaction, importRunID, bank string, now time.Time) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(txs))
	for i, tx := range txs {
		id := tx.ID
		if id == "" {
			key := fmt.Sprintf("%s|%d|%s|%s|%s", importRunID, i, tx.Date.String(), tx.Type, tx.AmountInOperationCurrency.String())
			id = uuid.NewSHA1(transactionNamespace, []byte(key)).String()
		}

		row := &TransactionRow{
			TransactionID:     id,
			ImportRunID:       nullString(importRunID),
			Source:            string(tx.Source),
			Bank:              nullString(bank),
			TransactionDate:   civil.DateOf(tx.Date.Time),
			Type:              string(tx.Type),
			Description:       tx.Description,
			AmountOperation:   tx.AmountInOperationCurrency.Rat(),
			OperationCurrency: tx.OperationCurrency,
			AmountReference:   nullRat(tx.AmountInReferenceCurrency),
			ReferenceCurrency: nullString(tx.ReferenceCurrency),
			ExchangeRate:      nullRat(tx.ExchangeRate),
			AmountAccount:     nullRat(tx.AmountInAccountCurrency),
			AccountCurrency:   nullString(tx.AccountCurrency),
			IsFinancialAid:    tx.IsFinancialAid,
			IsReturn:          tx.IsReturn,
			IsFXSale:          tx.IsFXSale,
			CreatedTS:         now.UTC(),
		}
		if !tx.Date.IsZero() {
			row.BookingDatetime = bigquery.NullDateTime{DateTime: civil.DateTimeOf(tx.Date.Time), Valid: true}
		}
		if tx.CounterpartyName != nil {
			row.CounterpartyName = nullString(*tx.CounterpartyName)
		}
		if tx.CounterpartyIBAN != nil {
			row.CounterpartyIBAN = nullString(*tx.CounterpartyIBAN)
		}
		if tx.MCC != 0 {
			row.MCC = bigquery.NullInt64{Int64: int64(tx.MCC), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// InsertTransactionsWithClient streams a batch of rows into fop_transactions.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryTransactionsByDateRangeWithClient returns the exported transactions
// dated within [startDate, endDate], oldest first.
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, datasetID string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		WHERE transaction_date BETWEEN @start_date AND @end_date
		ORDER BY transaction_date, booking_datetime
	`, datasetID, transactionsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: running query: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: reading row: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullRat(d decimal.NullDecimal) *big.Rat {
	if !d.Valid {
		return nil
	}
	return d.Decimal.Rat()
}
