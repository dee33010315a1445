package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

// Repository is the BigQuery export sink. It holds a shared client so that
// one import run does not open a connection per operation.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a client for projectID that writes into datasetID.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:  client,
		dataset: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertTransactions delegates to InsertTransactionsWithClient.
func (r *Repository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

// QueryTransactionsByDateRange delegates to QueryTransactionsByDateRangeWithClient.
func (r *Repository) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, startDate, endDate)
}

// InsertQuarterSummaries delegates to InsertQuarterSummariesWithClient.
func (r *Repository) InsertQuarterSummaries(ctx context.Context, rows []*QuarterSummaryRow) error {
	return InsertQuarterSummariesWithClient(ctx, r.client, r.dataset, rows)
}

// ListQuarterSummariesByYear delegates to ListQuarterSummariesByYearWithClient.
func (r *Repository) ListQuarterSummariesByYear(ctx context.Context, year int) ([]*QuarterSummaryRow, error) {
	return ListQuarterSummariesByYearWithClient(ctx, r.client, r.dataset, year)
}

// StartImportRun delegates to StartImportRunWithClient.
func (r *Repository) StartImportRun(ctx context.Context, sourceURI, rowExtractor string) (string, error) {
	return StartImportRunWithClient(ctx, r.client, r.dataset, sourceURI, rowExtractor)
}

// MarkImportRunFailed delegates to MarkImportRunFailedWithClient.
func (r *Repository) MarkImportRunFailed(ctx context.Context, importRunID string, importErr error) {
	MarkImportRunFailedWithClient(ctx, r.client, r.dataset, importRunID, importErr)
}

// MarkImportRunSucceeded delegates to MarkImportRunSucceededWithClient.
func (r *Repository) MarkImportRunSucceeded(ctx context.Context, importRunID, bank string, transactions, warnings int) error {
	return MarkImportRunSucceededWithClient(ctx, r.client, r.dataset, importRunID, bank, transactions, warnings)
}
