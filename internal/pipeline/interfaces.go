package pipeline

import (
	"context"

	infra "github.com/dvloznov/fop-tax-tracker/internal/infra/bigquery"
)

// StorageService fetches statements stored in object storage.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Exporter records import runs and their transactions in the warehouse.
// *infra.Repository satisfies it.
type Exporter interface {
	StartImportRun(ctx context.Context, sourceURI, rowExtractor string) (string, error)
	MarkImportRunFailed(ctx context.Context, importRunID string, importErr error)
	MarkImportRunSucceeded(ctx context.Context, importRunID, bank string, transactions, warnings int) error
	InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error
}

// TextExtractor returns the plain text of each page of a PDF.
type TextExtractor func(data []byte) ([]string, error)
