package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Import run statuses.
const (
	ImportRunning = "RUNNING"
	ImportSuccess = "SUCCESS"
	ImportFailed  = "FAILED"
)

type ImportRunRow struct {
	ImportRunID string `bigquery:"import_run_id"` // REQUIRED
	SourceURI   string `bigquery:"source_uri"`    // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Bank             bigquery.NullString `bigquery:"bank"`              // NULLABLE until detection
	RowExtractor     string              `bigquery:"row_extractor"`     // e.g. GEMINI, TEXT
	TransactionCount bigquery.NullInt64  `bigquery:"transaction_count"` // NULLABLE
	WarningCount     bigquery.NullInt64  `bigquery:"warning_count"`     // NULLABLE

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`
}
