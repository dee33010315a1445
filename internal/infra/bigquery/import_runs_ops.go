package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/google/uuid"
)

const (
	importRunsTable = "import_runs"
	maxErrorLength  = 2000
)

// StartImportRunWithClient inserts a new row into import_runs with
// status=RUNNING and returns the generated import_run_id.
func StartImportRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, sourceURI, rowExtractor string) (string, error) {
	importRunID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			import_run_id,
			source_uri,
			started_ts,
			row_extractor,
			status
		)
		VALUES (
			@import_run_id,
			@source_uri,
			@started_ts,
			@row_extractor,
			@status
		)
	`, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_run_id", Value: importRunID},
		{Name: "source_uri", Value: sourceURI},
		{Name: "started_ts", Value: time.Now()},
		{Name: "row_extractor", Value: rowExtractor},
		{Name: "status", Value: ImportRunning},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartImportRun: %w", err)
	}

	return importRunID, nil
}

// MarkImportRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged, not returned, since the caller is
// already handling the original error.
func MarkImportRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, importRunID string, importErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if importErr != nil {
		errMsg = importErr.Error()
		if len(errMsg) > maxErrorLength {
			errMsg = errMsg[:maxErrorLength]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE import_run_id = @import_run_id
	`, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ImportFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "import_run_id", Value: importRunID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("import_run_id", importRunID).
			Msg("MarkImportRunFailed: updating run")
	}
}

// MarkImportRunSucceededWithClient sets status=SUCCESS, the detected bank and
// the row counts.
func MarkImportRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, importRunID, bank string, transactions, warnings int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    bank = @bank,
		    transaction_count = @transaction_count,
		    warning_count = @warning_count,
		    error_message = ""
		WHERE import_run_id = @import_run_id
	`, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ImportSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "bank", Value: bank},
		{Name: "transaction_count", Value: transactions},
		{Name: "warning_count", Value: warnings},
		{Name: "import_run_id", Value: importRunID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkImportRunSucceeded: %w", err)
	}
	return nil
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
