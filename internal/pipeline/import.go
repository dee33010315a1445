package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/jobs"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
)

// StatementImporter runs the import pipeline and closes the import run on
// failure.
type StatementImporter struct {
	pipeline *Pipeline
	exporter Exporter
}

// NewStatementImporter wires an importer for deps.
func NewStatementImporter(deps Deps) *StatementImporter {
	return &StatementImporter{
		pipeline: NewStatementImportPipeline(deps),
		exporter: deps.Exporter,
	}
}

// Import processes one statement. source is a local path or a gs:// URI;
// when data is non-empty it is used as the PDF and source only names it.
func (imp *StatementImporter) Import(ctx context.Context, source string, data []byte) (*PipelineState, error) {
	log := logger.FromContext(ctx).With().Str("source", source).Logger()
	ctx = logger.WithContext(ctx, log)

	start := time.Now()
	state := &PipelineState{Source: source, PDFBytes: data}

	if err := imp.pipeline.Execute(ctx, state); err != nil {
		if imp.exporter != nil && state.ImportRunID != "" {
			imp.exporter.MarkImportRunFailed(ctx, state.ImportRunID, err)
		}
		log.Error().Err(err).Msg("Statement import failed")
		return state, err
	}

	log.Info().
		Str("bank", string(state.Bank)).
		Str("import_run_id", state.ImportRunID).
		Int("transactions", len(state.Transactions)).
		Int("income", len(state.Income)).
		Int("warnings", len(state.Result.Warnings)).
		Dur("duration", time.Since(start)).
		Msg("Statement imported")
	return state, nil
}

// ImportJobHandler returns a job handler importing the source of every
// ImportStatementJob. The run ID, bank and counts are recorded on the job.
func ImportJobHandler(imp *StatementImporter) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := logger.FromContext(ctx).With().Str("job_id", importJob.JobID).Logger()
		ctx = logger.WithContext(ctx, log)

		state, err := imp.Import(ctx, importJob.SourceURI, nil)
		if state != nil {
			importJob.ImportRunID = state.ImportRunID
			importJob.Bank = string(state.Bank)
		}
		if err != nil {
			return err
		}

		importJob.TransactionCount = len(state.Transactions)
		importJob.IncomeCount = len(state.Income)
		return nil
	}
}
