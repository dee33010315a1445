package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/classifier"
	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/gcsuploader"
	infra "github.com/dvloznov/fop-tax-tracker/internal/infra/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/dvloznov/fop-tax-tracker/internal/pdftext"
	"github.com/dvloznov/fop-tax-tracker/internal/rowextract"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/statement"
	"github.com/google/uuid"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	// Source is a local path or a gs:// URI. It may be a bare file name when
	// PDFBytes is provided up front.
	Source      string
	ImportRunID string

	PDFBytes []byte
	Pages    []string
	Bank     statement.Bank
	Rows     [][]string
	Result   *statement.Result

	// Transactions are all parsed transactions with classification flags.
	Transactions []domain.Transaction
	// Income holds the income candidates plus the debits flagged as returns.
	Income []domain.Transaction
}

// Step 1: StartImportRunStep records the run (status=RUNNING).
type StartImportRunStep struct {
	Exporter     Exporter
	RowExtractor string
}

func (s *StartImportRunStep) Name() string { return "start import run" }

func (s *StartImportRunStep) Execute(ctx context.Context, state *PipelineState) error {
	id, err := s.Exporter.StartImportRun(ctx, state.Source, s.RowExtractor)
	if err != nil {
		return err
	}
	state.ImportRunID = id
	return nil
}

// Step 2: LoadDocumentStep reads the PDF from GCS or the local disk unless
// the bytes were handed over already.
type LoadDocumentStep struct {
	Storage StorageService
}

func (s *LoadDocumentStep) Name() string { return "load document" }

func (s *LoadDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.PDFBytes) > 0 {
		return nil
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(state.Source, "gs://") {
		if s.Storage == nil {
			return fmt.Errorf("LoadDocument: no storage configured for %s", state.Source)
		}
		data, err = s.Storage.FetchFromGCS(ctx, state.Source)
	} else {
		data, err = os.ReadFile(filepath.Clean(state.Source))
	}
	if err != nil {
		return fmt.Errorf("LoadDocument: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("LoadDocument: %s is empty", state.Source)
	}
	state.PDFBytes = data
	return nil
}

// Step 3: ExtractTextStep reads the text of every page.
type ExtractTextStep struct {
	Extract TextExtractor
}

func (s *ExtractTextStep) Name() string { return "extract text" }

func (s *ExtractTextStep) Execute(ctx context.Context, state *PipelineState) error {
	extract := s.Extract
	if extract == nil {
		extract = pdftext.Pages
	}
	pages, err := extract(state.PDFBytes)
	if err != nil {
		return fmt.Errorf("ExtractText: %w", err)
	}
	state.Pages = pages
	return nil
}

// Step 4: PrefilterStep rejects documents that do not look like statements.
type PrefilterStep struct{}

func (s *PrefilterStep) Name() string { return "prefilter" }

func (s *PrefilterStep) Execute(ctx context.Context, state *PipelineState) error {
	if !statement.IsProbablyFinancial(state.Pages) {
		return statement.ErrNotStatement
	}
	return nil
}

// Step 5: DetectBankStep picks the bank from the first page.
type DetectBankStep struct{}

func (s *DetectBankStep) Name() string { return "detect bank" }

func (s *DetectBankStep) Execute(ctx context.Context, state *PipelineState) error {
	bank := statement.Detect(pdftext.FirstPage(state.Pages)).Bank()
	if bank == statement.BankUnknown {
		return &statement.DocumentError{Bank: bank, Err: statement.ErrUnknownBank}
	}
	state.Bank = bank
	log := logger.FromContext(ctx)
	log.Info().Str("bank", string(bank)).Msg("Detected bank")
	return nil
}

// Step 6: ExtractRowsStep tokenizes the pages into table rows.
type ExtractRowsStep struct {
	Extractor rowextract.RowExtractor
}

func (s *ExtractRowsStep) Name() string { return "extract rows" }

func (s *ExtractRowsStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := s.Extractor.ExtractRows(ctx, state.Bank, state.Pages)
	if err != nil {
		return fmt.Errorf("ExtractRows: %w", err)
	}
	state.Rows = rows
	return nil
}

// Step 7: ParseStatementStep runs the bank's table extractor and normalizer.
type ParseStatementStep struct{}

func (s *ParseStatementStep) Name() string { return "parse statement" }

func (s *ParseStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	p, err := statement.New(state.Bank)
	if err != nil {
		return &statement.DocumentError{Bank: state.Bank, Err: err}
	}

	res, err := p.Parse(statement.Document{Pages: state.Pages, Rows: state.Rows})
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	for _, w := range res.Warnings {
		log.Warn().Err(w.Err).Int("row", w.Row).Str("column", w.Column).Msg("Unreadable cell")
	}
	state.Result = res
	return nil
}

// Step 8: ClassifyStep sets the financial-aid, return and FX-sale flags.
type ClassifyStep struct {
	Classifier *classifier.Classifier
}

func (s *ClassifyStep) Name() string { return "classify" }

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	c := s.Classifier
	if c == nil {
		c = classifier.New(classifier.DefaultKeywords())
	}
	state.Transactions = c.ClassifyAll(state.Result.Transactions)
	return nil
}

// Step 9: FilterIncomeStep keeps the income candidates. Debits flagged as
// returns are kept too so that groups subtracting returns can see them.
type FilterIncomeStep struct{}

func (s *FilterIncomeStep) Name() string { return "filter income" }

func (s *FilterIncomeStep) Execute(ctx context.Context, state *PipelineState) error {
	income := statement.IncomeCandidates(state.Bank, state.Transactions)
	for _, tx := range state.Transactions {
		if tx.Type == domain.Debit && tx.IsReturn && !tx.Date.IsZero() {
			income = append(income, tx)
		}
	}
	state.Income = income

	log := logger.FromContext(ctx)
	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("income", len(income)).
		Msg("Filtered income candidates")
	return nil
}

// Step 10: ExportStep inserts the transactions and marks the run succeeded.
type ExportStep struct {
	Exporter Exporter
	Now      func() time.Time
}

func (s *ExportStep) Name() string { return "export" }

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	rows := infra.NewTransactionRows(state.Transactions, state.ImportRunID, string(state.Bank), s.Now())
	if err := s.Exporter.InsertTransactions(ctx, rows); err != nil {
		return err
	}
	return s.Exporter.MarkImportRunSucceeded(ctx, state.ImportRunID, string(state.Bank), len(rows), len(state.Result.Warnings))
}

// StatementSnapshot is the JSON document saved for every imported statement.
type StatementSnapshot struct {
	ImportID     string                `json:"import_id"`
	Source       string                `json:"source"`
	Bank         statement.Bank        `json:"bank"`
	ImportedAt   time.Time             `json:"imported_at"`
	Transactions []domain.Transaction  `json:"transactions"`
	Income       []domain.Transaction  `json:"income"`
	Warnings     []statement.CellError `json:"warnings,omitempty"`
}

// Step 11: SnapshotStep saves the parsed statement to the snapshot store.
type SnapshotStep struct {
	Store snapshot.Store
	Mask  bool
	Now   func() time.Time
}

func (s *SnapshotStep) Name() string { return "snapshot" }

func (s *SnapshotStep) Execute(ctx context.Context, state *PipelineState) error {
	id := state.ImportRunID
	if id == "" {
		id = uuid.NewString()
		state.ImportRunID = id
	}

	snap := StatementSnapshot{
		ImportID:     id,
		Source:       state.Source,
		Bank:         state.Bank,
		ImportedAt:   s.Now().UTC(),
		Transactions: state.Transactions,
		Income:       state.Income,
		Warnings:     state.Result.Warnings,
	}
	if s.Mask {
		snap.Transactions = maskAll(snap.Transactions)
		snap.Income = maskAll(snap.Income)
	}

	if err := s.Store.Save(ctx, snapshot.StatementKey(id), snap); err != nil {
		return fmt.Errorf("Snapshot: %w", err)
	}
	return nil
}

// maskAll returns copies of txs with account numbers and tax IDs masked.
func maskAll(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		tx.Description = statement.Mask(tx.Description)
		if tx.CounterpartyIBAN != nil {
			masked := statement.Mask(*tx.CounterpartyIBAN)
			tx.CounterpartyIBAN = &masked
		}
		out[i] = tx
	}
	return out
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// Deps are the collaborators of the statement import pipeline. Exporter and
// Store are optional; the matching steps are left out when nil.
type Deps struct {
	Storage          StorageService
	ExtractText      TextExtractor
	RowExtractor     rowextract.RowExtractor
	RowExtractorName string
	Classifier       *classifier.Classifier
	Exporter         Exporter
	Store            snapshot.Store
	MaskSnapshots    bool
	Now              func() time.Time
}

// NewStatementImportPipeline wires the import steps for deps.
func NewStatementImportPipeline(deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RowExtractor == nil {
		deps.RowExtractor = rowextract.NewTextRowExtractor()
	}
	if deps.Storage == nil {
		deps.Storage = gcsuploader.NewGCSStorageService()
	}

	var steps []PipelineStep
	if deps.Exporter != nil {
		steps = append(steps, &StartImportRunStep{Exporter: deps.Exporter, RowExtractor: deps.RowExtractorName})
	}
	steps = append(steps,
		&LoadDocumentStep{Storage: deps.Storage},
		&ExtractTextStep{Extract: deps.ExtractText},
		&PrefilterStep{},
		&DetectBankStep{},
		&ExtractRowsStep{Extractor: deps.RowExtractor},
		&ParseStatementStep{},
		&ClassifyStep{Classifier: deps.Classifier},
		&FilterIncomeStep{},
	)
	if deps.Exporter != nil {
		steps = append(steps, &ExportStep{Exporter: deps.Exporter, Now: deps.Now})
	}
	if deps.Store != nil {
		steps = append(steps, &SnapshotStep{Store: deps.Store, Mask: deps.MaskSnapshots, Now: deps.Now})
	}
	return NewPipeline(steps...)
}
