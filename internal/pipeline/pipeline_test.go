package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	infra "github.com/dvloznov/fop-tax-tracker/internal/infra/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func now() time.Time { return fixedNow }

type mockStorage struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *mockStorage) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return m.FetchFromGCSFunc(ctx, gcsURI)
}

type mockRowExtractor struct {
	ExtractRowsFunc func(ctx context.Context, bank statement.Bank, pages []string) ([][]string, error)
}

func (m *mockRowExtractor) ExtractRows(ctx context.Context, bank statement.Bank, pages []string) ([][]string, error) {
	return m.ExtractRowsFunc(ctx, bank, pages)
}

type mockExporter struct {
	StartImportRunFunc         func(ctx context.Context, sourceURI, rowExtractor string) (string, error)
	MarkImportRunFailedFunc    func(ctx context.Context, importRunID string, importErr error)
	MarkImportRunSucceededFunc func(ctx context.Context, importRunID, bank string, transactions, warnings int) error
	InsertTransactionsFunc     func(ctx context.Context, rows []*infra.TransactionRow) error
}

func (m *mockExporter) StartImportRun(ctx context.Context, sourceURI, rowExtractor string) (string, error) {
	return m.StartImportRunFunc(ctx, sourceURI, rowExtractor)
}

func (m *mockExporter) MarkImportRunFailed(ctx context.Context, importRunID string, importErr error) {
	m.MarkImportRunFailedFunc(ctx, importRunID, importErr)
}

func (m *mockExporter) MarkImportRunSucceeded(ctx context.Context, importRunID, bank string, transactions, warnings int) error {
	return m.MarkImportRunSucceededFunc(ctx, importRunID, bank, transactions, warnings)
}

func (m *mockExporter) InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error {
	return m.InsertTransactionsFunc(ctx, rows)
}

var monobankHeader = []string{
	"Дата та час операції", "Деталі операції", "Реквізити контрагента", "Сума в валюті картки", "Валюта",
	"Сума в еквіваленті НБУ", "Курс", "Комісія", "Залишок після операції",
}

const monobankPage = "Виписка з рахунку ФОП\nАТ \"Універсал Банк\"\nПеріод: 01.01.2025 - 31.03.2025"

func monobankRows() [][]string {
	return [][]string{
		monobankHeader,
		{"15.01.2025 10:20:30", "Оплата за договором №7", "ТОВ Клієнт", "1000.00", "USD", "41 500,00", "41.5", "—", "1000.00"},
		{"16.01.2025 09:00:00", "Продаж валюти", "—", "-500.00", "USD", "-20 750,00", "41.5", "—", "500.00"},
		{"16.01.2025 09:00:01", "Зарахування від продажу", "—", "20750.00", "UAH", "—", "—", "—", "20750.00"},
		{"20.02.2025 11:00:00", "Повернення коштів клієнту", "—", "-100.00", "USD", "-4 150,00", "41.5", "—", "400.00"},
	}
}

func fakeText(pages ...string) TextExtractor {
	return func(data []byte) ([]string, error) {
		return pages, nil
	}
}

func rowsOf(rows [][]string) *mockRowExtractor {
	return &mockRowExtractor{
		ExtractRowsFunc: func(ctx context.Context, bank statement.Bank, pages []string) ([][]string, error) {
			return rows, nil
		},
	}
}

func TestStatementImportPipeline_Steps(t *testing.T) {
	bare := NewStatementImportPipeline(Deps{})
	assert.Equal(t, []string{
		"load document", "extract text", "prefilter", "detect bank", "extract rows",
		"parse statement", "classify", "filter income",
	}, bare.Steps())

	full := NewStatementImportPipeline(Deps{
		Exporter: &mockExporter{},
		Store:    snapshot.NewFileStore(t.TempDir()),
	})
	steps := full.Steps()
	assert.Equal(t, "start import run", steps[0])
	assert.Equal(t, []string{"export", "snapshot"}, steps[len(steps)-2:])
}

func TestStatementImporter_Import(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewFileStore(t.TempDir())

	var inserted []*infra.TransactionRow
	var succeeded bool
	exporter := &mockExporter{
		StartImportRunFunc: func(ctx context.Context, sourceURI, rowExtractor string) (string, error) {
			assert.Equal(t, "gs://bucket/statements/jan.pdf", sourceURI)
			assert.Equal(t, "TEXT", rowExtractor)
			return "run-1", nil
		},
		InsertTransactionsFunc: func(ctx context.Context, rows []*infra.TransactionRow) error {
			inserted = rows
			return nil
		},
		MarkImportRunSucceededFunc: func(ctx context.Context, importRunID, bank string, transactions, warnings int) error {
			assert.Equal(t, "run-1", importRunID)
			assert.Equal(t, "monobank", bank)
			assert.Equal(t, 4, transactions)
			succeeded = true
			return nil
		},
		MarkImportRunFailedFunc: func(ctx context.Context, importRunID string, importErr error) {
			t.Fatalf("unexpected failure: %v", importErr)
		},
	}

	imp := NewStatementImporter(Deps{
		Storage: &mockStorage{FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return []byte("%PDF-1.4"), nil
		}},
		ExtractText:      fakeText(monobankPage),
		RowExtractor:     rowsOf(monobankRows()),
		RowExtractorName: "TEXT",
		Exporter:         exporter,
		Store:            store,
		Now:              now,
	})

	state, err := imp.Import(ctx, "gs://bucket/statements/jan.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, statement.BankMonobank, state.Bank)
	require.Len(t, state.Transactions, 4)
	assert.True(t, state.Transactions[1].IsFXSale)
	assert.True(t, state.Transactions[3].IsReturn)

	// The USD credit and the return; the hryvnia leg of the FX sale is dropped.
	require.Len(t, state.Income, 2)
	assert.Equal(t, domain.Credit, state.Income[0].Type)
	assert.Equal(t, domain.Debit, state.Income[1].Type)

	assert.Len(t, inserted, 4)
	assert.True(t, succeeded)

	var snap StatementSnapshot
	ok, err := store.Load(ctx, snapshot.StatementKey("run-1"), &snap)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, statement.BankMonobank, snap.Bank)
	assert.Len(t, snap.Income, 2)
	assert.Equal(t, fixedNow, snap.ImportedAt)
}

func TestStatementImporter_Failures(t *testing.T) {
	tests := []struct {
		name     string
		pages    []string
		rows     [][]string
		rowsErr  error
		wantStep string
		wantIs   error
	}{
		{
			name:     "not a statement",
			pages:    []string{"Lorem ipsum"},
			wantStep: "pipeline step 4 (prefilter) failed",
			wantIs:   statement.ErrNotStatement,
		},
		{
			name:     "unknown bank",
			pages:    []string{"Виписка за період 01.01.2025 - 31.01.2025\nSome Bank"},
			wantStep: "pipeline step 5 (detect bank) failed",
			wantIs:   statement.ErrUnknownBank,
		},
		{
			name:     "row extraction",
			pages:    []string{monobankPage},
			rowsErr:  errors.New("model unavailable"),
			wantStep: "pipeline step 6 (extract rows) failed",
		},
		{
			name:     "no header",
			pages:    []string{monobankPage},
			rows:     [][]string{{"a", "b"}},
			wantStep: "pipeline step 7 (parse statement) failed",
			wantIs:   statement.ErrHeaderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failedRun string
			exporter := &mockExporter{
				StartImportRunFunc: func(ctx context.Context, sourceURI, rowExtractor string) (string, error) {
					return "run-x", nil
				},
				MarkImportRunFailedFunc: func(ctx context.Context, importRunID string, importErr error) {
					failedRun = importRunID
				},
			}
			imp := NewStatementImporter(Deps{
				ExtractText: fakeText(tt.pages...),
				RowExtractor: &mockRowExtractor{ExtractRowsFunc: func(ctx context.Context, bank statement.Bank, pages []string) ([][]string, error) {
					return tt.rows, tt.rowsErr
				}},
				Exporter: exporter,
				Now:      now,
			})

			_, err := imp.Import(context.Background(), "upload.pdf", []byte("%PDF"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantStep)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Equal(t, "run-x", failedRun)
		})
	}
}

func TestLoadDocumentStep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "statement.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-local"), 0o644))

	step := &LoadDocumentStep{}

	state := &PipelineState{Source: path}
	require.NoError(t, step.Execute(ctx, state))
	assert.Equal(t, []byte("%PDF-local"), state.PDFBytes)

	preset := &PipelineState{Source: "missing.pdf", PDFBytes: []byte("given")}
	require.NoError(t, step.Execute(ctx, preset), "provided bytes skip loading")

	err := step.Execute(ctx, &PipelineState{Source: "gs://b/o.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage configured")

	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	err = step.Execute(ctx, &PipelineState{Source: empty})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestSnapshotStep_Masks(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewFileStore(t.TempDir())
	iban := "UA213220010000026201234567890"
	state := &PipelineState{
		Source: "upload.pdf",
		Bank:   statement.BankUkrsib,
		Result: &statement.Result{},
		Transactions: []domain.Transaction{
			{Description: "Оплата ІПН 1234567890", CounterpartyIBAN: &iban},
		},
	}

	step := &SnapshotStep{Store: store, Mask: true, Now: now}
	require.NoError(t, step.Execute(ctx, state))
	require.NotEmpty(t, state.ImportRunID, "an id is generated without an import run")

	var snap StatementSnapshot
	_, err := store.Load(ctx, snapshot.StatementKey(state.ImportRunID), &snap)
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	assert.NotContains(t, snap.Transactions[0].Description, "1234567890")
	assert.NotEqual(t, iban, *snap.Transactions[0].CounterpartyIBAN)
	assert.Equal(t, iban, *state.Transactions[0].CounterpartyIBAN, "state is not masked in place")
}
