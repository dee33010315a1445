package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	infra "github.com/dvloznov/fop-tax-tracker/internal/infra/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/notionsync"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSummaryExporter struct {
	InsertQuarterSummariesFunc func(ctx context.Context, rows []*infra.QuarterSummaryRow) error
}

func (m *mockSummaryExporter) InsertQuarterSummaries(ctx context.Context, rows []*infra.QuarterSummaryRow) error {
	return m.InsertQuarterSummariesFunc(ctx, rows)
}

type mockNotion struct {
	PeriodPagesFunc  func(ctx context.Context, databaseID string, years []int) (notionsync.PeriodPages, error)
	UpsertPeriodFunc func(ctx context.Context, databaseID, pageID string, properties notionapi.Properties) (string, error)
}

func (m *mockNotion) PeriodPages(ctx context.Context, databaseID string, years []int) (notionsync.PeriodPages, error) {
	return m.PeriodPagesFunc(ctx, databaseID, years)
}

func (m *mockNotion) UpsertPeriod(ctx context.Context, databaseID, pageID string, properties notionapi.Properties) (string, error) {
	return m.UpsertPeriodFunc(ctx, databaseID, pageID, properties)
}

func (m *mockNotion) ArchivePeriod(ctx context.Context, pageID string) error {
	return errors.New("unexpected archive")
}

func sampleReport(t *testing.T) *tax.Report {
	t.Helper()
	txs := []domain.Transaction{
		liveCredit("2025-01-10", "1000", "Invoice 1"),
		liveCredit("2025-04-10", "100", "Invoice 2"),
	}
	rates := tax.Rates{
		"2025-01-10": decimal.RequireFromString("41.00"),
		"2025-04-10": decimal.RequireFromString("41.50"),
	}
	report, err := ComputeReport(context.Background(), txs, rates, ReportConfig{Group: group3(t)}, fixedNow)
	require.NoError(t, err)
	return report
}

func TestPublishReport(t *testing.T) {
	ctx := context.Background()
	report := sampleReport(t)
	store := snapshot.NewFileStore(t.TempDir())

	var inserted []*infra.QuarterSummaryRow
	var created []string
	res, err := PublishReport(ctx, report, ReportSinks{
		Store: store,
		Summaries: &mockSummaryExporter{InsertQuarterSummariesFunc: func(ctx context.Context, rows []*infra.QuarterSummaryRow) error {
			inserted = rows
			return nil
		}},
		Notion: &mockNotion{
			PeriodPagesFunc: func(ctx context.Context, databaseID string, years []int) (notionsync.PeriodPages, error) {
				return notionsync.PeriodPages{}, nil
			},
			UpsertPeriodFunc: func(ctx context.Context, databaseID, pageID string, properties notionapi.Properties) (string, error) {
				assert.Empty(t, pageID)
				created = append(created, databaseID)
				return "new", nil
			},
		},
		NotionDatabaseID: "db-1",
	})
	require.NoError(t, err)

	assert.True(t, res.Snapshot)
	assert.Equal(t, len(inserted), res.SummaryRows)
	assert.NotZero(t, res.SummaryRows)
	require.NotNil(t, res.Notion)
	assert.Equal(t, len(created), res.Notion.Created)

	var saved tax.Report
	ok, err := store.Load(ctx, snapshot.ReportKey, &saved)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.Years[2025].Quarters[domain.Q1].TotalIncome, saved.Years[2025].Quarters[domain.Q1].TotalIncome)
}

func TestPublishReport_SinkFailuresAreJoined(t *testing.T) {
	report := sampleReport(t)

	res, err := PublishReport(context.Background(), report, ReportSinks{
		Store: snapshot.NewFileStore(t.TempDir()),
		Summaries: &mockSummaryExporter{InsertQuarterSummariesFunc: func(ctx context.Context, rows []*infra.QuarterSummaryRow) error {
			return errors.New("quota exceeded")
		}},
		Notion: &mockNotion{PeriodPagesFunc: func(ctx context.Context, databaseID string, years []int) (notionsync.PeriodPages, error) {
			return nil, errors.New("unauthorized")
		}},
		NotionDatabaseID: "db-1",
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.ErrorContains(t, err, "unauthorized")
	assert.True(t, res.Snapshot, "the snapshot is written regardless")
	assert.Zero(t, res.SummaryRows)
	assert.Nil(t, res.Notion)
}
