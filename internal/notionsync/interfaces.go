package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// PeriodPages maps a period title such as "2025-Q1" to the ID of its page.
type PeriodPages map[string]string

// NotionService reads and writes the quarter pages of the tax database.
type NotionService interface {
	// PeriodPages lists the quarter pages of the given years.
	PeriodPages(ctx context.Context, databaseID string, years []int) (PeriodPages, error)

	// UpsertPeriod writes properties to pageID, or creates a page in the
	// database when pageID is empty. It returns the page ID.
	UpsertPeriod(ctx context.Context, databaseID, pageID string, properties notionapi.Properties) (string, error)

	// ArchivePeriod archives a quarter page that is no longer computed.
	ArchivePeriod(ctx context.Context, pageID string) error
}
