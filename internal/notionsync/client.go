package notionsync

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
)

// queryPageSize is the largest page the Notion query endpoint returns.
const queryPageSize = 100

type databaseQuerier interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

type pageWriter interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// NotionClient implements NotionService with the Notion SDK.
type NotionClient struct {
	databases databaseQuerier
	pages     pageWriter
}

// NewNotionClient creates a NotionClient authenticated with token.
func NewNotionClient(token string) *NotionClient {
	client := notionapi.NewClient(notionapi.Token(token))
	return &NotionClient{
		databases: client.Database,
		pages:     client.Page,
	}
}

// PeriodPages queries only the pages whose title starts with one of years,
// following the cursor until the last page. Titles that are not a period of
// a requested year are skipped.
func (n *NotionClient) PeriodPages(ctx context.Context, databaseID string, years []int) (PeriodPages, error) {
	out := PeriodPages{}
	if len(years) == 0 {
		return out, nil
	}

	req := &notionapi.DatabaseQueryRequest{
		Filter:   periodFilter(years),
		PageSize: queryPageSize,
	}
	for {
		resp, err := n.databases.Query(ctx, notionapi.DatabaseID(databaseID), req)
		if err != nil {
			return nil, fmt.Errorf("PeriodPages: %w", err)
		}
		for _, page := range resp.Results {
			period := extractPeriod(page)
			if periodInYears(period, years) {
				out[period] = string(page.ID)
			}
		}
		if !resp.HasMore {
			return out, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// UpsertPeriod updates pageID or creates a new page in databaseID.
func (n *NotionClient) UpsertPeriod(ctx context.Context, databaseID, pageID string, properties notionapi.Properties) (string, error) {
	if pageID != "" {
		if _, err := n.pages.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: properties}); err != nil {
			return "", fmt.Errorf("UpsertPeriod: update %s: %w", pageID, err)
		}
		return pageID, nil
	}

	page, err := n.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return "", fmt.Errorf("UpsertPeriod: create: %w", err)
	}
	return string(page.ID), nil
}

// ArchivePeriod archives the page; Notion keeps it in the trash.
func (n *NotionClient) ArchivePeriod(ctx context.Context, pageID string) error {
	if _, err := n.pages.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("ArchivePeriod: %s: %w", pageID, err)
	}
	return nil
}

// periodFilter matches titles starting with "<year>-" for any of years.
func periodFilter(years []int) notionapi.Filter {
	filters := make(notionapi.OrCompoundFilter, 0, len(years))
	for _, year := range years {
		filters = append(filters, notionapi.PropertyFilter{
			Property: PropPeriod,
			RichText: &notionapi.TextFilterCondition{StartsWith: strconv.Itoa(year) + "-"},
		})
	}
	if len(filters) == 1 {
		return filters[0]
	}
	return filters
}

// periodInYears reports whether period is a "<year>-Q<n>" title of one of years.
func periodInYears(period string, years []int) bool {
	yearPart, quarter, ok := strings.Cut(period, "-")
	if !ok || len(quarter) != 2 || quarter[0] != 'Q' || quarter[1] < '1' || quarter[1] > '4' {
		return false
	}
	year, err := strconv.Atoi(yearPart)
	return err == nil && slices.Contains(years, year)
}
