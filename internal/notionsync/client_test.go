package notionsync

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDatabases struct {
	QueryFunc func(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

func (m *mockDatabases) Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryFunc(ctx, id, req)
}

type mockPages struct {
	CreateFunc func(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdateFunc func(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

func (m *mockPages) Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return m.CreateFunc(ctx, req)
}

func (m *mockPages) Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return m.UpdateFunc(ctx, id, req)
}

func page(id, period string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropPeriod: &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: period}}},
		},
	}
}

func TestNotionClient_PeriodPages(t *testing.T) {
	var cursors []notionapi.Cursor
	db := &mockDatabases{QueryFunc: func(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		assert.Equal(t, notionapi.DatabaseID("db"), id)
		assert.Equal(t, queryPageSize, req.PageSize)
		filter, ok := req.Filter.(notionapi.PropertyFilter)
		require.True(t, ok, "a single year is one title filter")
		assert.Equal(t, PropPeriod, filter.Property)
		assert.Equal(t, "2025-", filter.RichText.StartsWith)

		cursors = append(cursors, req.StartCursor)
		if req.StartCursor == "" {
			return &notionapi.DatabaseQueryResponse{
				Results:    []notionapi.Page{page("p1", "2025-Q1"), page("notes", "2025-notes")},
				HasMore:    true,
				NextCursor: "next",
			}, nil
		}
		return &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{page("p4", "2025-Q4"), page("untitled", "")},
		}, nil
	}}
	c := &NotionClient{databases: db}

	got, err := c.PeriodPages(context.Background(), "db", []int{2025})
	require.NoError(t, err)
	assert.Equal(t, PeriodPages{"2025-Q1": "p1", "2025-Q4": "p4"}, got)
	assert.Equal(t, []notionapi.Cursor{"", "next"}, cursors)
}

func TestNotionClient_PeriodPagesSeveralYears(t *testing.T) {
	db := &mockDatabases{QueryFunc: func(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		or, ok := req.Filter.(notionapi.OrCompoundFilter)
		require.True(t, ok)
		require.Len(t, or, 2)
		assert.Equal(t, "2025-", or[1].(notionapi.PropertyFilter).RichText.StartsWith)
		// A starts_with match may still carry a year outside the request.
		return &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{page("a", "2024-Q2"), page("b", "2025-Q1"), page("c", "20245-Q1")},
		}, nil
	}}
	c := &NotionClient{databases: db}

	got, err := c.PeriodPages(context.Background(), "db", []int{2024, 2025})
	require.NoError(t, err)
	assert.Equal(t, PeriodPages{"2024-Q2": "a", "2025-Q1": "b"}, got)

	none, err := c.PeriodPages(context.Background(), "db", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNotionClient_PeriodPagesError(t *testing.T) {
	c := &NotionClient{databases: &mockDatabases{QueryFunc: func(context.Context, notionapi.DatabaseID, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
		return nil, errors.New("unauthorized")
	}}}
	_, err := c.PeriodPages(context.Background(), "db", []int{2025})
	assert.ErrorContains(t, err, "PeriodPages: unauthorized")
}

func TestNotionClient_UpsertPeriod(t *testing.T) {
	props := notionapi.Properties{PropYear: notionapi.NumberProperty{Number: 2025}}

	tests := []struct {
		name    string
		pageID  string
		pages   *mockPages
		wantID  string
		wantErr string
	}{
		{
			name:   "existing page is updated",
			pageID: "p1",
			pages: &mockPages{UpdateFunc: func(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
				assert.Equal(t, notionapi.PageID("p1"), id)
				assert.Equal(t, props, req.Properties)
				assert.False(t, req.Archived)
				return &notionapi.Page{ID: "p1"}, nil
			}},
			wantID: "p1",
		},
		{
			name: "missing page is created in the database",
			pages: &mockPages{CreateFunc: func(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
				assert.Equal(t, notionapi.DatabaseID("db"), req.Parent.DatabaseID)
				assert.Equal(t, props, req.Properties)
				return &notionapi.Page{ID: "new"}, nil
			}},
			wantID: "new",
		},
		{
			name:   "update failure",
			pageID: "p1",
			pages: &mockPages{UpdateFunc: func(context.Context, notionapi.PageID, *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
				return nil, errors.New("conflict")
			}},
			wantErr: "update p1: conflict",
		},
		{
			name: "create failure",
			pages: &mockPages{CreateFunc: func(context.Context, *notionapi.PageCreateRequest) (*notionapi.Page, error) {
				return nil, errors.New("validation_error")
			}},
			wantErr: "create: validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &NotionClient{pages: tt.pages}
			id, err := c.UpsertPeriod(context.Background(), "db", tt.pageID, props)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNotionClient_ArchivePeriod(t *testing.T) {
	var archived []notionapi.PageID
	c := &NotionClient{pages: &mockPages{UpdateFunc: func(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
		assert.True(t, req.Archived)
		assert.Empty(t, req.Properties)
		archived = append(archived, id)
		return &notionapi.Page{ID: notionapi.ObjectID(id)}, nil
	}}}

	require.NoError(t, c.ArchivePeriod(context.Background(), "p4"))
	assert.Equal(t, []notionapi.PageID{"p4"}, archived)
}

func TestPeriodInYears(t *testing.T) {
	years := []int{2025}
	assert.True(t, periodInYears("2025-Q4", years))
	assert.False(t, periodInYears("2024-Q4", years))
	assert.False(t, periodInYears("2025-Q5", years))
	assert.False(t, periodInYears("2025-Q1 draft", years))
	assert.False(t, periodInYears("garbage", years))
}
