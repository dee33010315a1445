package quarters

import (
	"testing"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func tx(id string, year int, month time.Month, day int) domain.Transaction {
	return domain.Transaction{
		ID:   id,
		Date: domain.NewTimestamp(time.Date(year, month, day, 23, 59, 59, 0, time.UTC)),
		Type: domain.Credit,
	}
}

func TestIsClosed(t *testing.T) {
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		year    int
		quarter domain.Quarter
		want    bool
	}{
		{name: "current year Q1", year: 2025, quarter: domain.Q1, want: true},
		{name: "current year Q2", year: 2025, quarter: domain.Q2, want: true},
		{name: "current year Q3 in progress", year: 2025, quarter: domain.Q3, want: false},
		{name: "current year Q4", year: 2025, quarter: domain.Q4, want: false},
		{name: "past year Q4", year: 2024, quarter: domain.Q4, want: true},
		{name: "past year Q1", year: 2024, quarter: domain.Q1, want: true},
		{name: "future year Q1", year: 2026, quarter: domain.Q1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsClosed(tt.year, tt.quarter, now))
		})
	}
}

func TestIsClosed_FirstDayAfterQuarter(t *testing.T) {
	assert.False(t, IsClosed(2025, domain.Q1, time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, IsClosed(2025, domain.Q1, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsClosed(2025, domain.Q4, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestBucketer_Bucket(t *testing.T) {
	b := New(fixedClock(time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)))

	years := b.Bucket([]domain.Transaction{
		tx("q1-last", 2025, time.March, 31),
		tx("q2-first", 2025, time.April, 1),
		tx("q4-2024", 2024, time.December, 31),
		tx("q1-2025", 2025, time.January, 1),
		{ID: "undated"},
	})

	assert.Equal(t, []int{2024, 2025}, years.SortedYears())
	assert.Equal(t, 4, years.Count())

	y2025 := years[2025]
	require.Len(t, y2025, 4)
	assert.Equal(t, []string{"q1-last", "q1-2025"}, ids(y2025[domain.Q1].Transactions))
	assert.Equal(t, []string{"q2-first"}, ids(y2025[domain.Q2].Transactions))
	assert.Empty(t, y2025[domain.Q3].Transactions)

	assert.True(t, y2025[domain.Q1].IsClosed)
	assert.True(t, y2025[domain.Q2].IsClosed)
	assert.False(t, y2025[domain.Q3].IsClosed)
	assert.False(t, y2025[domain.Q4].IsClosed)

	for _, q := range domain.Quarters {
		assert.True(t, years[2024][q].IsClosed, "2024 %s", q)
	}
	assert.Equal(t, []string{"q4-2024"}, ids(years[2024][domain.Q4].Transactions))
}

func TestBucketer_QuarterBoundaryEveryYear(t *testing.T) {
	b := New(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))

	for year := 2000; year <= 2029; year++ {
		years := b.Bucket([]domain.Transaction{
			tx("end-march", year, time.March, 31),
			tx("start-april", year, time.April, 1),
		})
		assert.Equal(t, []string{"end-march"}, ids(years[year][domain.Q1].Transactions), "year %d", year)
		assert.Equal(t, []string{"start-april"}, ids(years[year][domain.Q2].Transactions), "year %d", year)
	}
}

func TestBucketer_IsClosedUsesClock(t *testing.T) {
	b := New(fixedClock(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, b.IsClosed(2025, domain.Q3))
	assert.False(t, b.IsClosed(2025, domain.Q4))
}

func ids(txs []domain.Transaction) []string {
	var out []string
	for _, t := range txs {
		out = append(out, t.ID)
	}
	return out
}
