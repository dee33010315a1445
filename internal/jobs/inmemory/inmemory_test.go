package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/jobs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveGetCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.ImportStatementJob{JobID: "j1", SourceURI: "gs://b/a.pdf", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))

	job.Status = jobs.JobStatusFailed
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status, "store keeps its own copy")

	got.Bank = "monobank"
	again, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Empty(t, again.Bank)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	assert.Error(t, s.SaveJob(ctx, &jobs.ImportStatementJob{}))
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, st := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		require.NoError(t, s.SaveJob(ctx, &jobs.ImportStatementJob{
			JobID:     string(rune('a' + i)),
			SourceURI: "gs://b/" + string(rune('a'+i)),
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all newest first", filter: jobs.JobFilter{}, want: []string{"c", "b", "a"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, want: []string{"c", "a"}},
		{name: "by source", filter: jobs.JobFilter{SourceURI: "gs://b/b"}, want: []string{"b"}},
		{name: "limit", filter: jobs.JobFilter{Limit: 1}, want: []string{"c"}},
		{name: "offset", filter: jobs.JobFilter{Offset: 1, Limit: 5}, want: []string{"b", "a"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 10}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.SaveJob(ctx, &jobs.ImportStatementJob{JobID: "j1"}))

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
}

func TestStore_ActiveImport(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	const src = "gs://b/statements/mono-2025-q1.pdf"

	_, err := s.ActiveImport(ctx, src)
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	require.NoError(t, s.SaveJob(ctx, &jobs.ImportStatementJob{JobID: "first", SourceURI: src, Status: jobs.JobStatusFailed, CreatedAt: base}))
	_, err = s.ActiveImport(ctx, src)
	assert.ErrorIs(t, err, jobs.ErrJobNotFound, "a failed import does not block a new one")

	require.NoError(t, s.SaveJob(ctx, &jobs.ImportStatementJob{JobID: "second", SourceURI: src, Status: jobs.JobStatusRetrying, CreatedAt: base.Add(time.Minute)}))
	active, err := s.ActiveImport(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "second", active.JobID)

	require.NoError(t, s.UpdateJobStatus(ctx, "second", jobs.JobStatusCompleted, ""))
	_, err = s.ActiveImport(ctx, src)
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	done, err := s.GetJob(ctx, "second")
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedAt, "a final status is stamped")

	history, err := s.ListJobs(ctx, jobs.JobFilter{SourceURI: src})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].JobID)
}

func TestStore_SourceChangeMovesIndex(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.SaveJob(ctx, &jobs.ImportStatementJob{JobID: "j1", SourceURI: "gs://b/old.pdf", Status: jobs.JobStatusPending}))
	require.NoError(t, s.SaveJob(ctx, &jobs.ImportStatementJob{JobID: "j1", SourceURI: "gs://b/new.pdf", Status: jobs.JobStatusPending}))
	require.NoError(t, s.SaveJob(ctx, &jobs.ImportStatementJob{JobID: "j1", SourceURI: "gs://b/new.pdf", Status: jobs.JobStatusRunning}))

	old, err := s.ListJobs(ctx, jobs.JobFilter{SourceURI: "gs://b/old.pdf"})
	require.NoError(t, err)
	assert.Empty(t, old)

	moved, err := s.ListJobs(ctx, jobs.JobFilter{SourceURI: "gs://b/new.pdf"})
	require.NoError(t, err)
	require.Len(t, moved, 1, "re-saving a job does not duplicate it in the index")
	assert.Equal(t, jobs.JobStatusRunning, moved[0].Status)
}

func TestStore_TimestampsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	started := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	job := &jobs.ImportStatementJob{JobID: "j1", StartedAt: &started}
	require.NoError(t, s.SaveJob(ctx, job))
	*job.StartedAt = started.Add(time.Hour)

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, started, *got.StartedAt)
}

func waitForStatus(t *testing.T, s *Store, id string, want jobs.JobStatus) *jobs.ImportStatementJob {
	t.Helper()
	var job *jobs.ImportStatementJob
	require.Eventually(t, func() bool {
		j, err := s.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_ProcessesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(QueueConfig{Workers: 2, Log: zerolog.Nop()}, store)
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ImportStatementJob)
		j.Bank = "ukrsib"
		j.TransactionCount = 7
		return nil
	}))
	defer q.Close()

	job := &jobs.ImportStatementJob{SourceURI: "gs://b/s.pdf"}
	require.NoError(t, q.PublishImportStatement(ctx, job))
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "ukrsib", done.Bank)
	assert.Equal(t, 7, done.TransactionCount)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(QueueConfig{Workers: 1, MaxRetries: 2, Backoff: time.Millisecond, Log: zerolog.Nop()}, store)

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return errors.New("bank statement unreadable")
	}))
	defer q.Close()

	job := &jobs.ImportStatementJob{JobID: "retry-me"}
	require.NoError(t, q.PublishImportStatement(ctx, job))

	failed := waitForStatus(t, store, "retry-me", jobs.JobStatusFailed)
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "bank statement unreadable", failed.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(QueueConfig{}, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Stop(context.Background()), "stopping twice is a no-op")

	err := q.PublishImportStatement(context.Background(), &jobs.ImportStatementJob{})
	assert.EqualError(t, err, "queue is closed")
	assert.Error(t, q.Start(context.Background(), nil))
}

func TestQueue_RejectsDuplicateImport(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(QueueConfig{Log: zerolog.Nop()}, store)
	defer q.Close()

	first := &jobs.ImportStatementJob{SourceURI: "gs://b/privat.pdf"}
	require.NoError(t, q.PublishImportStatement(ctx, first))

	err := q.PublishImportStatement(ctx, &jobs.ImportStatementJob{SourceURI: "gs://b/privat.pdf"})
	require.ErrorIs(t, err, jobs.ErrImportInProgress)
	assert.Contains(t, err.Error(), first.JobID)

	require.NoError(t, q.PublishImportStatement(ctx, &jobs.ImportStatementJob{SourceURI: "gs://b/mono.pdf"}))

	require.NoError(t, store.UpdateJobStatus(ctx, first.JobID, jobs.JobStatusFailed, "unreadable"))
	require.NoError(t, q.PublishImportStatement(ctx, &jobs.ImportStatementJob{SourceURI: "gs://b/privat.pdf"}), "a failed import can be retried by hand")
}
