package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/jobs"
)

// Store keeps import jobs in memory, indexed by job ID and by statement
// source so a re-upload of the same statement can find its earlier imports.
// It is safe for concurrent use; jobs are lost on restart.
type Store struct {
	mu   sync.RWMutex
	byID map[string]*jobs.ImportStatementJob

	// bySource lists job IDs per SourceURI in the order they were first saved.
	bySource map[string][]string
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:     make(map[string]*jobs.ImportStatementJob),
		bySource: make(map[string][]string),
		now:      time.Now,
	}
}

// SaveJob stores a copy of job, replacing an earlier state with the same ID.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ImportStatementJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, known := s.byID[job.JobID]
	if known && prev.SourceURI != job.SourceURI {
		s.unindex(prev.SourceURI, prev.JobID)
		known = false
	}
	if !known {
		s.bySource[job.SourceURI] = append(s.bySource[job.SourceURI], job.JobID)
	}
	s.byID[job.JobID] = cloneJob(job)
	return nil
}

func (s *Store) unindex(source, jobID string) {
	ids := slices.DeleteFunc(s.bySource[source], func(id string) bool { return id == jobID })
	if len(ids) == 0 {
		delete(s.bySource, source)
		return
	}
	s.bySource[source] = ids
}

// GetJob returns a copy of the job, or jobs.ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ImportStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	return cloneJob(job), nil
}

// ListJobs returns the matching jobs newest first. A SourceURI filter is
// answered from the source index.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ImportStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*jobs.ImportStatementJob
	if filter.SourceURI != "" {
		for _, id := range s.bySource[filter.SourceURI] {
			candidates = append(candidates, s.byID[id])
		}
	} else {
		for _, job := range s.byID {
			candidates = append(candidates, job)
		}
	}

	result := []*jobs.ImportStatementJob{}
	for _, job := range candidates {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		result = append(result, cloneJob(job))
	}
	sortNewestFirst(result)

	return paginate(result, filter.Offset, filter.Limit), nil
}

// ActiveImport returns the most recently saved unfinished job of sourceURI.
func (s *Store) ActiveImport(ctx context.Context, sourceURI string) (*jobs.ImportStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySource[sourceURI]
	for i := len(ids) - 1; i >= 0; i-- {
		if job := s.byID[ids[i]]; job.Active() {
			return cloneJob(job), nil
		}
	}
	return nil, fmt.Errorf("%w: no active import of %s", jobs.ErrJobNotFound, sourceURI)
}

// UpdateJobStatus sets the status of a job. Moving to a final status stamps
// CompletedAt when the job has none.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if !job.Active() && job.CompletedAt == nil {
		now := s.now()
		job.CompletedAt = &now
	}
	return nil
}

// cloneJob copies job including its timestamps, so callers never share
// state with the store.
func cloneJob(job *jobs.ImportStatementJob) *jobs.ImportStatementJob {
	c := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func sortNewestFirst(list []*jobs.ImportStatementJob) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].JobID < list[j].JobID
	})
}

func paginate(list []*jobs.ImportStatementJob, offset, limit int) []*jobs.ImportStatementJob {
	if offset > 0 {
		if offset >= len(list) {
			return []*jobs.ImportStatementJob{}
		}
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

var _ jobs.JobStore = (*Store)(nil)
