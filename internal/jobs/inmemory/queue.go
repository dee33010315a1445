package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueueConfig sizes the queue and its worker pool.
type QueueConfig struct {
	// BufferSize determines how many jobs can be queued before publishing blocks.
	BufferSize int
	// Workers is the number of jobs processed concurrently.
	Workers int
	// MaxRetries applies to jobs published without their own limit.
	MaxRetries int
	// Backoff is multiplied by the retry count before a failed job is re-enqueued.
	Backoff time.Duration
	Log     zerolog.Logger
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.ImportStatementJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	cfg       QueueConfig
	closed    bool
}

// NewQueue creates a new in-memory job queue. Zero config fields get
// defaults: 100 buffered jobs, 5 workers, DefaultMaxRetries, 1s backoff.
func NewQueue(cfg QueueConfig, store jobs.JobStore) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = jobs.DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Queue{
		jobChan:   make(chan *jobs.ImportStatementJob, cfg.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		cfg:       cfg,
	}
}

// PublishImportStatement implements the Publisher interface.
// It enqueues a statement import job for asynchronous processing.
func (q *Queue) PublishImportStatement(ctx context.Context, job *jobs.ImportStatementJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	// Retries come back with their ID; only new jobs are checked.
	if job.JobID == "" && q.store != nil {
		active, err := q.store.ActiveImport(ctx, job.SourceURI)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s (job %s)", jobs.ErrImportInProgress, job.SourceURI, active.JobID)
		case !errors.Is(err, jobs.ErrJobNotFound):
			return fmt.Errorf("failed to check active imports: %w", err)
		}
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.cfg.MaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// It starts cfg.Workers goroutines calling handler for each job.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.ImportStatementJob, handler jobs.JobHandler) {
	log := q.cfg.Log.With().Str("job_id", job.JobID).Str("source", job.SourceURI).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying

			backoff := time.Duration(job.RetryCount) * q.cfg.Backoff
			log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("Job failed, retrying")

			retry := *job
			time.AfterFunc(backoff, func() {
				retry.Status = jobs.JobStatusPending
				retry.StartedAt = nil
				retry.CompletedAt = nil
				if err := q.PublishImportStatement(ctx, &retry); err != nil {
					log.Error().Err(err).Msg("Failed to re-enqueue job")
				}
			})
		} else {
			job.Status = jobs.JobStatusFailed
			log.Error().Err(err).Int("retries", job.RetryCount).Msg("Job failed")
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Msg("Job completed")
	}

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ImportStatementJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.cfg.Log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
