package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrImportInProgress is returned when a statement already has an import job
// that has not finished.
var ErrImportInProgress = errors.New("import already in progress")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeImportStatement represents a statement import job.
	JobTypeImportStatement JobType = "import_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies to jobs published without MaxRetries.
const DefaultMaxRetries = 3

// ImportStatementJob imports one statement PDF from GCS or the local disk.
type ImportStatementJob struct {
	JobID string `json:"job_id"`

	// SourceURI is a gs:// URI or a local path.
	SourceURI string `json:"source_uri"`

	// ImportRunID is set once the import run was recorded.
	ImportRunID string `json:"import_run_id,omitempty"`

	// Bank is the detected statement issuer.
	Bank string `json:"bank,omitempty"`

	// TransactionCount and IncomeCount are filled on success.
	TransactionCount int `json:"transaction_count"`
	IncomeCount      int `json:"income_count"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ImportStatementJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ImportStatementJob) GetType() JobType {
	return JobTypeImportStatement
}

// GetStatus implements the Job interface.
func (j *ImportStatementJob) GetStatus() JobStatus {
	return j.Status
}

// Active reports whether the job can still run.
func (j *ImportStatementJob) Active() bool {
	switch j.Status {
	case JobStatusPending, JobStatusRunning, JobStatusRetrying:
		return true
	}
	return false
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishImportStatement publishes a statement import job.
	PublishImportStatement(ctx context.Context, job *ImportStatementJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
// Handlers may record results on the job; they are saved with the final status.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ImportStatementJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ImportStatementJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportStatementJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error

	// ActiveImport returns the latest unfinished job of a statement source,
	// or ErrJobNotFound.
	ActiveImport(ctx context.Context, sourceURI string) (*ImportStatementJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// SourceURI filters jobs by statement source.
	SourceURI string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
