package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/livefeed"
	"github.com/rs/zerolog"
)

// Syncer pulls one year of live-feed transactions.
type Syncer interface {
	Sync(ctx context.Context, year int) (*livefeed.SyncResult, error)
}

// LiveFeedSyncJob syncs the current year, and also the previous one during
// January while its fourth quarter is still being reported.
type LiveFeedSyncJob struct {
	log      zerolog.Logger
	syncer   Syncer
	now      func() time.Time
	timeout  time.Duration
	onSynced func(ctx context.Context, res *livefeed.SyncResult) error
	running  sync.Mutex
}

// LiveFeedSyncConfig holds configuration for the live-feed sync job
type LiveFeedSyncConfig struct {
	Log     zerolog.Logger
	Syncer  Syncer
	Now     func() time.Time
	Timeout time.Duration
	// OnSynced runs after each successfully synced year, e.g. to recompute
	// and export the tax report.
	OnSynced func(ctx context.Context, res *livefeed.SyncResult) error
}

// NewLiveFeedSyncJob creates a new live-feed sync job
func NewLiveFeedSyncJob(cfg LiveFeedSyncConfig) *LiveFeedSyncJob {
	j := &LiveFeedSyncJob{
		log:      cfg.Log.With().Str("job", "livefeed_sync").Logger(),
		syncer:   cfg.Syncer,
		now:      cfg.Now,
		timeout:  cfg.Timeout,
		onSynced: cfg.OnSynced,
	}
	if j.now == nil {
		j.now = time.Now
	}
	if j.timeout <= 0 {
		// A year is twelve windows with a pause of up to a minute between them.
		j.timeout = 30 * time.Minute
	}
	return j
}

// Name returns the job name
func (j *LiveFeedSyncJob) Name() string {
	return "livefeed_sync"
}

// Years returns the years a run covers.
func (j *LiveFeedSyncJob) Years() []int {
	now := j.now()
	if now.Month() == time.January {
		return []int{now.Year() - 1, now.Year()}
	}
	return []int{now.Year()}
}

// Run executes the sync. A run that starts while another is in progress is
// skipped.
func (j *LiveFeedSyncJob) Run() error {
	if !j.running.TryLock() {
		j.log.Warn().Msg("Live-feed sync already running")
		return nil
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	var errs []error
	for _, year := range j.Years() {
		res, err := j.syncer.Sync(ctx, year)
		if err != nil {
			errs = append(errs, fmt.Errorf("year %d: %w", year, err))
			continue
		}

		j.log.Info().
			Int("year", year).
			Int("accounts", res.Accounts).
			Int("transactions", res.Transactions).
			Int("rate_dates", res.RateDates).
			Msg("Live feed synced")

		if j.onSynced != nil {
			if err := j.onSynced(ctx, res); err != nil {
				errs = append(errs, fmt.Errorf("year %d: after sync: %w", year, err))
			}
		}
	}

	j.log.Info().Dur("duration", time.Since(start)).Msg("Live-feed sync finished")
	return errors.Join(errs...)
}
