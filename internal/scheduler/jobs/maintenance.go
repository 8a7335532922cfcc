package jobs

import (
	"context"

	"github.com/wonny/tradebook/pkg/logger"
)

// ParkedRetrier re-applies trades waiting on security metadata
type ParkedRetrier interface {
	RetryParked(ctx context.Context) int
}

// Flusher drains pending persistence writes
type Flusher interface {
	Flush(ctx context.Context) error
}

// RetryParkedJob retries trades parked for unknown securities
type RetryParkedJob struct {
	retrier  ParkedRetrier
	schedule string
	logger   *logger.Logger
}

// NewRetryParkedJob creates a new retry job
func NewRetryParkedJob(retrier ParkedRetrier, schedule string, log *logger.Logger) *RetryParkedJob {
	return &RetryParkedJob{
		retrier:  retrier,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RetryParkedJob) Name() string {
	return "retry_parked"
}

// Schedule returns the cron schedule
func (j *RetryParkedJob) Schedule() string {
	return j.schedule
}

// Run executes the retry
func (j *RetryParkedJob) Run(ctx context.Context) (int, error) {
	n := j.retrier.RetryParked(ctx)
	if n > 0 {
		j.logger.WithField("applied", n).Info("Parked trades applied")
	}
	return n, nil
}

// FlushJob makes sure queued writes reach the database
type FlushJob struct {
	flusher Flusher
	logger  *logger.Logger
}

// NewFlushJob creates a new flush job
func NewFlushJob(flusher Flusher, log *logger.Logger) *FlushJob {
	return &FlushJob{
		flusher: flusher,
		logger:  log,
	}
}

// Name returns the job name
func (j *FlushJob) Name() string {
	return "persistence_flush"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *FlushJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes the flush. It changes nothing in the book, so it reports 0.
func (j *FlushJob) Run(ctx context.Context) (int, error) {
	j.logger.Debug("Flushing persistence queue")
	return 0, j.flusher.Flush(ctx)
}
