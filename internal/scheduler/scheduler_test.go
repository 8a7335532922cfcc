package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradebook/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	failures int32 // fail this many times first
	panics   bool
	affected int
	block    chan struct{}
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) (int, error) {
	n := j.calls.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if j.panics {
		panic("boom")
	}
	if n <= j.failures {
		return 0, errors.New("transient")
	}
	return j.affected, nil
}

func newTestScheduler() *Scheduler {
	return New(logger.Nop(), WithRetry(2, time.Millisecond), WithTimeout(time.Second))
}

func waitRuns(t *testing.T, s *Scheduler, name string, n int) *JobHistory {
	t.Helper()
	var h *JobHistory
	require.Eventually(t, func() bool {
		var err error
		h, err = s.GetJobHistory(name)
		return err == nil && len(h.Results) >= n
	}, time.Second, 5*time.Millisecond)
	return h
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "*/10 * * * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "*/10 * * * * *"}), "duplicate name")
	assert.Error(t, s.AddJob(&fakeJob{name: "b", schedule: "not a schedule"}))

	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@every 1h"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RunJob("a"))
}

func TestRunJob_RetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "flaky", schedule: "@every 1h", failures: 2, affected: 4}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	h := waitRuns(t, s, "flaky", 1)

	assert.True(t, h.Results[0].Success)
	assert.Equal(t, 3, h.Results[0].Attempts)
	assert.Equal(t, 4, h.Results[0].Affected)
	assert.Equal(t, int32(3), job.calls.Load())

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 4, stats.TotalAffected)
	assert.NotNil(t, stats.LastSuccess)
	assert.Empty(t, stats.LastError)
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&fakeJob{name: "broken", schedule: "@every 1h", failures: 100}))

	require.NoError(t, s.RunJob("broken"))
	h := waitRuns(t, s, "broken", 1)

	assert.False(t, h.Results[0].Success)
	assert.Equal(t, "transient", h.Results[0].Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
	assert.Equal(t, "transient", stats.LastError)
}

func TestRunJob_PanicIsRecorded(t *testing.T) {
	s := New(logger.Nop(), WithRetry(0, 0))
	require.NoError(t, s.AddJob(&fakeJob{name: "panics", schedule: "@every 1h", panics: true}))

	require.NoError(t, s.RunJob("panics"))
	h := waitRuns(t, s, "panics", 1)
	assert.Contains(t, h.Results[0].Error, "panicked")
}

func TestRunJob_SkipsOverlappingRun(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "slow", schedule: "@every 1h", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("slow"))
	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)

	// second trigger while the first is blocked
	s.runJob(job)
	assert.Equal(t, int32(1), job.calls.Load())

	close(job.block)
	waitRuns(t, s, "slow", 1)
}

func TestScheduler_CronFires(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "tick", schedule: "* * * * * *"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return job.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestStop_CancelsRetryWait(t *testing.T) {
	s := New(logger.Nop(), WithRetry(5, time.Hour))
	require.NoError(t, s.AddJob(&fakeJob{name: "broken", schedule: "@every 1h", failures: 100}))
	s.Start()
	require.NoError(t, s.RunJob("broken"))

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the retry wait")
	}
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.SuccessRate())
	assert.Empty(t, h.Latest(5))

	for i := 0; i < 150; i++ {
		h.Record(JobResult{Success: i%2 == 0, Affected: 1})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.Latest(10), 10)
	assert.Equal(t, 50, h.Failures())
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-9)
	assert.Equal(t, 50, h.Affected(), "failed runs change nothing")
}

func TestJobHistory_StatsTrackLastOutcomes(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	h := &JobHistory{}
	h.Record(JobResult{StartTime: at, Success: true, Affected: 3})
	h.Record(JobResult{StartTime: at.Add(time.Minute), Error: "broker down"})
	h.Record(JobResult{StartTime: at.Add(2 * time.Minute), Error: "timeout"})

	stats := h.Stats("order_sweep", "*/30 * * * * *")
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 2, stats.FailureCount)
	assert.Equal(t, 3, stats.TotalAffected)
	require.NotNil(t, stats.LastSuccess)
	assert.Equal(t, at, *stats.LastSuccess, "last success survives later failures")
	require.NotNil(t, stats.LastFailure)
	assert.Equal(t, at.Add(2*time.Minute), *stats.LastFailure)
	assert.Equal(t, "timeout", stats.LastError)
	require.NotNil(t, stats.LastRun)
	assert.Equal(t, at.Add(2*time.Minute), *stats.LastRun)
}
