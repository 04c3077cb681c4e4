package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func testScheduler() *Scheduler {
	return New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestDailySchedule_Next(t *testing.T) {
	s := NewDailySchedule(3, 30)

	before := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC), s.Next(before))

	after := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 30, 0, 0, time.UTC), s.Next(after))

	// Exactly at the slot rolls to the next day.
	exact := time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 30, 0, 0, time.UTC), s.Next(exact))
}

func TestDailySchedule_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("Asia/Almaty", 5*60*60)
	s := NewDailySchedule(3, 0)

	next := s.Next(time.Date(2026, 3, 10, 1, 0, 0, 0, loc))
	assert.Equal(t, loc, next.Location())
	assert.Equal(t, 3, next.Hour())
}

func TestDailySchedule_ClampsInvalidInput(t *testing.T) {
	s := NewDailySchedule(30, 90)
	assert.Equal(t, 0, s.Hour)
	assert.Equal(t, 0, s.Minute)
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(15 * time.Minute)
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(15*time.Minute), s.Next(now))
	assert.Equal(t, "@every 15m0s", s.String())
}

func TestScheduler_Register(t *testing.T) {
	s := testScheduler()
	job := &countingJob{name: "matching_run"}

	require.NoError(t, s.Register(job, NewDailySchedule(3, 0)))
	assert.ErrorIs(t, s.Register(job, NewDailySchedule(3, 0)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewDailySchedule(3, 0)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "other"}, nil), ErrNilSchedule)
}

func TestScheduler_RunNow(t *testing.T) {
	s := testScheduler()
	job := &countingJob{name: "matching_run"}
	require.NoError(t, s.Register(job, NewDailySchedule(3, 0)))

	require.NoError(t, s.RunNow("matching_run"))
	assert.ErrorIs(t, s.RunNow("missing"), ErrJobNotFound)

	// Wait for the async run to land in lastRuns.
	require.Eventually(t, func() bool {
		_, ok := s.LastResult("matching_run")
		return ok
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), job.runs.Load())
	result, _ := s.LastResult("matching_run")
	assert.True(t, result.Success)
}

func TestScheduler_RecordsFailures(t *testing.T) {
	s := testScheduler()
	job := &countingJob{name: "flaky", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.RunNow("flaky"))
	require.Eventually(t, func() bool {
		_, ok := s.LastResult("flaky")
		return ok
	}, time.Second, 10*time.Millisecond)

	result, _ := s.LastResult("flaky")
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

func TestScheduler_StartStop(t *testing.T) {
	s := testScheduler()
	require.NoError(t, s.Register(&countingJob{name: "noop"}, NewDailySchedule(3, 0)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := testScheduler()
	require.NoError(t, s.Register(&countingJob{name: "job"}, NewDailySchedule(3, 0)))

	require.NoError(t, s.DisableJob("job"))
	require.NoError(t, s.EnableJob("job"))
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)
}
