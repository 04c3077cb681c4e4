// Package jobs contains implementations of scheduled jobs for Dorm Match Hub:
// the nightly matching runs and the suggestion expiry sweep.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/application/command"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
	"github.com/dorm-hub/dorm-match-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN MATCHING JOB
// ══════════════════════════════════════════════════════════════════════════════

// RunMatchingJob executes a scheduled matching run. The run lock keeps
// two workers from matching the same cohort concurrently; losing the
// lock is a skip, not a failure.
type RunMatchingJob struct {
	handler *command.RunMatchingHandler
	lock    *redis.RunLock
	logger  *slog.Logger
	config  RunMatchingConfig
}

// RunMatchingConfig contains configuration for the scheduled run.
type RunMatchingConfig struct {
	// Cohort selects which candidates participate in the run.
	Cohort profile.CohortFilter

	// Mode is the run mode: pairs, groups or suggestions.
	Mode matching.RunMode

	// GroupSize is the target group size (groups mode).
	GroupSize int

	// TopN is the number of suggestions per candidate (suggestions mode).
	TopN int

	// ScoreThreshold is the minimum composite score for a pair.
	ScoreThreshold float64

	// AutoMatchThreshold is the fit index that auto-accepts a suggestion.
	AutoMatchThreshold int

	// SuggestionTTL is how long suggestions stay open.
	SuggestionTTL time.Duration

	// Workers is the scoring worker pool size.
	Workers int

	// Timeout is the maximum duration for the whole run.
	Timeout time.Duration
}

// DefaultRunMatchingConfig returns sensible defaults for the nightly run.
func DefaultRunMatchingConfig() RunMatchingConfig {
	return RunMatchingConfig{
		Mode:               matching.RunModeSuggestions,
		GroupSize:          3,
		TopN:               5,
		ScoreThreshold:     0.4,
		AutoMatchThreshold: 80,
		SuggestionTTL:      72 * time.Hour,
		Workers:            4,
		Timeout:            30 * time.Minute,
	}
}

// NewRunMatchingJob creates the scheduled matching job.
func NewRunMatchingJob(
	handler *command.RunMatchingHandler,
	lock *redis.RunLock,
	logger *slog.Logger,
	config RunMatchingConfig,
) *RunMatchingJob {
	return &RunMatchingJob{
		handler: handler,
		lock:    lock,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *RunMatchingJob) Name() string {
	return "run_matching_" + string(j.config.Mode)
}

// Description returns a human-readable description.
func (j *RunMatchingJob) Description() string {
	return fmt.Sprintf("Scheduled %s matching run", j.config.Mode)
}

// Run executes the matching run under the distributed lock.
func (j *RunMatchingJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	holder := jobHolder()
	if err := j.lock.Acquire(ctx, string(j.config.Mode), holder); err != nil {
		if errors.Is(err, redis.ErrRunInProgress) {
			j.logger.Info("matching run already in progress, skipping",
				"mode", string(j.config.Mode))
			return nil
		}
		// Redis being down should not stop the nightly run
		j.logger.Warn("run lock unavailable, proceeding without it", "error", err)
	} else {
		defer func() {
			if err := j.lock.Release(context.WithoutCancel(ctx), string(j.config.Mode)); err != nil {
				j.logger.Warn("failed to release run lock", "error", err)
			}
		}()
	}

	result, err := j.handler.Handle(ctx, j.buildCommand())
	if err != nil {
		return fmt.Errorf("matching run failed: %w", err)
	}

	j.logger.Info("scheduled matching run finished",
		"run_id", result.RunID.String(),
		"mode", string(result.Mode),
		"matches", len(result.Matches),
		"suggestions", len(result.Suggestions),
		"emptied_at", result.Diagnostics.EmptiedAtStage,
	)

	return nil
}

// buildCommand maps the job configuration onto the matching command.
func (j *RunMatchingJob) buildCommand() command.RunMatchingCommand {
	return command.RunMatchingCommand{
		Cohort:             j.config.Cohort,
		Mode:               j.config.Mode,
		GroupSize:          j.config.GroupSize,
		TopN:               j.config.TopN,
		ScoreThreshold:     j.config.ScoreThreshold,
		AutoMatchThreshold: shared.FitIndex(j.config.AutoMatchThreshold),
		SuggestionTTL:      j.config.SuggestionTTL,
		Workers:            j.config.Workers,
	}
}

// jobHolder identifies this worker instance in the run lock.
func jobHolder() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
