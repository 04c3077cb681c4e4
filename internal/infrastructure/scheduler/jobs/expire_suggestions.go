package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE SUGGESTIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireSuggestionsJob sweeps open suggestions past their deadline.
// Responses already mark expiry lazily; the sweep covers suggestions
// nobody touched.
type ExpireSuggestionsJob struct {
	handler *command.ExpireSuggestionsHandler
	logger  *slog.Logger
	config  ExpireSuggestionsConfig
}

// ExpireSuggestionsConfig contains configuration for the sweep.
type ExpireSuggestionsConfig struct {
	// BatchLimit is the maximum suggestions processed per sweep.
	BatchLimit int

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultExpireSuggestionsConfig returns sensible defaults.
func DefaultExpireSuggestionsConfig() ExpireSuggestionsConfig {
	return ExpireSuggestionsConfig{
		BatchLimit: 500,
		Timeout:    time.Minute,
	}
}

// NewExpireSuggestionsJob creates the sweep job.
func NewExpireSuggestionsJob(
	handler *command.ExpireSuggestionsHandler,
	logger *slog.Logger,
	config ExpireSuggestionsConfig,
) *ExpireSuggestionsJob {
	return &ExpireSuggestionsJob{
		handler: handler,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *ExpireSuggestionsJob) Name() string {
	return "expire_suggestions"
}

// Description returns a human-readable description.
func (j *ExpireSuggestionsJob) Description() string {
	return "Marks open suggestions past their deadline as expired"
}

// Run executes the sweep.
func (j *ExpireSuggestionsJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	result, err := j.handler.Handle(ctx, command.ExpireSuggestionsCommand{
		Limit: j.config.BatchLimit,
	})
	if err != nil {
		return fmt.Errorf("expiry sweep failed: %w", err)
	}

	if result.Failed > 0 {
		j.logger.Warn("expiry sweep finished with failures",
			"expired", result.Expired, "failed", result.Failed)
	}

	return nil
}
