package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/experiment"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// AssignmentCache is a read-through cache over experiment.Store.
// Assignments are immutable once written, which makes them ideal
// cache material: a hit saves one Postgres round trip per candidate
// per experiment on every run. Cache failures fall through to the
// underlying store.
type AssignmentCache struct {
	store  experiment.Store
	cache  *Cache
	logger *slog.Logger
}

// NewAssignmentCache creates a caching decorator over a store.
func NewAssignmentCache(store experiment.Store, cache *Cache, logger *slog.Logger) *AssignmentCache {
	return &AssignmentCache{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// assignmentKey builds the cache key for a (candidate, experiment) pair.
func assignmentKey(candidateID shared.CandidateID, experimentID string) string {
	return fmt.Sprintf("%s%s:%s", PrefixAssignment, experimentID, candidateID.String())
}

// ActiveExperiments passes through to the store. Experiment
// definitions change at operator will and are read once per run,
// caching them would only add staleness.
func (c *AssignmentCache) ActiveExperiments(ctx context.Context) ([]experiment.Experiment, error) {
	return c.store.ActiveExperiments(ctx)
}

// GetAssignment returns a cached assignment or falls through to the store.
func (c *AssignmentCache) GetAssignment(ctx context.Context, candidateID shared.CandidateID, experimentID string) (*experiment.Assignment, error) {
	key := assignmentKey(candidateID, experimentID)

	var cached experiment.Assignment
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("assignment cache read failed", "key", key, "error", err)
	}

	assignment, err := c.store.GetAssignment(ctx, candidateID, experimentID)
	if err != nil {
		return nil, err
	}

	if cacheErr := c.cache.Set(ctx, key, assignment, TTLAssignment); cacheErr != nil {
		c.logger.Warn("assignment cache write failed", "key", key, "error", cacheErr)
	}

	return assignment, nil
}

// SaveAssignment writes through to the store and then to the cache.
func (c *AssignmentCache) SaveAssignment(ctx context.Context, assignment *experiment.Assignment) error {
	if err := c.store.SaveAssignment(ctx, assignment); err != nil {
		return err
	}

	key := assignmentKey(assignment.CandidateID, assignment.ExperimentID)
	if err := c.cache.Set(ctx, key, assignment, TTLAssignment); err != nil {
		c.logger.Warn("assignment cache write failed", "key", key, "error", err)
	}

	return nil
}

// IncrementVariantUsage passes through to the store.
func (c *AssignmentCache) IncrementVariantUsage(ctx context.Context, experimentID, variant string) error {
	return c.store.IncrementVariantUsage(ctx, experimentID, variant)
}
