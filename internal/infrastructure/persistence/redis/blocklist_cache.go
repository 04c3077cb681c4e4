package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// BlocklistCache is a read-through cache over matching.BlocklistRepository.
// A run asks for the blocklists of the whole cohort at once, so the
// cache works in the same batched shape: one MGET for the cohort,
// one query to the store for the misses, one pipelined write-back.
type BlocklistCache struct {
	repo   matching.BlocklistRepository
	cache  *Cache
	logger *slog.Logger
}

// NewBlocklistCache creates a caching decorator over a repository.
func NewBlocklistCache(repo matching.BlocklistRepository, cache *Cache, logger *slog.Logger) *BlocklistCache {
	return &BlocklistCache{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// blocklistKey builds the cache key for a candidate's blocklist.
func blocklistKey(id shared.CandidateID) string {
	return PrefixBlocklist + id.String()
}

// GetBlocklists returns blocklists for the cohort, serving hits from
// cache and loading only the misses from the store. Cache failures
// degrade to a full store load.
func (c *BlocklistCache) GetBlocklists(ctx context.Context, ids []shared.CandidateID) (map[shared.CandidateID][]shared.CandidateID, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = blocklistKey(id)
	}

	cached, err := c.cache.MGet(ctx, keys...)
	if err != nil {
		c.logger.Warn("blocklist cache read failed, loading from store", "error", err)
		return c.repo.GetBlocklists(ctx, ids)
	}

	result := make(map[shared.CandidateID][]shared.CandidateID, len(ids))
	var misses []shared.CandidateID

	for i, id := range ids {
		raw, ok := cached[keys[i]]
		if !ok {
			misses = append(misses, id)
			continue
		}

		var blocked []shared.CandidateID
		if err := json.Unmarshal([]byte(raw), &blocked); err != nil {
			misses = append(misses, id)
			continue
		}
		if len(blocked) > 0 {
			result[id] = blocked
		}
	}

	if len(misses) == 0 {
		return result, nil
	}

	loaded, err := c.repo.GetBlocklists(ctx, misses)
	if err != nil {
		return nil, err
	}

	// Empty blocklists are cached too, otherwise candidates who
	// block nobody would miss on every run.
	writeBack := make(map[string]interface{}, len(misses))
	for _, id := range misses {
		blocked := loaded[id]
		if len(blocked) > 0 {
			result[id] = blocked
		}
		writeBack[blocklistKey(id)] = blocked
	}

	if err := c.cache.MSet(ctx, writeBack, TTLBlocklist); err != nil {
		c.logger.Warn("blocklist cache write failed", "error", err)
	}

	return result, nil
}

// Invalidate drops a candidate's cached blocklist after a change.
func (c *BlocklistCache) Invalidate(ctx context.Context, id shared.CandidateID) error {
	return c.cache.Delete(ctx, blocklistKey(id))
}
