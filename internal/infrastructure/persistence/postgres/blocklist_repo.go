// Package postgres implements the PostgreSQL persistence layer for Dorm Match Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BLOCKLIST REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BlocklistRepository implements matching.BlocklistRepository for PostgreSQL.
type BlocklistRepository struct {
	conn *Connection
}

// NewBlocklistRepository creates a new BlocklistRepository.
func NewBlocklistRepository(conn *Connection) *BlocklistRepository {
	return &BlocklistRepository{conn: conn}
}

// GetBlocklists returns the blocklists of every candidate in the
// cohort in a single query.
func (r *BlocklistRepository) GetBlocklists(ctx context.Context, ids []shared.CandidateID) (map[shared.CandidateID][]shared.CandidateID, error) {
	if len(ids) == 0 {
		return map[shared.CandidateID][]shared.CandidateID{}, nil
	}

	query := `
		SELECT owner_id, blocked_id
		FROM blocklists
		WHERE owner_id = ANY($1::uuid[])
	`

	rows, err := r.conn.Query(ctx, query, memberIDsToStorage(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load blocklists: %w", err)
	}
	defer rows.Close()

	blocklists := make(map[shared.CandidateID][]shared.CandidateID)
	for rows.Next() {
		var owner, blocked string
		if err := rows.Scan(&owner, &blocked); err != nil {
			return nil, fmt.Errorf("failed to scan blocklist row: %w", err)
		}
		ownerID := shared.CandidateID(owner)
		blocklists[ownerID] = append(blocklists[ownerID], shared.CandidateID(blocked))
	}

	return blocklists, rows.Err()
}

// Block records that owner does not want to be matched with blocked.
func (r *BlocklistRepository) Block(ctx context.Context, owner, blocked shared.CandidateID) error {
	query := `
		INSERT INTO blocklists (owner_id, blocked_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_id, blocked_id) DO NOTHING
	`

	if _, err := r.conn.Exec(ctx, query, owner.String(), blocked.String()); err != nil {
		return fmt.Errorf("failed to add block: %w", err)
	}
	return nil
}

// Unblock removes a block.
func (r *BlocklistRepository) Unblock(ctx context.Context, owner, blocked shared.CandidateID) error {
	query := `DELETE FROM blocklists WHERE owner_id = $1 AND blocked_id = $2`

	if _, err := r.conn.Exec(ctx, query, owner.String(), blocked.String()); err != nil {
		return fmt.Errorf("failed to remove block: %w", err)
	}
	return nil
}
