// Package postgres implements the PostgreSQL persistence layer for Dorm Match Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/experiment"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPERIMENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ExperimentStore implements experiment.Store for PostgreSQL.
type ExperimentStore struct {
	conn *Connection
}

// NewExperimentStore creates a new ExperimentStore.
func NewExperimentStore(conn *Connection) *ExperimentStore {
	return &ExperimentStore{conn: conn}
}

// variantRow is the JSONB shape of a variant in the experiments table.
type variantRow struct {
	Name          string             `json:"name"`
	TrafficWeight int                `json:"traffic_weight"`
	Weights       matching.WeightSet `json:"weights"`
}

// ActiveExperiments returns experiments participating in runs.
// Invalid definitions are skipped, not fatal: one broken experiment
// must not stop a matching run.
func (s *ExperimentStore) ActiveExperiments(ctx context.Context) ([]experiment.Experiment, error) {
	query := `
		SELECT id, name, method, variants
		FROM experiments
		WHERE active
		ORDER BY id
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load experiments: %w", err)
	}
	defer rows.Close()

	var experiments []experiment.Experiment
	for rows.Next() {
		var (
			exp          experiment.Experiment
			method       string
			variantsJSON []byte
		)
		if err := rows.Scan(&exp.ID, &exp.Name, &method, &variantsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan experiment row: %w", err)
		}

		var variants []variantRow
		if err := json.Unmarshal(variantsJSON, &variants); err != nil {
			continue
		}

		exp.Method = experiment.AssignmentMethod(method)
		exp.Active = true
		exp.Variants = make([]experiment.Variant, len(variants))
		for i, v := range variants {
			exp.Variants[i] = experiment.Variant{
				Name:          v.Name,
				TrafficWeight: v.TrafficWeight,
				Weights:       v.Weights,
			}
		}

		if exp.Validate() != nil {
			continue
		}
		experiments = append(experiments, exp)
	}

	return experiments, rows.Err()
}

// GetAssignment returns a stored variant assignment.
func (s *ExperimentStore) GetAssignment(ctx context.Context, candidateID shared.CandidateID, experimentID string) (*experiment.Assignment, error) {
	query := `
		SELECT candidate_id, experiment_id, variant, method, assigned_at
		FROM experiment_assignments
		WHERE candidate_id = $1 AND experiment_id = $2
	`

	var (
		assignment experiment.Assignment
		id         string
		method     string
	)

	err := s.conn.QueryRow(ctx, query, candidateID.String(), experimentID).Scan(
		&id, &assignment.ExperimentID, &assignment.Variant, &method, &assignment.AssignedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	assignment.CandidateID = shared.CandidateID(id)
	assignment.Method = experiment.AssignmentMethod(method)
	return &assignment, nil
}

// SaveAssignment stores a new assignment. A concurrent run may have
// assigned the same candidate already; the first write wins.
func (s *ExperimentStore) SaveAssignment(ctx context.Context, assignment *experiment.Assignment) error {
	query := `
		INSERT INTO experiment_assignments (candidate_id, experiment_id, variant, method, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (candidate_id, experiment_id) DO NOTHING
	`

	_, err := s.conn.Exec(ctx, query,
		assignment.CandidateID.String(),
		assignment.ExperimentID,
		assignment.Variant,
		string(assignment.Method),
		assignment.AssignedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}

	return nil
}

// IncrementVariantUsage atomically bumps the per-variant counter.
func (s *ExperimentStore) IncrementVariantUsage(ctx context.Context, experimentID, variant string) error {
	query := `
		INSERT INTO experiment_variant_usage (experiment_id, variant, assigned_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (experiment_id, variant) DO UPDATE
		SET assigned_count = experiment_variant_usage.assigned_count + 1
	`

	if _, err := s.conn.Exec(ctx, query, experimentID, variant); err != nil {
		return fmt.Errorf("failed to increment variant usage: %w", err)
	}
	return nil
}
