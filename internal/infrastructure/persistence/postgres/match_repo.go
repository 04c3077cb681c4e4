// Package postgres implements the PostgreSQL persistence layer for Dorm Match Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MatchRepository implements matching.MatchRepository for PostgreSQL.
type MatchRepository struct {
	conn *Connection
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Run Summaries
// ─────────────────────────────────────────────────────────────────────────────

// SaveMatchRun stores a run summary with its funnel diagnostics.
func (r *MatchRepository) SaveMatchRun(ctx context.Context, run *matching.RunSummary) error {
	query := `
		INSERT INTO match_runs (run_id, mode, cohort, record_count, diagnostics, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	diagJSON, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		run.RunID.String(),
		string(run.Mode),
		run.CohortDescription,
		run.RecordCount,
		diagJSON,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save match run: %w", err)
	}

	return nil
}

// GetRunSummary returns a run summary by id.
func (r *MatchRepository) GetRunSummary(ctx context.Context, runID shared.RunID) (*matching.RunSummary, error) {
	query := `
		SELECT run_id, mode, cohort, record_count, diagnostics, started_at, completed_at
		FROM match_runs
		WHERE run_id = $1
	`

	var (
		summary  matching.RunSummary
		id       string
		mode     string
		diagJSON []byte
	)

	err := r.conn.QueryRow(ctx, query, runID.String()).Scan(
		&id, &mode, &summary.CohortDescription, &summary.RecordCount,
		&diagJSON, &summary.StartedAt, &summary.CompletedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("matching", "GetRunSummary", shared.ErrNotFound, "run not found")
		}
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}

	summary.RunID = shared.RunID(id)
	summary.Mode = matching.RunMode(mode)
	if len(diagJSON) > 0 {
		if err := json.Unmarshal(diagJSON, &summary.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagnostics: %w", err)
		}
	}

	return &summary, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Match Records
// ─────────────────────────────────────────────────────────────────────────────

// SaveMatches stores bulk run output in one batch round trip.
func (r *MatchRepository) SaveMatches(ctx context.Context, records []*matching.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO match_records (
			id, run_id, kind, member_ids, fit_score, fit_index,
			section_scores, reasons, locked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, record := range records {
		scoresJSON, err := json.Marshal(record.SectionScores)
		if err != nil {
			return fmt.Errorf("failed to marshal section scores: %w", err)
		}

		batch.Queue(query,
			record.ID,
			record.RunID.String(),
			string(record.Kind),
			memberIDsToStorage(record.MemberIDs),
			record.FitScore.Float64(),
			int(record.FitIndex),
			scoresJSON,
			record.Reasons,
			record.Locked,
			record.CreatedAt,
		)
	}

	results := r.conn.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save match records: %w", err)
		}
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Suggestions
// ─────────────────────────────────────────────────────────────────────────────

const suggestionColumns = `id, run_id, kind, member_ids, fit_index, section_scores,
	   reasons, status, accepted_by, created_at, expires_at`

// CreateSuggestions stores new suggestions in one batch round trip.
func (r *MatchRepository) CreateSuggestions(ctx context.Context, suggestions []*matching.MatchSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	query := `
		INSERT INTO match_suggestions (
			id, run_id, kind, member_ids, fit_index, section_scores,
			reasons, status, accepted_by, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for _, s := range suggestions {
		scoresJSON, err := json.Marshal(s.SectionScores)
		if err != nil {
			return fmt.Errorf("failed to marshal section scores: %w", err)
		}

		batch.Queue(query,
			s.ID,
			s.RunID.String(),
			string(s.Kind),
			memberIDsToStorage(s.MemberIDs),
			int(s.FitIndex),
			scoresJSON,
			s.Reasons,
			string(s.Status),
			memberIDsToStorage(s.AcceptedBy),
			s.CreatedAt,
			s.ExpiresAt,
		)
	}

	results := r.conn.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range suggestions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to create suggestions: %w", err)
		}
	}

	return nil
}

// UpdateSuggestion persists a status change.
func (r *MatchRepository) UpdateSuggestion(ctx context.Context, s *matching.MatchSuggestion) error {
	query := `
		UPDATE match_suggestions
		SET status = $2, accepted_by = $3
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query, s.ID, string(s.Status), memberIDsToStorage(s.AcceptedBy))
	if err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSuggestionNotFound
	}

	return nil
}

// GetSuggestion returns a suggestion by id.
func (r *MatchRepository) GetSuggestion(ctx context.Context, id string) (*matching.MatchSuggestion, error) {
	query := "SELECT " + suggestionColumns + " FROM match_suggestions WHERE id = $1"

	suggestion, err := scanSuggestion(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSuggestionNotFound
		}
		return nil, err
	}

	return suggestion, nil
}

// ListSuggestionsForCandidate returns every suggestion the candidate
// is a member of, newest first.
func (r *MatchRepository) ListSuggestionsForCandidate(ctx context.Context, id shared.CandidateID) ([]*matching.MatchSuggestion, error) {
	query := "SELECT " + suggestionColumns + ` FROM match_suggestions
		WHERE member_ids @> ARRAY[$1]::uuid[]
		ORDER BY created_at DESC`

	rows, err := r.conn.Query(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	return collectSuggestions(rows)
}

// ListOpenExpired returns open suggestions past their deadline.
func (r *MatchRepository) ListOpenExpired(ctx context.Context, now time.Time, limit int) ([]*matching.MatchSuggestion, error) {
	query := "SELECT " + suggestionColumns + ` FROM match_suggestions
		WHERE status IN ('pending', 'accepted') AND expires_at < $1
		ORDER BY expires_at`

	args := []interface{}{now}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired suggestions: %w", err)
	}
	defer rows.Close()

	return collectSuggestions(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func collectSuggestions(rows pgx.Rows) ([]*matching.MatchSuggestion, error) {
	var suggestions []*matching.MatchSuggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, rows.Err()
}

func scanSuggestion(row pgx.Row) (*matching.MatchSuggestion, error) {
	var (
		s          matching.MatchSuggestion
		runID      string
		kind       string
		memberIDs  []string
		fitIndex   int
		scoresJSON []byte
		status     string
		acceptedBy []string
	)

	err := row.Scan(
		&s.ID, &runID, &kind, &memberIDs, &fitIndex, &scoresJSON,
		&s.Reasons, &status, &acceptedBy, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	s.RunID = shared.RunID(runID)
	s.Kind = matching.MatchKind(kind)
	s.MemberIDs = memberIDsFromStorage(memberIDs)
	s.FitIndex = shared.FitIndex(fitIndex)
	s.Status = matching.SuggestionStatus(status)
	s.AcceptedBy = memberIDsFromStorage(acceptedBy)

	if len(scoresJSON) > 0 {
		if err := json.Unmarshal(scoresJSON, &s.SectionScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal section scores: %w", err)
		}
	}

	return &s, nil
}

func memberIDsToStorage(ids []shared.CandidateID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func memberIDsFromStorage(ids []string) []shared.CandidateID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]shared.CandidateID, len(ids))
	for i, id := range ids {
		out[i] = shared.CandidateID(id)
	}
	return out
}
