// Package postgres implements the PostgreSQL persistence layer for Dorm Match Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANDIDATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CandidateRepository implements profile.CandidateRepository for PostgreSQL.
type CandidateRepository struct {
	conn *Connection
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(conn *Connection) *CandidateRepository {
	return &CandidateRepository{conn: conn}
}

const candidateColumns = `candidate_id, answers, vector, institution_id, degree_level,
	   programme_id, faculty, graduation_year, city, open_to_cross_city`

// LoadCandidates returns all candidates matching the cohort filter
// in a single query.
func (r *CandidateRepository) LoadCandidates(ctx context.Context, filter profile.CohortFilter) ([]profile.Candidate, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.InstitutionID != "" {
		args = append(args, filter.InstitutionID)
		conditions = append(conditions, fmt.Sprintf("institution_id = $%d", len(args)))
	}
	if !filter.City.IsEmpty() {
		args = append(args, filter.City.String())
		conditions = append(conditions, fmt.Sprintf("city = $%d", len(args)))
	}
	if filter.DegreeLevel != "" {
		args = append(args, filter.DegreeLevel)
		conditions = append(conditions, fmt.Sprintf("degree_level = $%d", len(args)))
	}

	query := "SELECT " + candidateColumns + " FROM candidates"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, candidate_id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	defer rows.Close()

	var candidates []profile.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *candidate)
	}

	return candidates, rows.Err()
}

// GetByCandidateID returns a single candidate.
func (r *CandidateRepository) GetByCandidateID(ctx context.Context, id shared.CandidateID) (*profile.Candidate, error) {
	query := "SELECT " + candidateColumns + " FROM candidates WHERE candidate_id = $1"

	row := r.conn.QueryRow(ctx, query, id.String())
	candidate, err := scanCandidate(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCandidateNotFound
		}
		return nil, err
	}

	return candidate, nil
}

// Upsert stores a candidate questionnaire snapshot.
func (r *CandidateRepository) Upsert(ctx context.Context, c *profile.Candidate) error {
	query := `
		INSERT INTO candidates (
			candidate_id, answers, vector, institution_id, degree_level,
			programme_id, faculty, graduation_year, city, open_to_cross_city, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (candidate_id) DO UPDATE SET
			answers = EXCLUDED.answers,
			vector = EXCLUDED.vector,
			institution_id = EXCLUDED.institution_id,
			degree_level = EXCLUDED.degree_level,
			programme_id = EXCLUDED.programme_id,
			faculty = EXCLUDED.faculty,
			graduation_year = EXCLUDED.graduation_year,
			city = EXCLUDED.city,
			open_to_cross_city = EXCLUDED.open_to_cross_city,
			updated_at = NOW()
	`

	answersJSON, err := json.Marshal(c.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		c.ID.String(),
		answersJSON,
		vectorToStorage(c.Vector),
		c.Academic.InstitutionID,
		c.Academic.DegreeLevel,
		c.Academic.ProgrammeID,
		c.Academic.Faculty,
		c.Academic.GraduationYear,
		c.Location.City.String(),
		c.Location.OpenToCrossCity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert candidate: %w", err)
	}

	return nil
}

// scanCandidate reads a candidate row.
func scanCandidate(row pgx.Row) (*profile.Candidate, error) {
	var (
		id             string
		answersJSON    []byte
		vector         []float32
		institutionID  *string
		degreeLevel    *string
		programmeID    *string
		faculty        *string
		graduationYear int
		city           *string
		crossCity      bool
	)

	err := row.Scan(
		&id, &answersJSON, &vector, &institutionID, &degreeLevel,
		&programmeID, &faculty, &graduationYear, &city, &crossCity,
	)
	if err != nil {
		return nil, err
	}

	var answers profile.RawAnswers
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &answers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answers for %s: %w", id, err)
		}
	}

	return &profile.Candidate{
		ID:      shared.CandidateID(id),
		Answers: answers,
		Vector:  vectorFromStorage(vector),
		Academic: profile.Academic{
			InstitutionID:  derefString(institutionID),
			DegreeLevel:    derefString(degreeLevel),
			ProgrammeID:    derefString(programmeID),
			Faculty:        derefString(faculty),
			GraduationYear: graduationYear,
		},
		Location: profile.Location{
			City:            shared.NewCity(derefString(city)),
			OpenToCrossCity: crossCity,
		},
	}, nil
}

// vectorToStorage converts a feature vector for the REAL[] column.
func vectorToStorage(vector []float64) []float32 {
	if len(vector) == 0 {
		return nil
	}
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}

// vectorFromStorage converts a stored vector back to float64.
func vectorFromStorage(vector []float32) []float64 {
	if len(vector) == 0 {
		return nil
	}
	out := make([]float64, len(vector))
	for i, v := range vector {
		out[i] = float64(v)
	}
	return out
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
