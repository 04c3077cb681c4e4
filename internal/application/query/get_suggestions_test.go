package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

const (
	viewerID = shared.CandidateID("11111111-1111-1111-1111-111111111111")
	otherID  = shared.CandidateID("22222222-2222-2222-2222-222222222222")
	runID    = shared.RunID("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
)

type fakeReadRepo struct {
	suggestions []*matching.MatchSuggestion
	summary     *matching.RunSummary
	listErr     error
}

func (r *fakeReadRepo) SaveMatchRun(ctx context.Context, run *matching.RunSummary) error { return nil }

func (r *fakeReadRepo) GetRunSummary(ctx context.Context, id shared.RunID) (*matching.RunSummary, error) {
	if r.summary != nil && r.summary.RunID == id {
		return r.summary, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeReadRepo) SaveMatches(ctx context.Context, records []*matching.MatchRecord) error {
	return nil
}

func (r *fakeReadRepo) CreateSuggestions(ctx context.Context, suggestions []*matching.MatchSuggestion) error {
	return nil
}

func (r *fakeReadRepo) UpdateSuggestion(ctx context.Context, suggestion *matching.MatchSuggestion) error {
	return nil
}

func (r *fakeReadRepo) GetSuggestion(ctx context.Context, id string) (*matching.MatchSuggestion, error) {
	for _, s := range r.suggestions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrSuggestionNotFound
}

func (r *fakeReadRepo) ListSuggestionsForCandidate(ctx context.Context, id shared.CandidateID) ([]*matching.MatchSuggestion, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*matching.MatchSuggestion
	for _, s := range r.suggestions {
		if s.InvolvesCandidate(id) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeReadRepo) ListOpenExpired(ctx context.Context, now time.Time, limit int) ([]*matching.MatchSuggestion, error) {
	return nil, nil
}

func suggestionWithIndex(t *testing.T, id string, fit shared.FitIndex, ttl time.Duration) *matching.MatchSuggestion {
	t.Helper()
	s, err := matching.NewMatchSuggestion(matching.NewSuggestionParams{
		ID:        id,
		RunID:     runID,
		Kind:      matching.MatchKindPair,
		MemberIDs: []shared.CandidateID{viewerID, otherID},
		FitIndex:  fit,
		TTL:       ttl,
	})
	require.NoError(t, err)
	return s
}

func TestGetSuggestions_SortedByFitIndex(t *testing.T) {
	repo := &fakeReadRepo{suggestions: []*matching.MatchSuggestion{
		suggestionWithIndex(t, "low", 45, time.Hour),
		suggestionWithIndex(t, "high", 88, time.Hour),
		suggestionWithIndex(t, "mid", 66, time.Hour),
	}}
	h := NewGetSuggestionsHandler(repo)

	result, err := h.Handle(context.Background(), GetSuggestionsQuery{CandidateID: viewerID})
	require.NoError(t, err)

	require.Len(t, result.Suggestions, 3)
	assert.Equal(t, "high", result.Suggestions[0].SuggestionID)
	assert.Equal(t, "mid", result.Suggestions[1].SuggestionID)
	assert.Equal(t, "low", result.Suggestions[2].SuggestionID)
	assert.Equal(t, 3, result.OpenCount)

	top := result.Suggestions[0]
	assert.Equal(t, shared.MatchQualityExcellent, top.Quality)
	assert.Equal(t, []shared.CandidateID{otherID}, top.Others)
	assert.False(t, top.HasResponded)
}

func TestGetSuggestions_ExpiredShownAsExpiredWithoutWrite(t *testing.T) {
	stale := suggestionWithIndex(t, "stale", 70, time.Nanosecond)
	repo := &fakeReadRepo{suggestions: []*matching.MatchSuggestion{stale}}
	h := NewGetSuggestionsHandler(repo)
	h.now = func() time.Time { return stale.ExpiresAt.Add(time.Minute) }

	result, err := h.Handle(context.Background(), GetSuggestionsQuery{CandidateID: viewerID, IncludeClosed: true})
	require.NoError(t, err)

	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, matching.SuggestionStatusExpired, result.Suggestions[0].Status)
	assert.Zero(t, result.OpenCount)

	// The stored aggregate is untouched: queries never write.
	assert.Equal(t, matching.SuggestionStatusPending, stale.Status)
}

func TestGetSuggestions_ClosedHiddenByDefault(t *testing.T) {
	declined := suggestionWithIndex(t, "declined", 50, time.Hour)
	require.NoError(t, declined.Decline(viewerID))
	open := suggestionWithIndex(t, "open", 60, time.Hour)

	repo := &fakeReadRepo{suggestions: []*matching.MatchSuggestion{declined, open}}
	h := NewGetSuggestionsHandler(repo)

	result, err := h.Handle(context.Background(), GetSuggestionsQuery{CandidateID: viewerID})
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, "open", result.Suggestions[0].SuggestionID)

	result, err = h.Handle(context.Background(), GetSuggestionsQuery{CandidateID: viewerID, IncludeClosed: true})
	require.NoError(t, err)
	assert.Len(t, result.Suggestions, 2)
	assert.Equal(t, 1, result.OpenCount)
}

func TestGetSuggestions_HasResponded(t *testing.T) {
	s := suggestionWithIndex(t, "sug", 70, time.Hour)
	require.NoError(t, s.Accept(viewerID, time.Now().UTC()))

	repo := &fakeReadRepo{suggestions: []*matching.MatchSuggestion{s}}
	h := NewGetSuggestionsHandler(repo)

	result, err := h.Handle(context.Background(), GetSuggestionsQuery{CandidateID: viewerID})
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 1)
	assert.True(t, result.Suggestions[0].HasResponded)
}

func TestGetSuggestions_InvalidCandidateID(t *testing.T) {
	h := NewGetSuggestionsHandler(&fakeReadRepo{})

	_, err := h.Handle(context.Background(), GetSuggestionsQuery{CandidateID: "nope"})
	assert.ErrorIs(t, err, shared.ErrInvalidCandidateID)
}

func TestGetSuggestions_RepoFailure(t *testing.T) {
	h := NewGetSuggestionsHandler(&fakeReadRepo{listErr: errors.New("db down")})

	_, err := h.Handle(context.Background(), GetSuggestionsQuery{CandidateID: viewerID})
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestGetRunSummary(t *testing.T) {
	started := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	repo := &fakeReadRepo{summary: &matching.RunSummary{
		RunID:             runID,
		Mode:              matching.RunModeSuggestions,
		CohortDescription: "city=almaty limit=500",
		RecordCount:       42,
		StartedAt:         started,
		CompletedAt:       started.Add(90 * time.Second),
	}}
	h := NewGetRunSummaryHandler(repo)

	view, err := h.Handle(context.Background(), GetRunSummaryQuery{RunID: runID})
	require.NoError(t, err)

	assert.Equal(t, runID, view.RunID)
	assert.Equal(t, matching.RunModeSuggestions, view.Mode)
	assert.Equal(t, 42, view.RecordCount)
	assert.Equal(t, 90*time.Second, view.Duration)
}

func TestGetRunSummary_InvalidID(t *testing.T) {
	h := NewGetRunSummaryHandler(&fakeReadRepo{})

	_, err := h.Handle(context.Background(), GetRunSummaryQuery{RunID: "not-a-uuid"})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestGetRunSummary_NotFound(t *testing.T) {
	h := NewGetRunSummaryHandler(&fakeReadRepo{})

	_, err := h.Handle(context.Background(), GetRunSummaryQuery{RunID: runID})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
