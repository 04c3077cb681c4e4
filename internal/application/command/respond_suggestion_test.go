package command

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
	memberA = shared.CandidateID("11111111-1111-1111-1111-111111111111")
	memberB = shared.CandidateID("22222222-2222-2222-2222-222222222222")
	memberC = shared.CandidateID("33333333-3333-3333-3333-333333333333")
)

func seedSuggestion(t *testing.T, repo *fakeMatchRepo, ttl time.Duration) *matching.MatchSuggestion {
	t.Helper()
	s, err := matching.NewMatchSuggestion(matching.NewSuggestionParams{
		ID:        "sug-1",
		RunID:     "run-1",
		Kind:      matching.MatchKindPair,
		MemberIDs: []shared.CandidateID{memberA, memberB},
		FitIndex:  75,
		TTL:       ttl,
	})
	require.NoError(t, err)
	repo.suggestions[s.ID] = s
	return s
}

func TestRespondSuggestion_AcceptThenConfirm(t *testing.T) {
	repo := newFakeMatchRepo()
	seedSuggestion(t, repo, time.Hour)
	h := NewRespondSuggestionHandler(repo, discardLogger())
	ctx := context.Background()

	result, err := h.Handle(ctx, RespondSuggestionCommand{
		SuggestionID: "sug-1", CandidateID: memberA, Action: ActionAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, matching.SuggestionStatusAccepted, result.Status)
	assert.False(t, result.Confirmed)

	result, err = h.Handle(ctx, RespondSuggestionCommand{
		SuggestionID: "sug-1", CandidateID: memberB, Action: ActionAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, matching.SuggestionStatusConfirmed, result.Status)
	assert.True(t, result.Confirmed)
	assert.ElementsMatch(t, []shared.CandidateID{memberA, memberB}, result.AcceptedBy)
}

func TestRespondSuggestion_Decline(t *testing.T) {
	repo := newFakeMatchRepo()
	seedSuggestion(t, repo, time.Hour)
	h := NewRespondSuggestionHandler(repo, discardLogger())

	result, err := h.Handle(context.Background(), RespondSuggestionCommand{
		SuggestionID: "sug-1", CandidateID: memberB, Action: ActionDecline,
	})
	require.NoError(t, err)
	assert.Equal(t, matching.SuggestionStatusDeclined, result.Status)
}

func TestRespondSuggestion_NotFound(t *testing.T) {
	h := NewRespondSuggestionHandler(newFakeMatchRepo(), discardLogger())

	_, err := h.Handle(context.Background(), RespondSuggestionCommand{
		SuggestionID: "missing", CandidateID: memberA, Action: ActionAccept,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRespondSuggestion_NonMember(t *testing.T) {
	repo := newFakeMatchRepo()
	seedSuggestion(t, repo, time.Hour)
	h := NewRespondSuggestionHandler(repo, discardLogger())

	_, err := h.Handle(context.Background(), RespondSuggestionCommand{
		SuggestionID: "sug-1", CandidateID: memberC, Action: ActionAccept,
	})
	assert.ErrorIs(t, err, shared.ErrNotSuggestionMember)
}

func TestRespondSuggestion_LazyExpiry(t *testing.T) {
	repo := newFakeMatchRepo()
	s := seedSuggestion(t, repo, time.Hour)
	h := NewRespondSuggestionHandler(repo, discardLogger())
	h.now = func() time.Time { return s.ExpiresAt.Add(time.Minute) }

	_, err := h.Handle(context.Background(), RespondSuggestionCommand{
		SuggestionID: "sug-1", CandidateID: memberA, Action: ActionAccept,
	})
	assert.ErrorIs(t, err, shared.ErrExpired)

	// The expiry was persisted, not just computed.
	assert.Equal(t, matching.SuggestionStatusExpired, repo.suggestions["sug-1"].Status)
	assert.Equal(t, 1, repo.updateCalls)
}

func TestRespondSuggestion_Validation(t *testing.T) {
	h := NewRespondSuggestionHandler(newFakeMatchRepo(), discardLogger())
	ctx := context.Background()

	_, err := h.Handle(ctx, RespondSuggestionCommand{CandidateID: memberA, Action: ActionAccept})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = h.Handle(ctx, RespondSuggestionCommand{SuggestionID: "sug-1", CandidateID: "not-a-uuid", Action: ActionAccept})
	assert.ErrorIs(t, err, shared.ErrInvalidCandidateID)

	_, err = h.Handle(ctx, RespondSuggestionCommand{SuggestionID: "sug-1", CandidateID: memberA, Action: "maybe"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRespondSuggestion_UpdateFailure(t *testing.T) {
	repo := newFakeMatchRepo()
	seedSuggestion(t, repo, time.Hour)
	repo.updateErr = errors.New("write failed")
	h := NewRespondSuggestionHandler(repo, discardLogger())

	_, err := h.Handle(context.Background(), RespondSuggestionCommand{
		SuggestionID: "sug-1", CandidateID: memberA, Action: ActionAccept,
	})
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestExpireSuggestions_Sweep(t *testing.T) {
	repo := newFakeMatchRepo()
	open := seedSuggestion(t, repo, time.Hour)
	repo.openExpired = []*matching.MatchSuggestion{open}

	h := NewExpireSuggestionsHandler(repo, discardLogger())
	result, err := h.Handle(context.Background(), ExpireSuggestionsCommand{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Expired)
	assert.Zero(t, result.Failed)
	assert.Equal(t, matching.SuggestionStatusExpired, open.Status)
}

func TestExpireSuggestions_SkipsFinalized(t *testing.T) {
	repo := newFakeMatchRepo()
	confirmed := seedSuggestion(t, repo, time.Hour)
	confirmed.Status = matching.SuggestionStatusConfirmed
	repo.openExpired = []*matching.MatchSuggestion{confirmed}

	h := NewExpireSuggestionsHandler(repo, discardLogger())
	result, err := h.Handle(context.Background(), ExpireSuggestionsCommand{})
	require.NoError(t, err)

	// Race with a member response: the sweep leaves it alone.
	assert.Zero(t, result.Expired)
	assert.Equal(t, matching.SuggestionStatusConfirmed, confirmed.Status)
}

func TestExpireSuggestions_CountsFailures(t *testing.T) {
	repo := newFakeMatchRepo()
	open := seedSuggestion(t, repo, time.Hour)
	repo.openExpired = []*matching.MatchSuggestion{open}
	repo.updateErr = errors.New("write failed")

	h := NewExpireSuggestionsHandler(repo, discardLogger())
	result, err := h.Handle(context.Background(), ExpireSuggestionsCommand{})
	require.NoError(t, err)

	assert.Zero(t, result.Expired)
	assert.Equal(t, 1, result.Failed)
}

func TestExpireSuggestions_ListFailure(t *testing.T) {
	repo := newFakeMatchRepo()
	repo.listExpireErr = errors.New("query failed")

	h := NewExpireSuggestionsHandler(repo, discardLogger())
	_, err := h.Handle(context.Background(), ExpireSuggestionsCommand{})
	assert.ErrorIs(t, err, shared.ErrExternalService)
}
