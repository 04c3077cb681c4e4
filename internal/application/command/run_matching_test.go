package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/experiment"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ──────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeCandidateRepo struct {
	candidates []profile.Candidate
	loadErr    error
	loadCalls  int
}

func (r *fakeCandidateRepo) LoadCandidates(ctx context.Context, filter profile.CohortFilter) ([]profile.Candidate, error) {
	r.loadCalls++
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.candidates, nil
}

func (r *fakeCandidateRepo) GetByCandidateID(ctx context.Context, id shared.CandidateID) (*profile.Candidate, error) {
	for i := range r.candidates {
		if r.candidates[i].ID == id {
			return &r.candidates[i], nil
		}
	}
	return nil, shared.ErrCandidateNotFound
}

type fakeMatchRepo struct {
	runs        map[shared.RunID]*matching.RunSummary
	records     []*matching.MatchRecord
	suggestions map[string]*matching.MatchSuggestion

	saveRunErr    error
	saveErr       error
	createErr     error
	updateErr     error
	updateCalls   int
	openExpired   []*matching.MatchSuggestion
	listExpireErr error
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{
		runs:        make(map[shared.RunID]*matching.RunSummary),
		suggestions: make(map[string]*matching.MatchSuggestion),
	}
}

func (r *fakeMatchRepo) SaveMatchRun(ctx context.Context, run *matching.RunSummary) error {
	if r.saveRunErr != nil {
		return r.saveRunErr
	}
	r.runs[run.RunID] = run
	return nil
}

func (r *fakeMatchRepo) GetRunSummary(ctx context.Context, runID shared.RunID) (*matching.RunSummary, error) {
	if run, ok := r.runs[runID]; ok {
		return run, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeMatchRepo) SaveMatches(ctx context.Context, records []*matching.MatchRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records = append(r.records, records...)
	return nil
}

func (r *fakeMatchRepo) CreateSuggestions(ctx context.Context, suggestions []*matching.MatchSuggestion) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, s := range suggestions {
		r.suggestions[s.ID] = s
	}
	return nil
}

func (r *fakeMatchRepo) UpdateSuggestion(ctx context.Context, suggestion *matching.MatchSuggestion) error {
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	r.suggestions[suggestion.ID] = suggestion
	return nil
}

func (r *fakeMatchRepo) GetSuggestion(ctx context.Context, id string) (*matching.MatchSuggestion, error) {
	if s, ok := r.suggestions[id]; ok {
		return s, nil
	}
	return nil, shared.ErrSuggestionNotFound
}

func (r *fakeMatchRepo) ListSuggestionsForCandidate(ctx context.Context, id shared.CandidateID) ([]*matching.MatchSuggestion, error) {
	var out []*matching.MatchSuggestion
	for _, s := range r.suggestions {
		if s.InvolvesCandidate(id) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListOpenExpired(ctx context.Context, now time.Time, limit int) ([]*matching.MatchSuggestion, error) {
	if r.listExpireErr != nil {
		return nil, r.listExpireErr
	}
	return r.openExpired, nil
}

type fakeBlocklistRepo struct {
	blocklists map[shared.CandidateID][]shared.CandidateID
	err        error
}

func (r *fakeBlocklistRepo) GetBlocklists(ctx context.Context, ids []shared.CandidateID) (map[shared.CandidateID][]shared.CandidateID, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.blocklists, nil
}

type fakeExpStore struct {
	experiments []experiment.Experiment
	assignments map[string]*experiment.Assignment
	activeErr   error
}

func newFakeExpStore() *fakeExpStore {
	return &fakeExpStore{assignments: make(map[string]*experiment.Assignment)}
}

func (s *fakeExpStore) ActiveExperiments(ctx context.Context) ([]experiment.Experiment, error) {
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	return s.experiments, nil
}

func (s *fakeExpStore) GetAssignment(ctx context.Context, candidateID shared.CandidateID, experimentID string) (*experiment.Assignment, error) {
	if a, ok := s.assignments[candidateID.String()+":"+experimentID]; ok {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (s *fakeExpStore) SaveAssignment(ctx context.Context, assignment *experiment.Assignment) error {
	s.assignments[assignment.CandidateID.String()+":"+assignment.ExperimentID] = assignment
	return nil
}

func (s *fakeExpStore) IncrementVariantUsage(ctx context.Context, experimentID, variant string) error {
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Test fixtures
// ──────────────────────────────────────────────────────────────────────────────

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func compatibleAnswers(sleepStart, sleepEnd string, cleanliness float64) profile.RawAnswers {
	return profile.RawAnswers{
		profile.KeySleepStart:         sleepStart,
		profile.KeySleepEnd:           sleepEnd,
		profile.KeyRoomCleanliness:    cleanliness,
		profile.KeyKitchenCleanliness: cleanliness,
		profile.KeyNoiseTolerance:     5,
		profile.KeyGuestFrequency:     4,
		profile.KeyPartyFrequency:     2,
		profile.KeyStudyIntensity:     7,
		profile.KeySocialLevel:        5,
		profile.KeyTraitExtraversion:  5,
		profile.KeyTraitAgreeableness: 6,
		profile.KeyTraitConscientious: 7,
		profile.KeyTraitNeuroticism:   3,
		profile.KeyTraitOpenness:      6,
		profile.KeySmoking:            profile.ValueNoSmoking,
		profile.KeyPets:               profile.ValueNoPets,
		profile.KeyDegreeLevel:        "bachelor",
	}
}

func testCandidate(id string) profile.Candidate {
	return profile.Candidate{
		ID:       shared.CandidateID(id),
		Answers:  compatibleAnswers("23:00", "07:00", 8),
		Location: profile.Location{City: shared.NewCity("Almaty")},
		Academic: profile.Academic{DegreeLevel: "bachelor"},
	}
}

type runFixture struct {
	candidateRepo *fakeCandidateRepo
	matchRepo     *fakeMatchRepo
	blocklistRepo *fakeBlocklistRepo
	expStore      *fakeExpStore
	handler       *RunMatchingHandler
}

func newRunFixture(candidates ...profile.Candidate) *runFixture {
	bank := profile.DefaultItemBank()
	candidateRepo := &fakeCandidateRepo{candidates: candidates}
	matchRepo := newFakeMatchRepo()
	blocklistRepo := &fakeBlocklistRepo{}
	expStore := newFakeExpStore()
	log := discardLogger()

	handler := NewRunMatchingHandler(
		candidateRepo,
		profile.NewNormalizer(bank),
		profile.NewEligibilityGate(bank),
		matching.NewFilter(matching.DefaultConflictRules()),
		experiment.NewResolver(expStore, matching.DefaultWeightSet(), log),
		expStore,
		matchRepo,
		blocklistRepo,
		log,
	)

	return &runFixture{
		candidateRepo: candidateRepo,
		matchRepo:     matchRepo,
		blocklistRepo: blocklistRepo,
		expStore:      expStore,
		handler:       handler,
	}
}

func pairsCommand() RunMatchingCommand {
	return RunMatchingCommand{
		Mode:           matching.RunModePairs,
		ScoreThreshold: 0.3,
		SuggestionTTL:  72 * time.Hour,
		Workers:        2,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestRunMatching_PairsMode(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"), testCandidate("c"), testCandidate("d"))

	result, err := f.handler.Handle(context.Background(), pairsCommand())
	require.NoError(t, err)

	assert.Len(t, result.Matches, 2)
	assert.Empty(t, result.Suggestions)
	assert.Equal(t, 4, result.Diagnostics.CandidatesLoaded)
	assert.Equal(t, 4, result.Diagnostics.CandidatesEligible)
	assert.Equal(t, 6, result.Diagnostics.PairsConsidered)
	assert.Empty(t, result.Diagnostics.EmptiedAtStage)

	// Run summary persisted before records.
	summary, ok := f.matchRepo.runs[result.RunID]
	require.True(t, ok)
	assert.Equal(t, 2, summary.RecordCount)
	assert.Len(t, f.matchRepo.records, 2)

	// No candidate paired twice.
	seen := make(map[shared.CandidateID]bool)
	for _, rec := range result.Matches {
		for _, id := range rec.MemberIDs {
			assert.False(t, seen[id])
			seen[id] = true
		}
	}
}

func TestRunMatching_SuggestionsMode(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"), testCandidate("c"))

	cmd := pairsCommand()
	cmd.Mode = matching.RunModeSuggestions
	cmd.TopN = 2
	cmd.AutoMatchThreshold = 101 // never auto-accept in this test

	result, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Empty(t, result.Matches)
	assert.NotEmpty(t, result.Suggestions)
	for _, s := range result.Suggestions {
		assert.Equal(t, matching.SuggestionStatusPending, s.Status)
		assert.Equal(t, result.RunID, s.RunID)
		assert.False(t, s.ExpiresAt.IsZero())
	}
	assert.Len(t, f.matchRepo.suggestions, len(result.Suggestions))
}

func TestRunMatching_AutoAcceptAboveThreshold(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"))

	cmd := pairsCommand()
	cmd.Mode = matching.RunModeSuggestions
	cmd.AutoMatchThreshold = 10 // identical candidates score far above this

	result, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	require.NotEmpty(t, result.Suggestions)
	for _, s := range result.Suggestions {
		assert.Equal(t, matching.SuggestionStatusAccepted, s.Status)
		assert.ElementsMatch(t, s.MemberIDs, s.AcceptedBy)
	}
}

func TestRunMatching_GroupsMode(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"), testCandidate("c"), testCandidate("d"))

	cmd := pairsCommand()
	cmd.Mode = matching.RunModeGroups
	cmd.GroupSize = 3

	result, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	require.NotEmpty(t, result.Matches)
	assert.Equal(t, matching.MatchKindGroup, result.Matches[0].Kind)
	assert.Len(t, result.Matches[0].MemberIDs, 3)
}

func TestRunMatching_EmptyCohort(t *testing.T) {
	f := newRunFixture()

	result, err := f.handler.Handle(context.Background(), pairsCommand())
	require.NoError(t, err)

	assert.Empty(t, result.Matches)
	assert.Equal(t, StageLoad, result.Diagnostics.EmptiedAtStage)

	// The empty run still leaves an auditable summary.
	_, ok := f.matchRepo.runs[result.RunID]
	assert.True(t, ok)
}

func TestRunMatching_IneligibleCandidatesFiltered(t *testing.T) {
	incomplete := profile.Candidate{
		ID:      shared.CandidateID("x"),
		Answers: profile.RawAnswers{profile.KeySleepStart: "23:00"},
	}
	f := newRunFixture(testCandidate("a"), incomplete)

	result, err := f.handler.Handle(context.Background(), pairsCommand())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Diagnostics.CandidatesLoaded)
	assert.Equal(t, 1, result.Diagnostics.CandidatesEligible)
	assert.Equal(t, StageEligibility, result.Diagnostics.EmptiedAtStage)
	assert.Empty(t, result.Matches)
}

func TestRunMatching_DealBreakerBlocksPair(t *testing.T) {
	smoker := testCandidate("b")
	smoker.Answers[profile.KeySmoking] = profile.ValueSmokingOK
	f := newRunFixture(testCandidate("a"), smoker)

	result, err := f.handler.Handle(context.Background(), pairsCommand())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Diagnostics.PairsConsidered)
	assert.Equal(t, 1, result.Diagnostics.DealBreakerBlocked)
	assert.Equal(t, StageDealBreaker, result.Diagnostics.EmptiedAtStage)
	assert.Empty(t, result.Matches)
}

func TestRunMatching_BlocklistExcludesPair(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"))
	f.blocklistRepo.blocklists = map[shared.CandidateID][]shared.CandidateID{
		"a": {"b"},
	}

	result, err := f.handler.Handle(context.Background(), pairsCommand())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Diagnostics.BlocklistExcluded)
	assert.Empty(t, result.Matches)
}

func TestRunMatching_ScoreThresholdFiltersPair(t *testing.T) {
	night := testCandidate("a")
	day := testCandidate("b")
	day.Answers = compatibleAnswers("09:00", "17:00", 1)
	day.Answers[profile.KeyStudyIntensity] = 0
	day.Answers[profile.KeySocialLevel] = 10
	f := newRunFixture(night, day)

	cmd := pairsCommand()
	cmd.ScoreThreshold = 0.95

	result, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Diagnostics.BelowThreshold)
	assert.Empty(t, result.Matches)
}

func TestRunMatching_LoadFailureRetriesThenAborts(t *testing.T) {
	f := newRunFixture()
	f.candidateRepo.loadErr = errors.New("db down")

	_, err := f.handler.Handle(context.Background(), pairsCommand())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Greater(t, f.candidateRepo.loadCalls, 1)

	// Nothing persisted on abort.
	assert.Empty(t, f.matchRepo.runs)
}

func TestRunMatching_ExperimentStoreFailureDegrades(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"))
	f.expStore.activeErr = errors.New("experiments down")

	result, err := f.handler.Handle(context.Background(), pairsCommand())
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
}

func TestRunMatching_ExperimentVariantWeightsApplied(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"))
	f.expStore.experiments = []experiment.Experiment{
		{
			ID:     "exp-1",
			Method: experiment.AssignmentHash,
			Active: true,
			Variants: []experiment.Variant{
				{Name: "only", TrafficWeight: 100, Weights: matching.DefaultWeightSet()},
			},
		},
	}

	result, err := f.handler.Handle(context.Background(), pairsCommand())
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)

	// Both candidates got a persisted assignment exactly once.
	assert.Len(t, f.expStore.assignments, 2)
}

func TestRunMatching_PersistFailureAborts(t *testing.T) {
	f := newRunFixture(testCandidate("a"), testCandidate("b"))
	f.matchRepo.saveRunErr = errors.New("insert failed")

	_, err := f.handler.Handle(context.Background(), pairsCommand())
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestRunMatchingCommand_Validate(t *testing.T) {
	cmd := RunMatchingCommand{Mode: "bogus"}
	assert.Error(t, cmd.Validate())

	cmd = RunMatchingCommand{Mode: matching.RunModePairs, ScoreThreshold: 1.5}
	assert.Error(t, cmd.Validate())

	cmd = RunMatchingCommand{Mode: matching.RunModeGroups}
	require.NoError(t, cmd.Validate())
	assert.Equal(t, 3, cmd.GroupSize)
	assert.Equal(t, 5, cmd.TopN)
	assert.Equal(t, shared.FitIndex(80), cmd.AutoMatchThreshold)
	assert.Equal(t, 72*time.Hour, cmd.SuggestionTTL)
	assert.Equal(t, 4, cmd.Workers)

	cmd = RunMatchingCommand{Mode: matching.RunModeSuggestions, TopN: 50}
	require.NoError(t, cmd.Validate())
	assert.Equal(t, 20, cmd.TopN)
}
