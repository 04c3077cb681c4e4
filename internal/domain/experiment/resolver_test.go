package experiment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// fakeStore keeps assignments in memory and can simulate failures.
type fakeStore struct {
	assignments map[string]*Assignment
	usage       map[string]int
	failGet     error
	failSave    error
	failUsage   error
	saveCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assignments: make(map[string]*Assignment),
		usage:       make(map[string]int),
	}
}

func (s *fakeStore) key(candidateID shared.CandidateID, experimentID string) string {
	return candidateID.String() + ":" + experimentID
}

func (s *fakeStore) ActiveExperiments(ctx context.Context) ([]Experiment, error) {
	return nil, nil
}

func (s *fakeStore) GetAssignment(ctx context.Context, candidateID shared.CandidateID, experimentID string) (*Assignment, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	if a, ok := s.assignments[s.key(candidateID, experimentID)]; ok {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (s *fakeStore) SaveAssignment(ctx context.Context, assignment *Assignment) error {
	if s.failSave != nil {
		return s.failSave
	}
	s.saveCalls++
	s.assignments[s.key(assignment.CandidateID, assignment.ExperimentID)] = assignment
	return nil
}

func (s *fakeStore) IncrementVariantUsage(ctx context.Context, experimentID, variant string) error {
	if s.failUsage != nil {
		return s.failUsage
	}
	s.usage[experimentID+":"+variant]++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scheduleHeavyWeights() matching.WeightSet {
	w := matching.DefaultWeightSet()
	w.Personality = 0.25
	w.Schedule = 0.35
	return w
}

func testExperiment() Experiment {
	return Experiment{
		ID:     "exp-weights-1",
		Name:   "schedule weight bump",
		Method: AssignmentHash,
		Active: true,
		Variants: []Variant{
			{Name: "control", TrafficWeight: 50, Weights: matching.DefaultWeightSet()},
			{Name: "schedule_heavy", TrafficWeight: 50, Weights: scheduleHeavyWeights()},
		},
	}
}

func TestExperimentValidate(t *testing.T) {
	assert.NoError(t, testExperiment().Validate())

	exp := testExperiment()
	exp.ID = ""
	assert.Error(t, exp.Validate())

	exp = testExperiment()
	exp.Variants = nil
	assert.ErrorIs(t, exp.Validate(), shared.ErrNoVariants)

	exp = testExperiment()
	exp.Variants[0].TrafficWeight = 70
	assert.ErrorIs(t, exp.Validate(), shared.ErrInvalidTrafficSplit)

	exp = testExperiment()
	exp.Method = "coin_flip"
	assert.Error(t, exp.Validate())
}

func TestAssignVariant_Sticky(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, matching.DefaultWeightSet(), testLogger())
	exp := testExperiment()
	ctx := context.Background()

	first, err := r.AssignVariant(ctx, "candidate-1", exp)
	require.NoError(t, err)
	assert.Equal(t, 1, store.saveCalls)

	// Repeated calls reuse the stored assignment.
	for i := 0; i < 5; i++ {
		again, err := r.AssignVariant(ctx, "candidate-1", exp)
		require.NoError(t, err)
		assert.Equal(t, first.Variant, again.Variant)
	}
	assert.Equal(t, 1, store.saveCalls)
}

func TestAssignVariant_HashIsDeterministic(t *testing.T) {
	exp := testExperiment()

	// Two resolvers over separate stores land every candidate in the
	// same variant.
	r1 := NewResolver(newFakeStore(), matching.DefaultWeightSet(), testLogger())
	r2 := NewResolver(newFakeStore(), matching.DefaultWeightSet(), testLogger())
	ctx := context.Background()

	for _, id := range []shared.CandidateID{"alpha", "beta", "gamma", "delta"} {
		a1, err := r1.AssignVariant(ctx, id, exp)
		require.NoError(t, err)
		a2, err := r2.AssignVariant(ctx, id, exp)
		require.NoError(t, err)
		assert.Equal(t, a1.Variant, a2.Variant, "candidate %s", id)
	}
}

func TestAssignVariant_UsageCounterFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	store.failUsage = errors.New("counter down")
	r := NewResolver(store, matching.DefaultWeightSet(), testLogger())

	assignment, err := r.AssignVariant(context.Background(), "candidate-1", testExperiment())
	require.NoError(t, err)
	assert.NotEmpty(t, assignment.Variant)
}

func TestAssignVariant_SaveFailure(t *testing.T) {
	store := newFakeStore()
	store.failSave = errors.New("db down")
	r := NewResolver(store, matching.DefaultWeightSet(), testLogger())

	_, err := r.AssignVariant(context.Background(), "candidate-1", testExperiment())
	assert.Error(t, err)
}

func TestResolveWeights_SameVariantApplies(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, matching.DefaultWeightSet(), testLogger())
	exp := testExperiment()
	ctx := context.Background()

	// Pin both candidates to the same variant up front.
	store.assignments[store.key("a", exp.ID)] = &Assignment{CandidateID: "a", ExperimentID: exp.ID, Variant: "schedule_heavy"}
	store.assignments[store.key("b", exp.ID)] = &Assignment{CandidateID: "b", ExperimentID: exp.ID, Variant: "schedule_heavy"}

	weights := r.ResolveWeights(ctx, "a", "b", []Experiment{exp})
	assert.Equal(t, scheduleHeavyWeights(), weights)
}

func TestResolveWeights_MixedVariantsFallBack(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, matching.DefaultWeightSet(), testLogger())
	exp := testExperiment()

	store.assignments[store.key("a", exp.ID)] = &Assignment{CandidateID: "a", ExperimentID: exp.ID, Variant: "control"}
	store.assignments[store.key("b", exp.ID)] = &Assignment{CandidateID: "b", ExperimentID: exp.ID, Variant: "schedule_heavy"}

	weights := r.ResolveWeights(context.Background(), "a", "b", []Experiment{exp})
	assert.Equal(t, matching.DefaultWeightSet(), weights)
}

func TestResolveWeights_InactiveExperimentSkipped(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, matching.DefaultWeightSet(), testLogger())
	exp := testExperiment()
	exp.Active = false

	weights := r.ResolveWeights(context.Background(), "a", "b", []Experiment{exp})
	assert.Equal(t, matching.DefaultWeightSet(), weights)
	assert.Zero(t, store.saveCalls)
}

func TestResolveWeights_StoreFailureDegradesToDefaults(t *testing.T) {
	store := newFakeStore()
	store.failGet = errors.New("store down")
	r := NewResolver(store, matching.DefaultWeightSet(), testLogger())

	weights := r.ResolveWeights(context.Background(), "a", "b", []Experiment{testExperiment()})
	assert.Equal(t, matching.DefaultWeightSet(), weights)
}

func TestPickVariant_TrafficSplit(t *testing.T) {
	variants := []Variant{
		{Name: "control", TrafficWeight: 30},
		{Name: "b", TrafficWeight: 70},
	}

	assert.Equal(t, "control", pickVariant(variants, 0))
	assert.Equal(t, "control", pickVariant(variants, 29))
	assert.Equal(t, "b", pickVariant(variants, 30))
	assert.Equal(t, "b", pickVariant(variants, 99))
}

func TestHashBucket_Range(t *testing.T) {
	for _, id := range []shared.CandidateID{"a", "b", "c", "long-candidate-id-0001"} {
		bucket := hashBucket(id, "exp-1")
		assert.GreaterOrEqual(t, bucket, 0)
		assert.Less(t, bucket, 100)
		assert.Equal(t, bucket, hashBucket(id, "exp-1"))
	}
}
