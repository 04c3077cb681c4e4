package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

func pair(a, b string, composite float64) ScoredPair {
	return ScoredPair{
		A:     shared.CandidateID(a),
		B:     shared.CandidateID(b),
		Score: PairScore{Composite: shared.FitScore(composite)},
	}
}

func TestNewPairKey_Unordered(t *testing.T) {
	assert.Equal(t, NewPairKey("a", "b"), NewPairKey("b", "a"))
	assert.Equal(t, shared.CandidateID("a"), NewPairKey("b", "a").Lo)
}

func TestFitMatrix_Symmetric(t *testing.T) {
	m := make(FitMatrix)
	m.Set("a", "b", 0.7)

	assert.Equal(t, 0.7, m.Get("a", "b"))
	assert.Equal(t, 0.7, m.Get("b", "a"))
	assert.Zero(t, m.Get("a", "c"))
}

func TestSolvePairs_NoCandidateReuse(t *testing.T) {
	pairs := []ScoredPair{
		pair("a", "b", 0.9),
		pair("a", "c", 0.8),
		pair("c", "d", 0.7),
		pair("b", "d", 0.6),
	}

	matched := SolvePairs(pairs)

	require.Len(t, matched, 2)
	assert.Equal(t, pair("a", "b", 0.9), matched[0])
	assert.Equal(t, pair("c", "d", 0.7), matched[1])

	seen := make(map[shared.CandidateID]bool)
	for _, p := range matched {
		assert.False(t, seen[p.A])
		assert.False(t, seen[p.B])
		seen[p.A] = true
		seen[p.B] = true
	}
}

// perfectMatchings enumerates every perfect matching of an even-sized
// candidate list. Used to compare the greedy result against the true
// optimum on small cohorts, where full enumeration is cheap.
func perfectMatchings(ids []shared.CandidateID) [][]PairKey {
	if len(ids) == 0 {
		return [][]PairKey{nil}
	}
	first := ids[0]
	var out [][]PairKey
	for i := 1; i < len(ids); i++ {
		rest := make([]shared.CandidateID, 0, len(ids)-2)
		rest = append(rest, ids[1:i]...)
		rest = append(rest, ids[i+1:]...)
		for _, sub := range perfectMatchings(rest) {
			m := append([]PairKey{NewPairKey(first, ids[i])}, sub...)
			out = append(out, m)
		}
	}
	return out
}

func matchingSum(m FitMatrix, keys []PairKey) float64 {
	var sum float64
	for _, k := range keys {
		sum += m.Get(k.Lo, k.Hi)
	}
	return sum
}

func TestSolvePairs_BruteForceOptimum_FourCandidates(t *testing.T) {
	pairs := []ScoredPair{
		pair("a", "b", 0.9),
		pair("a", "c", 0.6),
		pair("a", "d", 0.5),
		pair("b", "c", 0.4),
		pair("b", "d", 0.3),
		pair("c", "d", 0.8),
	}
	matrix := make(FitMatrix)
	for _, p := range pairs {
		matrix.Set(p.A, p.B, p.Score.Composite.Float64())
	}

	matched := SolvePairs(pairs)
	require.Len(t, matched, 2)
	var total float64
	for _, p := range matched {
		total += p.Score.Composite.Float64()
	}

	// Three perfect matchings exist on four candidates; the greedy sum
	// must not fall below any of them.
	matchings := perfectMatchings([]shared.CandidateID{"a", "b", "c", "d"})
	require.Len(t, matchings, 3)
	best := 0.0
	for _, m := range matchings {
		if sum := matchingSum(matrix, m); sum > best {
			best = sum
		}
	}
	assert.InDelta(t, best, total, 1e-9)
}

func TestSolvePairs_BruteForceOptimum_SixCandidates(t *testing.T) {
	pairs := []ScoredPair{
		pair("a", "b", 0.95),
		pair("c", "d", 0.90),
		pair("e", "f", 0.85),
		pair("a", "c", 0.30),
		pair("a", "d", 0.28),
		pair("a", "e", 0.26),
		pair("a", "f", 0.24),
		pair("b", "c", 0.22),
		pair("b", "d", 0.20),
		pair("b", "e", 0.18),
		pair("b", "f", 0.16),
		pair("c", "e", 0.14),
		pair("c", "f", 0.12),
		pair("d", "e", 0.10),
		pair("d", "f", 0.08),
	}
	matrix := make(FitMatrix)
	for _, p := range pairs {
		matrix.Set(p.A, p.B, p.Score.Composite.Float64())
	}

	matched := SolvePairs(pairs)
	require.Len(t, matched, 3)
	var total float64
	for _, p := range matched {
		total += p.Score.Composite.Float64()
	}

	matchings := perfectMatchings([]shared.CandidateID{"a", "b", "c", "d", "e", "f"})
	require.Len(t, matchings, 15)
	for _, m := range matchings {
		assert.GreaterOrEqual(t, total+1e-9, matchingSum(matrix, m))
	}
}

func TestSolvePairs_StableOnTies(t *testing.T) {
	pairs := []ScoredPair{
		pair("a", "b", 0.5),
		pair("c", "d", 0.5),
	}

	matched := SolvePairs(pairs)
	require.Len(t, matched, 2)
	assert.Equal(t, shared.CandidateID("a"), matched[0].A)
}

func TestSolvePairs_DoesNotMutateInput(t *testing.T) {
	pairs := []ScoredPair{
		pair("a", "b", 0.1),
		pair("c", "d", 0.9),
	}
	SolvePairs(pairs)
	assert.Equal(t, shared.CandidateID("a"), pairs[0].A)
}

func TestSolveGroups(t *testing.T) {
	candidates := []shared.CandidateID{"a", "b", "c", "d"}
	m := make(FitMatrix)
	m.Set("a", "b", 0.9)
	m.Set("a", "c", 0.8)
	m.Set("b", "c", 0.7)
	m.Set("a", "d", 0.1)
	m.Set("b", "d", 0.1)
	m.Set("c", "d", 0.1)

	groups := SolveGroups(candidates, m, 3)

	require.NotEmpty(t, groups)
	first := groups[0]
	assert.Len(t, first.Members, 3)
	assert.ElementsMatch(t, []shared.CandidateID{"a", "b", "c"}, first.Members)
	assert.InDelta(t, (0.9+0.8+0.7)/3.0, first.AverageFit.Float64(), 1e-9)

	// d is left without a partner: singleton groups are dropped.
	for _, g := range groups {
		assert.GreaterOrEqual(t, len(g.Members), 2)
	}
}

func TestSolveGroups_TooSmall(t *testing.T) {
	assert.Nil(t, SolveGroups([]shared.CandidateID{"a"}, make(FitMatrix), 3))
	assert.Nil(t, SolveGroups([]shared.CandidateID{"a", "b"}, make(FitMatrix), 1))
}

func TestSolveGroups_MembersUnique(t *testing.T) {
	candidates := []shared.CandidateID{"a", "b", "c", "d", "e", "f"}
	m := make(FitMatrix)
	for i, x := range candidates {
		for _, y := range candidates[i+1:] {
			m.Set(x, y, 0.5)
		}
	}

	groups := SolveGroups(candidates, m, 3)

	seen := make(map[shared.CandidateID]bool)
	for _, g := range groups {
		for _, id := range g.Members {
			assert.False(t, seen[id], "candidate %s appears twice", id)
			seen[id] = true
		}
	}
}

func TestTopPairsPerCandidate(t *testing.T) {
	pairs := []ScoredPair{
		pair("a", "b", 0.9),
		pair("a", "c", 0.8),
		pair("a", "d", 0.7),
		pair("b", "c", 0.6),
	}

	top := TopPairsPerCandidate(pairs, 2)

	keys := make(map[PairKey]bool)
	for _, p := range top {
		keys[p.Key()] = true
	}
	// (a,d) is a's third-best pair but d's best, so it survives.
	assert.True(t, keys[NewPairKey("a", "b")])
	assert.True(t, keys[NewPairKey("a", "c")])
	assert.True(t, keys[NewPairKey("a", "d")])
	assert.True(t, keys[NewPairKey("b", "c")])

	// Output sorted by descending score.
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Score.Composite, top[i].Score.Composite)
	}
}

func TestTopPairsPerCandidate_CollapsesDuplicates(t *testing.T) {
	pairs := []ScoredPair{
		pair("a", "b", 0.9),
		pair("b", "a", 0.9),
	}
	top := TopPairsPerCandidate(pairs, 3)
	assert.Len(t, top, 1)
}

func TestTopPairsPerCandidate_Empty(t *testing.T) {
	assert.Nil(t, TopPairsPerCandidate(nil, 3))
	assert.Nil(t, TopPairsPerCandidate([]ScoredPair{pair("a", "b", 0.5)}, 0))
}
