package matching

import (
	"sort"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIMIZATION SOLVER
//
// Жадные приближения, не точный оптимум - осознанное упрощение ради
// производительности на больших когортах. Интерфейсы SolvePairs и
// SolveGroups позволяют подменить решатель на точный (венгерский
// алгоритм и т.п.) без изменения остальных компонентов.
//
// Жадный проход по парам последовательный: каждое принятие пары
// мутирует общее множество занятых кандидатов. Параллелить здесь
// нечего - параллелизм живёт на этапе оценки пар в оркестраторе.
// ══════════════════════════════════════════════════════════════════════════════

// PairKey - ключ неупорядоченной пары: идентификаторы отсортированы,
// поэтому (A,B) и (B,A) дают один и тот же ключ.
type PairKey struct {
	Lo shared.CandidateID
	Hi shared.CandidateID
}

// NewPairKey создаёт ключ пары, упорядочивая идентификаторы.
func NewPairKey(a, b shared.CandidateID) PairKey {
	if a <= b {
		return PairKey{Lo: a, Hi: b}
	}
	return PairKey{Lo: b, Hi: a}
}

// Members возвращает идентификаторы пары.
func (k PairKey) Members() []shared.CandidateID {
	return []shared.CandidateID{k.Lo, k.Hi}
}

// ScoredPair - пара кандидатов с рассчитанной оценкой.
type ScoredPair struct {
	A     shared.CandidateID
	B     shared.CandidateID
	Score PairScore
}

// Key возвращает ключ неупорядоченной пары.
func (p ScoredPair) Key() PairKey {
	return NewPairKey(p.A, p.B)
}

// FitMatrix - симметричная матрица оценок пар.
type FitMatrix map[PairKey]float64

// Set записывает оценку пары.
func (m FitMatrix) Set(a, b shared.CandidateID, score float64) {
	m[NewPairKey(a, b)] = score
}

// Get возвращает оценку пары (0, если пара не оценивалась).
func (m FitMatrix) Get(a, b shared.CandidateID) float64 {
	return m[NewPairKey(a, b)]
}

// ══════════════════════════════════════════════════════════════════════════════
// PAIR MATCHING
// ══════════════════════════════════════════════════════════════════════════════

// SolvePairs строит жадный 1:1 подбор: пары сортируются по убыванию
// оценки и принимаются, если оба участника ещё свободны. Результат
// максимальный (не максимально-взвешенный). Сортировка стабильная:
// при равных оценках сохраняется исходный порядок, прогон
// воспроизводим при одинаковом входе.
func SolvePairs(pairs []ScoredPair) []ScoredPair {
	sorted := make([]ScoredPair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score.Composite > sorted[j].Score.Composite
	})

	used := make(map[shared.CandidateID]bool, len(sorted)*2)
	matched := make([]ScoredPair, 0, len(sorted)/2)

	for _, pair := range sorted {
		if used[pair.A] || used[pair.B] {
			continue
		}
		used[pair.A] = true
		used[pair.B] = true
		matched = append(matched, pair)
	}

	return matched
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP MATCHING
// ══════════════════════════════════════════════════════════════════════════════

// Group - сформированная группа кандидатов.
type Group struct {
	// Members - участники группы.
	Members []shared.CandidateID

	// AverageFit - средняя оценка по всем парам внутри группы.
	AverageFit shared.FitScore
}

// SolveGroups формирует группы размера k жадным алгоритмом:
// кандидаты ранжируются по средней совместимости со всеми остальными;
// в порядке ранга каждый свободный кандидат открывает группу, в
// которую жадно добавляется свободный кандидат с наибольшей средней
// совместимостью с текущими участниками. Группы меньше двух
// участников отбрасываются.
func SolveGroups(candidates []shared.CandidateID, matrix FitMatrix, k int) []Group {
	if k < 2 || len(candidates) < 2 {
		return nil
	}

	ranked := rankByAverageFit(candidates, matrix)
	used := make(map[shared.CandidateID]bool, len(candidates))
	var groups []Group

	for _, seed := range ranked {
		if used[seed] {
			continue
		}

		members := []shared.CandidateID{seed}
		used[seed] = true

		for len(members) < k {
			next, ok := bestAddition(members, ranked, used, matrix)
			if !ok {
				break
			}
			members = append(members, next)
			used[next] = true
		}

		if len(members) < 2 {
			used[seed] = false
			continue
		}

		groups = append(groups, Group{
			Members:    members,
			AverageFit: groupAverageFit(members, matrix),
		})
	}

	return groups
}

// rankByAverageFit сортирует кандидатов по убыванию средней
// совместимости со всеми остальными.
func rankByAverageFit(candidates []shared.CandidateID, matrix FitMatrix) []shared.CandidateID {
	type rankedCandidate struct {
		id  shared.CandidateID
		avg float64
	}

	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, id := range candidates {
		var sum float64
		for _, other := range candidates {
			if other == id {
				continue
			}
			sum += matrix.Get(id, other)
		}
		avg := 0.0
		if len(candidates) > 1 {
			avg = sum / float64(len(candidates)-1)
		}
		ranked = append(ranked, rankedCandidate{id: id, avg: avg})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].avg > ranked[j].avg
	})

	out := make([]shared.CandidateID, len(ranked))
	for i, r := range ranked {
		out[i] = r.id
	}
	return out
}

// bestAddition находит свободного кандидата с наибольшей средней
// совместимостью с текущими участниками группы.
func bestAddition(members []shared.CandidateID, pool []shared.CandidateID, used map[shared.CandidateID]bool, matrix FitMatrix) (shared.CandidateID, bool) {
	var best shared.CandidateID
	bestAvg := -1.0
	found := false

	for _, candidate := range pool {
		if used[candidate] {
			continue
		}

		var sum float64
		for _, member := range members {
			sum += matrix.Get(candidate, member)
		}
		avg := sum / float64(len(members))

		if avg > bestAvg {
			best = candidate
			bestAvg = avg
			found = true
		}
	}

	return best, found
}

// groupAverageFit возвращает среднюю оценку по всем парам группы.
func groupAverageFit(members []shared.CandidateID, matrix FitMatrix) shared.FitScore {
	if len(members) < 2 {
		return 0
	}

	var sum float64
	var count int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += matrix.Get(members[i], members[j])
			count++
		}
	}

	return shared.FitScore(sum / float64(count)).Clamp()
}

// ══════════════════════════════════════════════════════════════════════════════
// SUGGESTION RANKING
// ══════════════════════════════════════════════════════════════════════════════

// TopPairsPerCandidate оставляет для каждого кандидата не более n
// лучших пар и схлопывает симметричные дубликаты по ключу пары.
// Используется в режиме предложений: "покажи каждому его лучшие
// варианты", а не "закрепи одного соседа за каждым".
func TopPairsPerCandidate(pairs []ScoredPair, n int) []ScoredPair {
	if n <= 0 || len(pairs) == 0 {
		return nil
	}

	byCandidate := make(map[shared.CandidateID][]ScoredPair)
	for _, pair := range pairs {
		byCandidate[pair.A] = append(byCandidate[pair.A], pair)
		byCandidate[pair.B] = append(byCandidate[pair.B], pair)
	}

	keep := make(map[PairKey]ScoredPair)
	for _, list := range byCandidate {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Score.Composite > list[j].Score.Composite
		})
		if len(list) > n {
			list = list[:n]
		}
		for _, pair := range list {
			keep[pair.Key()] = pair
		}
	}

	// Детерминированный порядок результата: по убыванию оценки,
	// затем по ключу пары.
	out := make([]ScoredPair, 0, len(keep))
	for _, pair := range keep {
		out = append(out, pair)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score.Composite != out[j].Score.Composite {
			return out[i].Score.Composite > out[j].Score.Composite
		}
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Lo != kj.Lo {
			return ki.Lo < kj.Lo
		}
		return ki.Hi < kj.Hi
	})

	return out
}
