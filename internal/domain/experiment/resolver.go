package experiment

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VARIANT RESOLVER
//
// Разрешает набор весов для пары кандидатов. Вариант применяется к
// паре, только если ОБА участника попали в один и тот же вариант
// одного эксперимента - иначе действует набор по умолчанию. Это
// исключает смешивание вариантов внутри одной парной оценки.
//
// Отказ хранилища экспериментов деградирует до весов по умолчанию,
// а не роняет прогон.
// ══════════════════════════════════════════════════════════════════════════════

// Resolver назначает варианты и разрешает веса для пар.
type Resolver struct {
	store    Store
	defaults matching.WeightSet
	logger   *slog.Logger
	rng      *rand.Rand
}

// NewResolver создаёт Resolver.
func NewResolver(store Store, defaults matching.WeightSet, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		defaults: defaults,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DefaultWeights возвращает набор весов по умолчанию.
func (r *Resolver) DefaultWeights() matching.WeightSet {
	return r.defaults
}

// AssignVariant возвращает вариант кандидата в эксперименте.
// Назначение идемпотентно: существующее назначение переиспользуется,
// новое сохраняется в хранилище.
func (r *Resolver) AssignVariant(ctx context.Context, candidateID shared.CandidateID, exp Experiment) (*Assignment, error) {
	existing, err := r.store.GetAssignment(ctx, candidateID, exp.ID)
	if err == nil {
		return existing, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	var variant string
	switch exp.Method {
	case AssignmentRandom:
		variant = pickVariant(exp.Variants, r.rng.Intn(100))
	default:
		variant = pickVariant(exp.Variants, hashBucket(candidateID, exp.ID))
	}

	assignment := &Assignment{
		CandidateID:  candidateID,
		ExperimentID: exp.ID,
		Variant:      variant,
		Method:       exp.Method,
		AssignedAt:   time.Now().UTC(),
	}

	if err := r.store.SaveAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	if err := r.store.IncrementVariantUsage(ctx, exp.ID, variant); err != nil {
		// Счётчик - побочная метрика, его отказ не ломает назначение
		r.logger.Warn("failed to increment variant usage",
			"experiment_id", exp.ID,
			"variant", variant,
			"error", err,
		)
	}

	return assignment, nil
}

// ResolveWeights возвращает набор весов для пары кандидатов.
// Пара получает веса варианта, только когда оба участника в одном
// варианте одного эксперимента; любой сбой разрешения деградирует
// до весов по умолчанию.
func (r *Resolver) ResolveWeights(ctx context.Context, a, b shared.CandidateID, experiments []Experiment) matching.WeightSet {
	for _, exp := range experiments {
		if !exp.Active {
			continue
		}

		assignA, err := r.AssignVariant(ctx, a, exp)
		if err != nil {
			r.logger.Warn("variant assignment failed, falling back to default weights",
				"experiment_id", exp.ID, "candidate_id", a, "error", err)
			continue
		}
		assignB, err := r.AssignVariant(ctx, b, exp)
		if err != nil {
			r.logger.Warn("variant assignment failed, falling back to default weights",
				"experiment_id", exp.ID, "candidate_id", b, "error", err)
			continue
		}

		if assignA.Variant != assignB.Variant {
			continue
		}

		if variant, ok := exp.VariantByName(assignA.Variant); ok {
			return variant.Weights
		}
	}

	return r.defaults
}

// ══════════════════════════════════════════════════════════════════════════════
// HASH ASSIGNMENT
// ══════════════════════════════════════════════════════════════════════════════

// hashBucket отображает (кандидат, эксперимент) в корзину 0-99.
// BLAKE2b детерминирован между процессами и версиями - один и тот же
// кандидат всегда попадает в один и тот же вариант.
func hashBucket(candidateID shared.CandidateID, experimentID string) int {
	sum := blake2b.Sum256([]byte(candidateID.String() + ":" + experimentID))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}

// pickVariant отображает корзину 0-99 в вариант по накопленным
// долям трафика.
func pickVariant(variants []Variant, bucket int) string {
	cumulative := 0
	for _, v := range variants {
		cumulative += v.TrafficWeight
		if bucket < cumulative {
			return v.Name
		}
	}
	// Доли сверены валидацией; запасной выход - последний вариант
	return variants[len(variants)-1].Name
}
