// Package experiment содержит A/B-эксперименты над конфигурациями
// весов подбора: варианты с долями трафика, детерминированное
// назначение кандидатов и разрешение весов для пары.
package experiment

import (
	"context"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPERIMENTS & VARIANTS
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentMethod определяет способ назначения варианта.
type AssignmentMethod string

const (
	// AssignmentHash - детерминированно по хешу (candidateId, experimentId).
	AssignmentHash AssignmentMethod = "hash"

	// AssignmentRandom - случайно, один раз, с сохранением.
	AssignmentRandom AssignmentMethod = "random"
)

// IsValid проверяет корректность метода.
func (m AssignmentMethod) IsValid() bool {
	return m == AssignmentHash || m == AssignmentRandom
}

// Variant - вариант эксперимента с альтернативным набором весов.
type Variant struct {
	// Name - имя варианта ("control", "schedule_heavy" и т.п.).
	Name string

	// TrafficWeight - доля трафика в процентах (0-100).
	TrafficWeight int

	// Weights - набор весов этого варианта.
	Weights matching.WeightSet
}

// Experiment - активный эксперимент над весами подбора.
type Experiment struct {
	// ID - идентификатор эксперимента.
	ID string

	// Name - человекочитаемое имя.
	Name string

	// Method - способ назначения вариантов.
	Method AssignmentMethod

	// Variants - варианты с долями трафика (сумма долей = 100).
	Variants []Variant

	// Active - участвует ли эксперимент в прогонах.
	Active bool
}

// Validate проверяет корректность эксперимента.
func (e Experiment) Validate() error {
	if e.ID == "" {
		return shared.NewDomainError("experiment", "Validate", shared.ErrEmptyValue, "experiment id is required")
	}
	if !e.Method.IsValid() {
		return shared.NewDomainError("experiment", "Validate", shared.ErrInvalidInput, "unknown assignment method")
	}
	if len(e.Variants) == 0 {
		return shared.ErrNoVariants
	}

	total := 0
	for _, v := range e.Variants {
		if v.Name == "" {
			return shared.NewDomainError("experiment", "Validate", shared.ErrEmptyValue, "variant name is required")
		}
		if v.TrafficWeight < 0 {
			return shared.ErrInvalidTrafficSplit
		}
		if err := v.Weights.Validate(); err != nil {
			return err
		}
		total += v.TrafficWeight
	}
	if total != 100 {
		return shared.ErrInvalidTrafficSplit
	}

	return nil
}

// VariantByName возвращает вариант по имени.
func (e Experiment) VariantByName(name string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Assignment связывает (кандидат, эксперимент) с вариантом.
// Создаётся один раз и далее неизменно: повторные прогоны стабильны.
type Assignment struct {
	// CandidateID - кандидат.
	CandidateID shared.CandidateID

	// ExperimentID - эксперимент.
	ExperimentID string

	// Variant - имя назначенного варианта.
	Variant string

	// Method - способ, которым назначен вариант.
	Method AssignmentMethod

	// AssignedAt - когда назначен.
	AssignedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE BOUNDARY
// ══════════════════════════════════════════════════════════════════════════════

// Store - хранилище экспериментов и назначений.
type Store interface {
	// ActiveExperiments возвращает активные эксперименты.
	ActiveExperiments(ctx context.Context) ([]Experiment, error)

	// GetAssignment возвращает сохранённое назначение.
	// Возвращает shared.ErrNotFound, если назначения ещё нет.
	GetAssignment(ctx context.Context, candidateID shared.CandidateID, experimentID string) (*Assignment, error)

	// SaveAssignment сохраняет новое назначение.
	SaveAssignment(ctx context.Context, assignment *Assignment) error

	// IncrementVariantUsage атомарно увеличивает счётчик использования
	// варианта - счётчики живут на границе хранилища, не в памяти ядра.
	IncrementVariantUsage(ctx context.Context, experimentID, variant string) error
}
