package profile

import (
	"context"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANDIDATE SOURCE
// Граница с хранилищем: откуда движок берёт кандидатов.
// ══════════════════════════════════════════════════════════════════════════════

// Candidate - сырой кандидат из хранилища до нормализации.
type Candidate struct {
	// ID - идентификатор кандидата.
	ID shared.CandidateID

	// Answers - снимок ответов анкеты.
	Answers RawAnswers

	// Vector - заранее посчитанный вектор признаков (может отсутствовать).
	Vector []float64

	// Academic - академические метаданные.
	Academic Academic

	// Location - город и готовность к переезду.
	Location Location
}

// CohortFilter - фильтр когорты для прогона подбора.
type CohortFilter struct {
	// InstitutionID - только кандидаты этого вуза (пусто = все).
	InstitutionID string

	// City - только кандидаты этого города (пусто = все).
	City shared.City

	// DegreeLevel - только этот уровень обучения (пусто = все).
	DegreeLevel string

	// Limit - максимальный размер когорты (0 = без ограничения).
	Limit int
}

// IsEmpty возвращает true, если фильтр не задаёт ограничений.
func (f CohortFilter) IsEmpty() bool {
	return f.InstitutionID == "" && f.City.IsEmpty() && f.DegreeLevel == "" && f.Limit == 0
}

// CandidateRepository - источник кандидатов.
type CandidateRepository interface {
	// LoadCandidates возвращает кандидатов, попадающих под фильтр когорты.
	LoadCandidates(ctx context.Context, filter CohortFilter) ([]Candidate, error)

	// GetByCandidateID возвращает кандидата по идентификатору.
	// Возвращает shared.ErrCandidateNotFound, если кандидат не найден.
	GetByCandidateID(ctx context.Context, id shared.CandidateID) (*Candidate, error)
}
