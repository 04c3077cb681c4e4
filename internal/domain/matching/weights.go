// Package matching содержит ядро подбора соседей: фильтр жёстких
// ограничений, расчёт совместимости пар, жадный решатель и жизненный
// цикл предложений. Всё ядро - чистые функции над данными в памяти;
// побочные эффекты есть только у оркестратора в слое application.
package matching

import (
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEIGHT CONFIGURATION
//
// Веса факторов совместимости. Набор неизменяем после создания:
// он выбирается на каждую пару (по умолчанию или из варианта
// эксперимента) и никогда не мутируется.
// ══════════════════════════════════════════════════════════════════════════════

// WeightSet - именованные веса факторов оценки совместимости.
// JSON-теги соответствуют формату вариантов эксперимента в хранилище.
type WeightSet struct {
	// Personality - вес косинусного сходства векторов признаков.
	Personality float64 `json:"personality"`

	// Schedule - вес пересечения окон сна.
	Schedule float64 `json:"schedule"`

	// Cleanliness - вес близости по чистоплотности.
	Cleanliness float64 `json:"cleanliness"`

	// Social - вес близости по социальным привычкам.
	Social float64 `json:"social"`

	// University - бонус за общий вуз.
	University float64 `json:"university"`

	// Programme - бонус за общую программу обучения.
	Programme float64 `json:"programme"`

	// Faculty - бонус за общий факультет (если программы разные).
	Faculty float64 `json:"faculty"`

	// YearGapPenalty - штраф за каждый год разницы выпуска сверх двух.
	YearGapPenalty float64 `json:"year_gap_penalty"`
}

// DefaultWeightSet возвращает веса по умолчанию.
// Четыре основных веса в сумме дают 1.0; академические бонусы
// добавляются сверху и ограничены отдельно.
func DefaultWeightSet() WeightSet {
	return WeightSet{
		Personality:    0.35,
		Schedule:       0.25,
		Cleanliness:    0.20,
		Social:         0.20,
		University:     0.05,
		Programme:      0.08,
		Faculty:        0.03,
		YearGapPenalty: 0.015,
	}
}

// Validate проверяет корректность набора весов.
func (w WeightSet) Validate() error {
	for _, v := range []float64{
		w.Personality, w.Schedule, w.Cleanliness, w.Social,
		w.University, w.Programme, w.Faculty, w.YearGapPenalty,
	} {
		if v < 0 {
			return shared.NewDomainError("matching", "ValidateWeights",
				shared.ErrValueOutOfRange, "weights must be non-negative")
		}
	}

	if w.CoreSum() > 1.0+1e-9 {
		return shared.NewDomainError("matching", "ValidateWeights",
			shared.ErrValueOutOfRange, "core weights must sum to at most 1.0")
	}

	if w.University+w.Programme > 0.25+1e-9 {
		return shared.NewDomainError("matching", "ValidateWeights",
			shared.ErrValueOutOfRange, "academic bonus weights must sum to at most 0.25")
	}

	return nil
}

// CoreSum возвращает сумму четырёх основных весов.
func (w WeightSet) CoreSum() float64 {
	return w.Personality + w.Schedule + w.Cleanliness + w.Social
}
