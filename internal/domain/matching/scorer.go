package matching

import (
	"math"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPATIBILITY SCORER
//
// Взвешенная композитная оценка пары из пяти под-оценок:
// сходство личностей, пересечение режимов сна, близость по
// чистоплотности, близость по социальным привычкам и академическая
// близость. Функция Score чистая и симметричная:
// Score(A,B,w) == Score(B,A,w).
// ══════════════════════════════════════════════════════════════════════════════

// Category - категория совместимости для объяснений.
type Category string

const (
	CategoryPersonality Category = "personality"
	CategorySchedule    Category = "schedule"
	CategoryLifestyle   Category = "lifestyle"
	CategorySocial      Category = "social"
	CategoryAcademic    Category = "academic"
)

// WatchOut - категория, на которую паре стоит обратить внимание.
type WatchOut string

const (
	WatchOutNone         WatchOut = "none"
	WatchOutPreferences  WatchOut = "different_preferences"
	WatchOutCleanliness  WatchOut = "cleanliness_differences"
	WatchOutSchedule     WatchOut = "schedule_conflicts"
	WatchOutAcademic     WatchOut = "academic_stage"
)

// Подсказки по домашним правилам.
const (
	HintCleaningSchedule = "agree on a weekly cleaning schedule"
	HintGuestPolicy      = "discuss guest and party expectations up front"
	HintQuietHours       = "set explicit quiet hours for sleep"
	HintGeneric          = "talk through daily routines during the first week"
)

// Пороги штрафов за большие разрывы в привычках.
const (
	maxTotalPenalty = 0.5
	maxYearPenalty  = 0.06
)

// Explanation - структурированное объяснение оценки пары.
type Explanation struct {
	// TopAlignment - категория с наибольшей под-оценкой.
	TopAlignment Category

	// WatchOut - первая сработавшая категория риска.
	WatchOut WatchOut

	// HouseRules - подсказки по домашним правилам.
	HouseRules []string
}

// PairScore - результат оценки пары профилей.
type PairScore struct {
	// Similarity - косинусное сходство векторов признаков (0-1).
	Similarity float64

	// ScheduleOverlap - доля пересечения окон сна (0-1).
	ScheduleOverlap float64

	// CleanlinessAlignment - близость по чистоплотности (0-1).
	CleanlinessAlignment float64

	// SocialAlignment - близость по социальным привычкам (0-1).
	SocialAlignment float64

	// AcademicBonus - академический бонус/штраф (знаковый).
	AcademicBonus float64

	// Penalty - суммарный штраф за большие разрывы (0 - 0.5).
	Penalty float64

	// Composite - итоговая оценка, всегда в [0, 1].
	Composite shared.FitScore

	// Explanation - объяснение для пользователя.
	Explanation Explanation
}

// SectionScores возвращает под-оценки по секциям для записи подбора.
func (s PairScore) SectionScores() map[string]float64 {
	return map[string]float64{
		string(CategoryPersonality): s.Similarity,
		string(CategorySchedule):    s.ScheduleOverlap,
		"cleanliness":               s.CleanlinessAlignment,
		string(CategorySocial):      s.SocialAlignment,
		string(CategoryAcademic):    s.AcademicBonus,
	}
}

// Score вычисляет оценку совместимости пары профилей с заданными весами.
// Единственная возможная ошибка - несовпадение размерностей векторов
// (нарушение контракта общей схемы профиля).
func Score(a, b *profile.Profile, weights WeightSet) (PairScore, error) {
	similarity, err := profile.Cosine(a.Vector, b.Vector)
	if err != nil {
		return PairScore{}, err
	}

	score := PairScore{
		Similarity:           similarity,
		ScheduleOverlap:      scheduleOverlap(a.Lifestyle, b.Lifestyle),
		CleanlinessAlignment: cleanlinessAlignment(a.Lifestyle, b.Lifestyle),
		SocialAlignment:      socialAlignment(a.Lifestyle, b.Lifestyle),
		AcademicBonus:        academicBonus(a.Academic, b.Academic, weights),
		Penalty:              gapPenalty(a, b),
	}

	composite := weights.Personality*score.Similarity +
		weights.Schedule*score.ScheduleOverlap +
		weights.Cleanliness*score.CleanlinessAlignment +
		weights.Social*score.SocialAlignment -
		score.Penalty +
		score.AcademicBonus

	score.Composite = shared.FitScore(composite).Clamp()
	score.Explanation = explain(score, a, b)

	return score, nil
}

// scheduleOverlap возвращает долю пересечения окон сна.
// Окно, переходящее через полночь, нормализуется добавлением 24
// к его концу: [23, 7) -> [23, 31).
func scheduleOverlap(a, b profile.Lifestyle) float64 {
	startA, endA := normalizeWindow(a.SleepStart, a.SleepEnd)
	startB, endB := normalizeWindow(b.SleepStart, b.SleepEnd)

	durationA := endA - startA
	durationB := endB - startB
	maxDuration := math.Max(durationA, durationB)
	if maxDuration <= 0 {
		return 0
	}

	overlap := math.Min(endA, endB) - math.Max(startA, startB)
	if overlap < 0 {
		overlap = 0
	}

	return overlap / maxDuration
}

func normalizeWindow(start, end float64) (float64, float64) {
	if start > end {
		end += 24
	}
	return start, end
}

// cleanlinessAlignment: 1 - средний разрыв по комнате и кухне / 10.
func cleanlinessAlignment(a, b profile.Lifestyle) float64 {
	gap := (math.Abs(a.RoomCleanliness-b.RoomCleanliness) +
		math.Abs(a.KitchenCleanliness-b.KitchenCleanliness)) / 2.0
	return math.Max(0, 1-gap/10.0)
}

// socialAlignment: 1 - средний разрыв по гостям, шуму и вечеринкам / 10.
func socialAlignment(a, b profile.Lifestyle) float64 {
	gap := (math.Abs(a.GuestFrequency-b.GuestFrequency) +
		math.Abs(a.NoiseTolerance-b.NoiseTolerance) +
		math.Abs(a.PartyFrequency-b.PartyFrequency)) / 3.0
	return math.Max(0, 1-gap/10.0)
}

// academicBonus: бонус за общий вуз, бонус за общую программу ИЛИ
// общий факультет (взаимоисключающе), штраф за разницу выпуска
// сверх двух лет (ограничен 0.06).
func academicBonus(a, b profile.Academic, weights WeightSet) float64 {
	var bonus float64

	if a.InstitutionID != "" && a.InstitutionID == b.InstitutionID {
		bonus += weights.University
	}

	switch {
	case a.ProgrammeID != "" && a.ProgrammeID == b.ProgrammeID:
		bonus += weights.Programme
	case a.Faculty != "" && a.Faculty == b.Faculty:
		bonus += weights.Faculty
	}

	if gap := a.YearGap(b); gap > 2 {
		bonus -= math.Min(float64(gap-2)*weights.YearGapPenalty, maxYearPenalty)
	}

	return bonus
}

// gapPenalty - ступенчатые штрафы за большие разрывы в интенсивности
// учёбы, общительности и чертах личности. Сумма ограничена 0.5.
func gapPenalty(a, b *profile.Profile) float64 {
	var penalty float64

	studyGap := math.Abs(a.Lifestyle.StudyIntensity - b.Lifestyle.StudyIntensity)
	switch {
	case studyGap > 6:
		penalty += 0.15
	case studyGap > 3:
		penalty += 0.08
	}

	socialGap := math.Abs(a.Lifestyle.SocialLevel - b.Lifestyle.SocialLevel)
	switch {
	case socialGap > 7:
		penalty += 0.12
	case socialGap > 4:
		penalty += 0.06
	}

	traitGap := a.Traits.AverageGap(b.Traits)
	switch {
	case traitGap > 6:
		penalty += 0.10
	case traitGap > 3:
		penalty += 0.05
	}

	return math.Min(penalty, maxTotalPenalty)
}

// explain строит объяснение оценки: сильная сторона пары, категория
// риска и подсказки по домашним правилам.
func explain(score PairScore, a, b *profile.Profile) Explanation {
	return Explanation{
		TopAlignment: topAlignment(score),
		WatchOut:     watchOut(score, a, b),
		HouseRules:   houseRules(score),
	}
}

// topAlignment выбирает категорию с наибольшей под-оценкой.
// lifestyle - среднее чистоплотности и социальной близости.
func topAlignment(score PairScore) Category {
	lifestyle := (score.CleanlinessAlignment + score.SocialAlignment) / 2.0

	best := CategoryPersonality
	bestValue := score.Similarity

	candidates := []struct {
		category Category
		value    float64
	}{
		{CategorySchedule, score.ScheduleOverlap},
		{CategoryLifestyle, lifestyle},
		{CategorySocial, score.SocialAlignment},
		{CategoryAcademic, score.AcademicBonus},
	}
	for _, c := range candidates {
		if c.value > bestValue {
			best = c.category
			bestValue = c.value
		}
	}

	return best
}

// watchOut возвращает первую сработавшую категорию риска
// в фиксированном порядке приоритета.
func watchOut(score PairScore, a, b *profile.Profile) WatchOut {
	switch {
	case score.Penalty > 0.15:
		return WatchOutPreferences
	case score.CleanlinessAlignment < 0.3:
		return WatchOutCleanliness
	case score.ScheduleOverlap < 0.2:
		return WatchOutSchedule
	case a.Academic.YearGap(b.Academic) > 4:
		return WatchOutAcademic
	default:
		return WatchOutNone
	}
}

// houseRules - детерминированный список подсказок по порогам под-оценок.
func houseRules(score PairScore) []string {
	var hints []string

	if score.CleanlinessAlignment < 0.6 {
		hints = append(hints, HintCleaningSchedule)
	}
	if score.SocialAlignment < 0.5 {
		hints = append(hints, HintGuestPolicy)
	}
	if score.ScheduleOverlap < 0.3 {
		hints = append(hints, HintQuietHours)
	}

	if len(hints) == 0 {
		hints = append(hints, HintGeneric)
	}

	return hints
}
