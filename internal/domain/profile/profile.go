// Package profile содержит доменную модель профиля кандидата на соседство.
// Профиль строится один раз за прогон подбора из текущего снимка ответов
// анкеты и внутри прогона не изменяется.
package profile

import (
	"math"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Lifestyle - скалярные бытовые характеристики кандидата.
type Lifestyle struct {
	// SleepStart, SleepEnd - окно сна, час суток в дробном виде (23.5 = 23:30).
	SleepStart float64
	SleepEnd   float64

	// RoomCleanliness, KitchenCleanliness - чистоплотность (0-10).
	RoomCleanliness    float64
	KitchenCleanliness float64

	// NoiseTolerance - терпимость к шуму (0-10).
	NoiseTolerance float64

	// GuestFrequency - как часто зовёт гостей (0-10).
	GuestFrequency float64

	// PartyFrequency - как часто участвует в вечеринках (0-10).
	PartyFrequency float64

	// StudyIntensity - интенсивность учёбы (0-10).
	StudyIntensity float64

	// SocialLevel - общий уровень общительности (0-10).
	SocialLevel float64
}

// Traits - пять черт личности по шкале 0-10.
type Traits struct {
	Extraversion      float64
	Agreeableness     float64
	Conscientiousness float64
	Neuroticism       float64
	Openness          float64
}

// AverageGap возвращает средний модуль разницы по пяти чертам.
func (t Traits) AverageGap(other Traits) float64 {
	sum := math.Abs(t.Extraversion-other.Extraversion) +
		math.Abs(t.Agreeableness-other.Agreeableness) +
		math.Abs(t.Conscientiousness-other.Conscientiousness) +
		math.Abs(t.Neuroticism-other.Neuroticism) +
		math.Abs(t.Openness-other.Openness)
	return sum / 5.0
}

// Academic - необязательные академические метаданные кандидата.
type Academic struct {
	// InstitutionID - идентификатор вуза (пустой = неизвестен).
	InstitutionID string

	// DegreeLevel - уровень обучения (bachelor, master, phd).
	DegreeLevel string

	// ProgrammeID - идентификатор программы обучения.
	ProgrammeID string

	// Faculty - факультет.
	Faculty string

	// GraduationYear - ожидаемый год выпуска (0 = неизвестен).
	GraduationYear int
}

// HasGraduationYear проверяет, известен ли год выпуска.
func (a Academic) HasGraduationYear() bool {
	return a.GraduationYear > 0
}

// YearGap возвращает модуль разницы лет выпуска.
// Если год неизвестен хотя бы у одного, разница считается нулевой.
func (a Academic) YearGap(other Academic) int {
	if !a.HasGraduationYear() || !other.HasGraduationYear() {
		return 0
	}
	gap := a.GraduationYear - other.GraduationYear
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// Location - где кандидат ищет жильё.
type Location struct {
	// City - город (нормализованный).
	City shared.City

	// OpenToCrossCity - готов рассматривать соседа из другого города.
	OpenToCrossCity bool
}

// DealBreakerItem - помеченный ответ, участвующий в проверке
// жёстких ограничений.
type DealBreakerItem struct {
	ItemID string
	Value  string
}

// Profile - профиль кандидата, готовый к подбору.
// Инвариант: Vector либо полностью нулевой (нет данных), либо имеет
// единичную L2-норму.
type Profile struct {
	// CandidateID - идентификатор кандидата.
	CandidateID shared.CandidateID

	// Vector - вектор признаков фиксированной размерности.
	Vector []float64

	// Lifestyle - бытовые характеристики.
	Lifestyle Lifestyle

	// Traits - черты личности.
	Traits Traits

	// Academic - академические метаданные.
	Academic Academic

	// Location - город и готовность к переезду.
	Location Location

	// DealBreakers - ответы, участвующие в жёстких ограничениях.
	DealBreakers []DealBreakerItem
}

// HasVector возвращает true, если вектор признаков содержит данные.
func (p *Profile) HasVector() bool {
	for _, v := range p.Vector {
		if v != 0 {
			return true
		}
	}
	return false
}

// DealBreakerValue возвращает значение deal-breaker ответа по ключу.
func (p *Profile) DealBreakerValue(itemID string) (string, bool) {
	for _, item := range p.DealBreakers {
		if item.ItemID == itemID {
			return item.Value, true
		}
	}
	return "", false
}

// ══════════════════════════════════════════════════════════════════════════════
// VECTOR MATH
// ══════════════════════════════════════════════════════════════════════════════

// L2Normalize нормализует вектор до единичной длины на месте.
// Полностью нулевой вектор остаётся нулевым - это сигнал "нет данных".
func L2Normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}

	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine возвращает косинусное сходство двух векторов.
// Нулевой вектор с любой стороны даёт сходство 0.
// Несовпадение размерностей - нарушение контракта, ошибка.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, shared.ErrVectorDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

func errInvalidBank(msg string) error {
	return shared.NewDomainError("profile", "ValidateItemBank", shared.ErrInvalidInput, msg)
}
