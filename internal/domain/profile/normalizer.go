package profile

import (
	"sort"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NORMALIZER
//
// Превращает сырую карту ответов анкеты в профиль с вектором признаков.
// Чистая функция над данными: никаких побочных эффектов, никаких ошибок -
// битые значения дают нулевой вклад, нераспознанные ключи игнорируются
// (прямая совместимость с будущими версиями анкеты).
// ══════════════════════════════════════════════════════════════════════════════

// Normalizer строит профили кандидатов по конфигурации банка вопросов.
type Normalizer struct {
	bank ItemBank
}

// NewNormalizer создаёт Normalizer с заданным банком вопросов.
func NewNormalizer(bank ItemBank) *Normalizer {
	return &Normalizer{bank: bank}
}

// Normalize строит профиль кандидата из сырых ответов и метаданных.
func (n *Normalizer) Normalize(candidateID shared.CandidateID, answers RawAnswers, academic Academic, location Location) *Profile {
	p := &Profile{
		CandidateID:  candidateID,
		Vector:       n.buildVector(answers),
		Lifestyle:    n.extractLifestyle(answers),
		Traits:       n.extractTraits(answers),
		Academic:     academic,
		Location:     location,
		DealBreakers: n.extractDealBreakers(answers),
	}
	return p
}

// buildVector наполняет вектор признаков по таблице ключ -> координата.
// Числа шкалы 0-10 делятся на 10, время суток - на 24, списки дают
// флаг присутствия 0/1. После заполнения вектор L2-нормализуется.
func (n *Normalizer) buildVector(answers RawAnswers) []float64 {
	vec := make([]float64, n.bank.Dimension)

	for key, idx := range n.bank.VectorIndex {
		value := answers.Answer(key)
		if value.IsEmpty() {
			continue
		}

		switch {
		case n.bank.TimeKeys[key]:
			if hour, ok := value.AsHourOfDay(); ok {
				vec[idx] = hour / 24.0
			}
		case value.Kind == AnswerList:
			vec[idx] = 1.0
		case value.Kind == AnswerScalar:
			vec[idx] = shared.Clamp01(value.Scalar / 10.0)
		}
	}

	L2Normalize(vec)
	return vec
}

// extractLifestyle извлекает скалярные бытовые характеристики.
func (n *Normalizer) extractLifestyle(answers RawAnswers) Lifestyle {
	ls := Lifestyle{
		RoomCleanliness:    scalarAnswer(answers, KeyRoomCleanliness),
		KitchenCleanliness: scalarAnswer(answers, KeyKitchenCleanliness),
		NoiseTolerance:     scalarAnswer(answers, KeyNoiseTolerance),
		GuestFrequency:     scalarAnswer(answers, KeyGuestFrequency),
		PartyFrequency:     scalarAnswer(answers, KeyPartyFrequency),
		StudyIntensity:     scalarAnswer(answers, KeyStudyIntensity),
		SocialLevel:        scalarAnswer(answers, KeySocialLevel),
	}

	if hour, ok := answers.Answer(KeySleepStart).AsHourOfDay(); ok {
		ls.SleepStart = hour
	}
	if hour, ok := answers.Answer(KeySleepEnd).AsHourOfDay(); ok {
		ls.SleepEnd = hour
	}

	return ls
}

// extractTraits извлекает пять черт личности.
func (n *Normalizer) extractTraits(answers RawAnswers) Traits {
	return Traits{
		Extraversion:      scalarAnswer(answers, KeyTraitExtraversion),
		Agreeableness:     scalarAnswer(answers, KeyTraitAgreeableness),
		Conscientiousness: scalarAnswer(answers, KeyTraitConscientious),
		Neuroticism:       scalarAnswer(answers, KeyTraitNeuroticism),
		Openness:          scalarAnswer(answers, KeyTraitOpenness),
	}
}

// extractDealBreakers пересекает ключи ответов с множеством
// deal-breaker вопросов банка.
func (n *Normalizer) extractDealBreakers(answers RawAnswers) []DealBreakerItem {
	items := make([]DealBreakerItem, 0, len(n.bank.DealBreakerKeys))
	for key := range n.bank.DealBreakerKeys {
		value := answers.Answer(key)
		text, ok := value.AsText()
		if !ok {
			continue
		}
		items = append(items, DealBreakerItem{ItemID: key, Value: text})
	}
	// Стабильный порядок для воспроизводимости отчётов
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}

// scalarAnswer возвращает числовой ответ, ограниченный шкалой 0-10.
// Отсутствующие и битые значения дают 0.
func scalarAnswer(answers RawAnswers, key string) float64 {
	v, ok := answers.Answer(key).AsScalar()
	if !ok {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
