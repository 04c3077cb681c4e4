package profile

// ══════════════════════════════════════════════════════════════════════════════
// ITEM BANK
//
// Статическая конфигурация банка вопросов: какой ключ анкеты попадает
// в какую координату вектора признаков, какие вопросы участвуют в
// проверке deal-breaker'ов и какие обязательны для допуска к подбору.
//
// Банк передаётся в Normalizer явно (не глобальная переменная), чтобы
// движок можно было тестировать на синтетических конфигурациях.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultVectorDimension - размерность вектора признаков по умолчанию.
// Часть координат зарезервирована под будущие вопросы анкеты.
const DefaultVectorDimension = 50

// Ключи вопросов анкеты.
const (
	// Режим сна (время в формате "HH:MM")
	KeySleepStart = "sleep_start"
	KeySleepEnd   = "sleep_end"

	// Быт и образ жизни (шкала 0-10)
	KeyRoomCleanliness    = "room_cleanliness"
	KeyKitchenCleanliness = "kitchen_cleanliness"
	KeyNoiseTolerance     = "noise_tolerance"
	KeyGuestFrequency     = "guest_frequency"
	KeyPartyFrequency     = "party_frequency"
	KeyStudyIntensity     = "study_intensity"
	KeySocialLevel        = "social_level"

	// Черты личности (шкала 0-10)
	KeyTraitExtraversion     = "trait_extraversion"
	KeyTraitAgreeableness    = "trait_agreeableness"
	KeyTraitConscientious    = "trait_conscientiousness"
	KeyTraitNeuroticism      = "trait_neuroticism"
	KeyTraitOpenness         = "trait_openness"

	// Стиль общения и быта (шкала 0-10)
	KeyCommDirectness    = "comm_directness"
	KeyCommConflict      = "comm_conflict_comfort"
	KeySharedMeals       = "shared_meals"
	KeySharedChores      = "shared_chores"
	KeyOvernightGuests   = "overnight_guests"
	KeyMusicLoudness     = "music_loudness"
	KeyBorrowingComfort  = "borrowing_comfort"
	KeyTemperaturePref   = "temperature_pref"

	// Множественный выбор (наличие -> 0/1)
	KeySharedInterests = "shared_interests"
	KeyLanguages       = "languages"

	// Deal-breaker вопросы (строковые варианты)
	KeySmoking     = "smoking"
	KeyPets        = "pets"
	KeyQuietHours  = "quiet_hours"
	KeyParty       = "party"
	KeyAlcoholHome = "alcohol_home"

	// Академические метаданные
	KeyDegreeLevel = "degree_level"
)

// Значения deal-breaker вопросов, участвующие в таблице конфликтов.
const (
	ValueNoSmoking        = "no_smoking"
	ValueSmokingOK        = "smoking_ok"
	ValueNoPets           = "no_pets"
	ValuePetsOK           = "pets_ok"
	ValueStrictQuietHours = "strict_quiet_hours"
	ValueFrequentlyNoisy  = "frequently_noisy"
	ValueNeverParty       = "never_party"
	ValueRarelyParty      = "rarely_party"
	ValueFrequentlyParty  = "frequently_party"
	ValueNoAlcohol        = "no_alcohol"
	ValueAlcoholOK        = "alcohol_ok"
)

// ItemBank - конфигурация банка вопросов.
type ItemBank struct {
	// Dimension - размерность вектора признаков.
	Dimension int

	// VectorIndex - отображение ключа вопроса в координату вектора.
	VectorIndex map[string]int

	// TimeKeys - ключи, значения которых являются временем суток
	// (нормализуются делением на 24, а не на 10).
	TimeKeys map[string]bool

	// DealBreakerKeys - вопросы, участвующие в проверке жёстких ограничений.
	DealBreakerKeys map[string]bool

	// RequiredKeys - вопросы, без ответа на которые кандидат
	// не допускается к подбору.
	RequiredKeys []string
}

// DefaultItemBank возвращает банк вопросов по умолчанию.
func DefaultItemBank() ItemBank {
	return ItemBank{
		Dimension: DefaultVectorDimension,
		VectorIndex: map[string]int{
			KeySleepStart:         0,
			KeySleepEnd:           1,
			KeyRoomCleanliness:    2,
			KeyKitchenCleanliness: 3,
			KeyNoiseTolerance:     4,
			KeyGuestFrequency:     5,
			KeyPartyFrequency:     6,
			KeyStudyIntensity:     7,
			KeySocialLevel:        8,
			KeyTraitExtraversion:  9,
			KeyTraitAgreeableness: 10,
			KeyTraitConscientious: 11,
			KeyTraitNeuroticism:   12,
			KeyTraitOpenness:      13,
			KeyCommDirectness:     14,
			KeyCommConflict:       15,
			KeySharedMeals:        16,
			KeySharedChores:       17,
			KeyOvernightGuests:    18,
			KeyMusicLoudness:      19,
			KeyBorrowingComfort:   20,
			KeyTemperaturePref:    21,
			KeySharedInterests:    22,
			KeyLanguages:          23,
		},
		TimeKeys: map[string]bool{
			KeySleepStart: true,
			KeySleepEnd:   true,
		},
		DealBreakerKeys: map[string]bool{
			KeySmoking:     true,
			KeyPets:        true,
			KeyQuietHours:  true,
			KeyParty:       true,
			KeyAlcoholHome: true,
		},
		RequiredKeys: []string{
			KeyDegreeLevel,
			KeySleepStart,
			KeySleepEnd,
			KeyRoomCleanliness,
			KeyNoiseTolerance,
			KeyTraitExtraversion,
			KeyTraitAgreeableness,
			KeyTraitConscientious,
			KeyTraitNeuroticism,
			KeyTraitOpenness,
			KeySmoking,
			KeyPets,
		},
	}
}

// Validate проверяет согласованность конфигурации банка.
func (b ItemBank) Validate() error {
	if b.Dimension <= 0 {
		return errInvalidBank("dimension must be positive")
	}
	for key, idx := range b.VectorIndex {
		if idx < 0 || idx >= b.Dimension {
			return errInvalidBank("vector index out of range for key " + key)
		}
	}
	return nil
}
