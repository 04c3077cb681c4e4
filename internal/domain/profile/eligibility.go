package profile

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY GATE
//
// Чистый предикат: достаточно ли у кандидата данных для участия в подборе.
// Кандидат допускается, только если ответил на все обязательные вопросы
// банка непустыми значениями.
// ══════════════════════════════════════════════════════════════════════════════

// EligibilityGate проверяет полноту ответов анкеты.
type EligibilityGate struct {
	required []string
}

// NewEligibilityGate создаёт гейт по списку обязательных вопросов банка.
func NewEligibilityGate(bank ItemBank) *EligibilityGate {
	required := make([]string, len(bank.RequiredKeys))
	copy(required, bank.RequiredKeys)
	return &EligibilityGate{required: required}
}

// IsEligible возвращает true, если все обязательные вопросы отвечены.
func (g *EligibilityGate) IsEligible(answers RawAnswers) bool {
	return len(g.MissingKeys(answers)) == 0
}

// MissingKeys возвращает список обязательных вопросов без ответа.
// Пустой список означает, что кандидат допущен.
func (g *EligibilityGate) MissingKeys(answers RawAnswers) []string {
	var missing []string
	for _, key := range g.required {
		if !answers.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}
