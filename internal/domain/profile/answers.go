package profile

import (
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER VALUES
//
// Ответы анкеты приходят в "сыром" виде: иногда как голое значение
// ("7", 7, "23:00"), иногда обёрнутые в объект {"value": ...}, иногда
// как список строк. AnswerValue разворачивает это ОДИН раз при
// нормализации - дальше по коду никто не угадывает форму данных.
// ══════════════════════════════════════════════════════════════════════════════

// RawAnswers - сырая карта ответов анкеты кандидата (ключ вопроса -> значение).
type RawAnswers map[string]any

// AnswerKind определяет тип разобранного значения ответа.
type AnswerKind int

const (
	// AnswerEmpty - значение отсутствует или не распознано.
	AnswerEmpty AnswerKind = iota

	// AnswerScalar - числовое значение (шкала 0-10 и т.п.).
	AnswerScalar

	// AnswerText - строковое значение (варианты ответа, "HH:MM").
	AnswerText

	// AnswerList - список строковых значений (множественный выбор).
	AnswerList
)

// AnswerValue - разобранное значение одного ответа анкеты.
type AnswerValue struct {
	Kind   AnswerKind
	Scalar float64
	Text   string
	List   []string
}

// ParseAnswer разворачивает сырое значение в AnswerValue.
// Обёртка {"value": ...} снимается рекурсивно (один уровень - больше
// источник не даёт). Нераспознанные формы дают AnswerEmpty, не ошибку.
func ParseAnswer(raw any) AnswerValue {
	switch v := raw.(type) {
	case nil:
		return AnswerValue{Kind: AnswerEmpty}
	case map[string]any:
		// Форма {"value": ...}
		if inner, ok := v["value"]; ok {
			return ParseAnswer(inner)
		}
		return AnswerValue{Kind: AnswerEmpty}
	case float64:
		return AnswerValue{Kind: AnswerScalar, Scalar: v}
	case float32:
		return AnswerValue{Kind: AnswerScalar, Scalar: float64(v)}
	case int:
		return AnswerValue{Kind: AnswerScalar, Scalar: float64(v)}
	case int64:
		return AnswerValue{Kind: AnswerScalar, Scalar: float64(v)}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return AnswerValue{Kind: AnswerEmpty}
		}
		// Числовая строка тоже считается скаляром
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return AnswerValue{Kind: AnswerScalar, Scalar: f}
		}
		return AnswerValue{Kind: AnswerText, Text: s}
	case []string:
		if len(v) == 0 {
			return AnswerValue{Kind: AnswerEmpty}
		}
		return AnswerValue{Kind: AnswerList, List: v}
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				list = append(list, strings.TrimSpace(s))
			}
		}
		if len(list) == 0 {
			return AnswerValue{Kind: AnswerEmpty}
		}
		return AnswerValue{Kind: AnswerList, List: list}
	default:
		return AnswerValue{Kind: AnswerEmpty}
	}
}

// IsEmpty возвращает true, если значение отсутствует.
func (a AnswerValue) IsEmpty() bool {
	return a.Kind == AnswerEmpty
}

// AsScalar возвращает числовое значение и признак успеха.
func (a AnswerValue) AsScalar() (float64, bool) {
	if a.Kind == AnswerScalar {
		return a.Scalar, true
	}
	return 0, false
}

// AsText возвращает строковое значение ответа.
// Скаляры форматируются обратно в строку - таблица конфликтов
// deal-breaker сравнивает только строки.
func (a AnswerValue) AsText() (string, bool) {
	switch a.Kind {
	case AnswerText:
		return a.Text, true
	case AnswerScalar:
		return strconv.FormatFloat(a.Scalar, 'f', -1, 64), true
	default:
		return "", false
	}
}

// AsHourOfDay разбирает значение как время суток и возвращает час
// в виде дробного числа (23:30 -> 23.5). Некорректный формат
// даёт (0, false), никогда не ошибку.
func (a AnswerValue) AsHourOfDay() (float64, bool) {
	switch a.Kind {
	case AnswerScalar:
		if a.Scalar >= 0 && a.Scalar < 24 {
			return a.Scalar, true
		}
		return 0, false
	case AnswerText:
		return parseHourMinute(a.Text)
	default:
		return 0, false
	}
}

// Contains проверяет наличие значения в списочном ответе.
func (a AnswerValue) Contains(value string) bool {
	if a.Kind != AnswerList {
		return false
	}
	for _, item := range a.List {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

// parseHourMinute разбирает строку "HH:MM" в дробный час.
func parseHourMinute(s string) (float64, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}

	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}

	return float64(hours) + float64(minutes)/60.0, true
}

// Answer возвращает разобранное значение по ключу вопроса.
func (r RawAnswers) Answer(key string) AnswerValue {
	raw, ok := r[key]
	if !ok {
		return AnswerValue{Kind: AnswerEmpty}
	}
	return ParseAnswer(raw)
}

// Has проверяет, что ответ на вопрос присутствует и не пустой.
func (r RawAnswers) Has(key string) bool {
	return !r.Answer(key).IsEmpty()
}
