package matching

import (
	"fmt"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEAL-BREAKER FILTER
//
// Жёсткие ограничения: нарушение любого из них исключает пару из
// подбора независимо от оценки совместимости. Фильтр чистый и
// симметричный: Check(A,B) и Check(B,A) дают одинаковый вердикт.
//
// Таблица конфликтов - подменяемая конфигурация, а не исчерпывающий
// список: новые правила добавляются без изменения самого фильтра.
// ══════════════════════════════════════════════════════════════════════════════

// ConflictRule - правило конфликта по одному deal-breaker вопросу.
// Конфликтом считается только точное сочетание (ValueA, ValueB)
// в любом порядке; все остальные комбинации нейтральны.
type ConflictRule struct {
	// ItemID - ключ вопроса.
	ItemID string

	// ValueA, ValueB - конфликтующая пара значений.
	ValueA string
	ValueB string

	// Reason - формулировка конфликта для отчёта.
	Reason string
}

// matches проверяет пару значений с учётом симметрии.
func (r ConflictRule) matches(a, b string) bool {
	return (a == r.ValueA && b == r.ValueB) || (a == r.ValueB && b == r.ValueA)
}

// DefaultConflictRules возвращает таблицу конфликтов по умолчанию.
func DefaultConflictRules() []ConflictRule {
	return []ConflictRule{
		{
			ItemID: profile.KeyQuietHours,
			ValueA: profile.ValueStrictQuietHours,
			ValueB: profile.ValueFrequentlyNoisy,
			Reason: "strict quiet hours vs frequently noisy",
		},
		{
			ItemID: profile.KeySmoking,
			ValueA: profile.ValueNoSmoking,
			ValueB: profile.ValueSmokingOK,
			Reason: "non-smoker vs smoker",
		},
		{
			ItemID: profile.KeyPets,
			ValueA: profile.ValueNoPets,
			ValueB: profile.ValuePetsOK,
			Reason: "no pets vs pets allowed",
		},
		{
			ItemID: profile.KeyParty,
			ValueA: profile.ValueNeverParty,
			ValueB: profile.ValueFrequentlyParty,
			Reason: "never parties vs frequently parties",
		},
		{
			ItemID: profile.KeyParty,
			ValueA: profile.ValueRarelyParty,
			ValueB: profile.ValueFrequentlyParty,
			Reason: "rarely parties vs frequently parties",
		},
		{
			ItemID: profile.KeyAlcoholHome,
			ValueA: profile.ValueNoAlcohol,
			ValueB: profile.ValueAlcoholOK,
			Reason: "no alcohol at home vs alcohol allowed",
		},
	}
}

// CheckResult - результат проверки пары на жёсткие ограничения.
type CheckResult struct {
	// CanMatch - true, если конфликтов нет.
	CanMatch bool

	// Reasons - положительные причины совместимости (для отчёта).
	Reasons []string

	// Conflicts - найденные конфликты (человекочитаемые).
	Conflicts []string
}

// Filter проверяет пары профилей на жёсткие ограничения.
type Filter struct {
	rules []ConflictRule
}

// NewFilter создаёт фильтр с заданной таблицей конфликтов.
func NewFilter(rules []ConflictRule) *Filter {
	return &Filter{rules: rules}
}

// MaxGraduationYearGap - максимально допустимая разница лет выпуска.
const MaxGraduationYearGap = 3

// Check проверяет пару профилей. Решение о конфликте короткое,
// но причины и конфликты собираются от всех проверок целиком -
// отчёт должен быть полным для аудита.
func (f *Filter) Check(a, b *profile.Profile) CheckResult {
	result := CheckResult{}

	// 1. Город
	f.checkLocation(a, b, &result)

	// 2. Конфликты deal-breaker вопросов
	f.checkItems(a, b, &result)

	// 3. Академическая совместимость
	f.checkAcademic(a, b, &result)

	result.CanMatch = len(result.Conflicts) == 0
	return result
}

// checkLocation: общий город - совместимы; разные города - совместимы,
// только если ОБА готовы к межгородскому соседству.
func (f *Filter) checkLocation(a, b *profile.Profile, result *CheckResult) {
	cityA, cityB := a.Location.City, b.Location.City

	switch {
	case !cityA.IsEmpty() && cityA.Equals(cityB):
		result.Reasons = append(result.Reasons, fmt.Sprintf("both in %s", cityA))
	case a.Location.OpenToCrossCity && b.Location.OpenToCrossCity:
		result.Reasons = append(result.Reasons, "both open to cross-city living")
	default:
		result.Conflicts = append(result.Conflicts, "different cities and not open to cross-city living")
	}
}

// checkItems применяет таблицу конфликтов к вопросам, на которые
// ответили оба кандидата. Комбинации вне таблицы нейтральны.
func (f *Filter) checkItems(a, b *profile.Profile, result *CheckResult) {
	for _, rule := range f.rules {
		valueA, okA := a.DealBreakerValue(rule.ItemID)
		valueB, okB := b.DealBreakerValue(rule.ItemID)
		if !okA || !okB {
			continue
		}
		if rule.matches(valueA, valueB) {
			result.Conflicts = append(result.Conflicts, rule.Reason)
		}
	}
}

// checkAcademic: общий вуз/уровень - положительные причины (не
// обязательные); разница выпуска больше трёх лет - конфликт,
// не больше года - положительная причина.
func (f *Filter) checkAcademic(a, b *profile.Profile, result *CheckResult) {
	if a.Academic.InstitutionID != "" && a.Academic.InstitutionID == b.Academic.InstitutionID {
		result.Reasons = append(result.Reasons, "same institution")
	}
	if a.Academic.DegreeLevel != "" && a.Academic.DegreeLevel == b.Academic.DegreeLevel {
		result.Reasons = append(result.Reasons, "same degree level")
	}

	gap := a.Academic.YearGap(b.Academic)
	switch {
	case gap > MaxGraduationYearGap:
		result.Conflicts = append(result.Conflicts,
			fmt.Sprintf("graduation years are %d years apart", gap))
	case gap <= 1 && a.Academic.HasGraduationYear() && b.Academic.HasGraduationYear():
		result.Reasons = append(result.Reasons, "graduating around the same time")
	}
}
