package matching

import (
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH RECORDS
// Результаты массового прогона подбора, готовые к сохранению.
// ══════════════════════════════════════════════════════════════════════════════

// MatchKind определяет вид записи подбора.
type MatchKind string

const (
	// MatchKindPair - пара из двух кандидатов.
	MatchKindPair MatchKind = "pair"

	// MatchKindGroup - группа из k кандидатов.
	MatchKindGroup MatchKind = "group"
)

// IsValid проверяет корректность вида записи.
func (k MatchKind) IsValid() bool {
	return k == MatchKindPair || k == MatchKindGroup
}

// MatchRecord - запись результата массового прогона.
// Locked выставляется только внешним действием подтверждения,
// никогда самим прогоном подбора.
type MatchRecord struct {
	// ID - уникальный идентификатор записи (UUID).
	ID string

	// RunID - идентификатор прогона, породившего запись.
	RunID shared.RunID

	// Kind - пара или группа.
	Kind MatchKind

	// MemberIDs - участники (2 для пары, k для группы).
	MemberIDs []shared.CandidateID

	// FitScore - итоговая оценка (для группы - средняя по парам).
	FitScore shared.FitScore

	// FitIndex - оценка в целых процентах (0-100).
	FitIndex shared.FitIndex

	// SectionScores - под-оценки по секциям (только для пар).
	SectionScores map[string]float64

	// Reasons - человекочитаемые причины совместимости.
	Reasons []string

	// Locked - закреплено внешним подтверждением.
	Locked bool

	// CreatedAt - когда создана запись.
	CreatedAt time.Time
}

// NewPairRecordParams - параметры создания парной записи.
type NewPairRecordParams struct {
	ID      string
	RunID   shared.RunID
	Pair    ScoredPair
	Reasons []string
}

// NewPairRecord создаёт запись пары.
func NewPairRecord(params NewPairRecordParams) (*MatchRecord, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("matching", "NewPairRecord", shared.ErrEmptyValue, "record id is required")
	}
	if params.Pair.A == params.Pair.B {
		return nil, shared.ErrSelfPair
	}

	score := params.Pair.Score.Composite
	return &MatchRecord{
		ID:            params.ID,
		RunID:         params.RunID,
		Kind:          MatchKindPair,
		MemberIDs:     []shared.CandidateID{params.Pair.A, params.Pair.B},
		FitScore:      score,
		FitIndex:      score.Index(),
		SectionScores: params.Pair.Score.SectionScores(),
		Reasons:       params.Reasons,
		Locked:        false,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// NewGroupRecordParams - параметры создания групповой записи.
type NewGroupRecordParams struct {
	ID    string
	RunID shared.RunID
	Group Group
}

// NewGroupRecord создаёт запись группы.
func NewGroupRecord(params NewGroupRecordParams) (*MatchRecord, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("matching", "NewGroupRecord", shared.ErrEmptyValue, "record id is required")
	}
	if len(params.Group.Members) < 2 {
		return nil, shared.NewDomainError("matching", "NewGroupRecord", shared.ErrInvalidInput, "group must have at least 2 members")
	}

	members := make([]shared.CandidateID, len(params.Group.Members))
	copy(members, params.Group.Members)

	return &MatchRecord{
		ID:        params.ID,
		RunID:     params.RunID,
		Kind:      MatchKindGroup,
		MemberIDs: members,
		FitScore:  params.Group.AverageFit,
		FitIndex:  params.Group.AverageFit.Index(),
		Locked:    false,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Lock закрепляет запись. Вызывается только внешним подтверждением.
func (r *MatchRecord) Lock() {
	r.Locked = true
}

// InvolvesCandidate проверяет, участвует ли кандидат в записи.
func (r *MatchRecord) InvolvesCandidate(id shared.CandidateID) bool {
	for _, member := range r.MemberIDs {
		if member == id {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN SUMMARY & DIAGNOSTICS
// ══════════════════════════════════════════════════════════════════════════════

// RunMode определяет режим прогона.
type RunMode string

const (
	// RunModePairs - массовый 1:1 подбор.
	RunModePairs RunMode = "pairs"

	// RunModeGroups - формирование групп.
	RunModeGroups RunMode = "groups"

	// RunModeSuggestions - топ-N предложений на кандидата.
	RunModeSuggestions RunMode = "suggestions"
)

// IsValid проверяет корректность режима.
func (m RunMode) IsValid() bool {
	return m == RunModePairs || m == RunModeGroups || m == RunModeSuggestions
}

// Diagnostics - диагностика прогона. Пустой результат - не ошибка:
// диагностика показывает оператору, на каком этапе опустела воронка.
type Diagnostics struct {
	// CandidatesLoaded - сколько кандидатов загружено из хранилища.
	CandidatesLoaded int

	// CandidatesEligible - сколько прошло проверку полноты анкеты.
	CandidatesEligible int

	// PairsConsidered - сколько неупорядоченных пар рассмотрено.
	PairsConsidered int

	// DealBreakerBlocked - сколько пар отсеял фильтр жёстких ограничений.
	DealBreakerBlocked int

	// BelowThreshold - сколько пар не добрало до порога оценки.
	BelowThreshold int

	// BlocklistExcluded - сколько пар исключено блок-листами.
	BlocklistExcluded int

	// ScoreMin, ScoreMax, ScoreMean - статистика оценок прошедших пар.
	ScoreMin  float64
	ScoreMax  float64
	ScoreMean float64

	// ScoreHistogram - гистограмма оценок по десяти корзинам [0.0-0.1) ... [0.9-1.0].
	ScoreHistogram [10]int

	// EmptiedAtStage - этап, на котором воронка опустела
	// (пусто = результат непустой).
	EmptiedAtStage string
}

// ObserveScore учитывает оценку пары в статистике.
func (d *Diagnostics) ObserveScore(score float64) {
	count := d.scoreCount()
	if count == 0 {
		d.ScoreMin = score
		d.ScoreMax = score
	}
	if score < d.ScoreMin {
		d.ScoreMin = score
	}
	if score > d.ScoreMax {
		d.ScoreMax = score
	}

	bucket := int(score * 10)
	if bucket > 9 {
		bucket = 9
	}
	if bucket < 0 {
		bucket = 0
	}
	d.ScoreMean = (d.ScoreMean*float64(count) + score) / float64(count+1)
	d.ScoreHistogram[bucket]++
}

func (d *Diagnostics) scoreCount() int {
	total := 0
	for _, c := range d.ScoreHistogram {
		total += c
	}
	return total
}

// RunSummary - сводка прогона. Каждая сохранённая запись ссылается
// на прогон, у которого обязательно есть сводка.
type RunSummary struct {
	// RunID - идентификатор прогона (UUID).
	RunID shared.RunID

	// Mode - режим прогона.
	Mode RunMode

	// CohortDescription - использованный фильтр когорты (для оператора).
	CohortDescription string

	// RecordCount - сколько записей породил прогон.
	RecordCount int

	// Diagnostics - диагностика воронки.
	Diagnostics Diagnostics

	// StartedAt, CompletedAt - границы прогона.
	StartedAt   time.Time
	CompletedAt time.Time
}
