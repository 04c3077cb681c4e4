package matching

import (
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH SUGGESTIONS
//
// Предложение - ещё не закреплённый подбор, ожидающий согласия
// участников. Машина состояний:
//
//   pending -> accepted  (кто-то принял, либо оценка прошла авто-порог)
//   accepted -> confirmed (приняли ВСЕ участники)
//   pending|accepted -> declined (кто-то отклонил)
//   pending|accepted -> expired  (вышел срок без подтверждения)
//
// confirmed и declined - терминальные. Переход в confirmed допустим
// только когда AcceptedBy в точности совпадает с множеством участников
// (без дубликатов и посторонних).
// ══════════════════════════════════════════════════════════════════════════════

// SuggestionStatus определяет статус предложения.
type SuggestionStatus string

const (
	// SuggestionStatusPending - ожидает ответа участников.
	SuggestionStatusPending SuggestionStatus = "pending"

	// SuggestionStatusAccepted - принято частью участников.
	SuggestionStatusAccepted SuggestionStatus = "accepted"

	// SuggestionStatusDeclined - кто-то отклонил.
	SuggestionStatusDeclined SuggestionStatus = "declined"

	// SuggestionStatusExpired - истёк срок ответа.
	SuggestionStatusExpired SuggestionStatus = "expired"

	// SuggestionStatusConfirmed - приняли все участники.
	SuggestionStatusConfirmed SuggestionStatus = "confirmed"
)

// IsValid проверяет корректность статуса.
func (s SuggestionStatus) IsValid() bool {
	switch s {
	case SuggestionStatusPending, SuggestionStatusAccepted, SuggestionStatusDeclined,
		SuggestionStatusExpired, SuggestionStatusConfirmed:
		return true
	default:
		return false
	}
}

// IsFinal возвращает true для терминальных статусов.
func (s SuggestionStatus) IsFinal() bool {
	return s == SuggestionStatusConfirmed || s == SuggestionStatusDeclined
}

// IsOpen возвращает true, если предложение ещё ждёт ответа.
func (s SuggestionStatus) IsOpen() bool {
	return s == SuggestionStatusPending || s == SuggestionStatusAccepted
}

// MatchSuggestion - предложение подбора.
type MatchSuggestion struct {
	// ID - уникальный идентификатор предложения (UUID).
	ID string

	// RunID - прогон, породивший предложение.
	RunID shared.RunID

	// Kind - пара или группа.
	Kind MatchKind

	// MemberIDs - участники предложения.
	MemberIDs []shared.CandidateID

	// FitIndex - оценка совместимости (0-100).
	FitIndex shared.FitIndex

	// SectionScores - под-оценки по секциям.
	SectionScores map[string]float64

	// Reasons - причины совместимости.
	Reasons []string

	// Status - текущий статус.
	Status SuggestionStatus

	// AcceptedBy - участники, принявшие предложение.
	AcceptedBy []shared.CandidateID

	// CreatedAt - когда создано.
	CreatedAt time.Time

	// ExpiresAt - когда истекает без подтверждения.
	ExpiresAt time.Time
}

// NewSuggestionParams - параметры создания предложения.
type NewSuggestionParams struct {
	ID            string
	RunID         shared.RunID
	Kind          MatchKind
	MemberIDs     []shared.CandidateID
	FitIndex      shared.FitIndex
	SectionScores map[string]float64
	Reasons       []string
	TTL           time.Duration
}

// NewMatchSuggestion создаёт предложение в статусе pending.
func NewMatchSuggestion(params NewSuggestionParams) (*MatchSuggestion, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("matching", "NewSuggestion", shared.ErrEmptyValue, "suggestion id is required")
	}
	if !params.Kind.IsValid() {
		return nil, shared.NewDomainError("matching", "NewSuggestion", shared.ErrInvalidInput, "invalid suggestion kind")
	}
	if len(params.MemberIDs) < 2 {
		return nil, shared.NewDomainError("matching", "NewSuggestion", shared.ErrInvalidInput, "suggestion needs at least 2 members")
	}
	if hasDuplicates(params.MemberIDs) {
		return nil, shared.NewDomainError("matching", "NewSuggestion", shared.ErrInvalidInput, "duplicate member ids")
	}
	if !params.FitIndex.IsValid() {
		return nil, shared.NewDomainError("matching", "NewSuggestion", shared.ErrValueOutOfRange, "fit index out of range")
	}
	if params.TTL <= 0 {
		return nil, shared.NewDomainError("matching", "NewSuggestion", shared.ErrInvalidInput, "suggestion ttl must be positive")
	}

	members := make([]shared.CandidateID, len(params.MemberIDs))
	copy(members, params.MemberIDs)

	now := time.Now().UTC()
	return &MatchSuggestion{
		ID:            params.ID,
		RunID:         params.RunID,
		Kind:          params.Kind,
		MemberIDs:     members,
		FitIndex:      params.FitIndex,
		SectionScores: params.SectionScores,
		Reasons:       params.Reasons,
		Status:        SuggestionStatusPending,
		AcceptedBy:    make([]shared.CandidateID, 0, len(members)),
		CreatedAt:     now,
		ExpiresAt:     now.Add(params.TTL),
	}, nil
}

// Quality возвращает качество предложения.
func (s *MatchSuggestion) Quality() shared.MatchQuality {
	return s.FitIndex.Quality()
}

// InvolvesCandidate проверяет участие кандидата.
func (s *MatchSuggestion) InvolvesCandidate(id shared.CandidateID) bool {
	for _, member := range s.MemberIDs {
		if member == id {
			return true
		}
	}
	return false
}

// HasAccepted проверяет, принял ли кандидат предложение.
func (s *MatchSuggestion) HasAccepted(id shared.CandidateID) bool {
	for _, member := range s.AcceptedBy {
		if member == id {
			return true
		}
	}
	return false
}

// Accept регистрирует согласие участника. Когда приняли все,
// предложение переходит в confirmed.
func (s *MatchSuggestion) Accept(id shared.CandidateID, now time.Time) error {
	if s.Status.IsFinal() {
		return shared.ErrSuggestionFinalized
	}
	if s.Status == SuggestionStatusExpired || now.After(s.ExpiresAt) {
		s.Status = SuggestionStatusExpired
		return shared.ErrSuggestionExpired
	}
	if !s.InvolvesCandidate(id) {
		return shared.ErrNotSuggestionMember
	}

	if !s.HasAccepted(id) {
		s.AcceptedBy = append(s.AcceptedBy, id)
	}

	if s.acceptedAll() {
		s.Status = SuggestionStatusConfirmed
	} else {
		s.Status = SuggestionStatusAccepted
	}
	return nil
}

// AutoAccept поднимает статус до accepted от имени всех участников -
// используется оркестратором, когда оценка проходит авто-порог.
// Подтверждение (confirmed) остаётся за явным действием участников.
func (s *MatchSuggestion) AutoAccept() {
	if !s.Status.IsOpen() {
		return
	}
	s.AcceptedBy = make([]shared.CandidateID, len(s.MemberIDs))
	copy(s.AcceptedBy, s.MemberIDs)
	s.Status = SuggestionStatusAccepted
}

// Decline регистрирует отказ участника. Отказ недопустим, когда все
// уже приняли: такое предложение обязано было стать confirmed.
func (s *MatchSuggestion) Decline(id shared.CandidateID) error {
	if s.Status.IsFinal() {
		return shared.ErrSuggestionFinalized
	}
	if !s.InvolvesCandidate(id) {
		return shared.ErrNotSuggestionMember
	}
	if s.acceptedAll() {
		return shared.NewDomainError("matching", "Decline", shared.ErrStateTransition,
			"all members accepted, suggestion must be confirmed")
	}

	s.Status = SuggestionStatusDeclined
	return nil
}

// MarkExpired помечает открытое предложение как истёкшее.
func (s *MatchSuggestion) MarkExpired() error {
	if s.Status.IsFinal() {
		return shared.ErrSuggestionFinalized
	}
	s.Status = SuggestionStatusExpired
	return nil
}

// IsExpired проверяет, истёк ли срок открытого предложения.
func (s *MatchSuggestion) IsExpired(now time.Time) bool {
	return s.Status.IsOpen() && now.After(s.ExpiresAt)
}

// acceptedAll проверяет, что AcceptedBy покрывает всех участников.
func (s *MatchSuggestion) acceptedAll() bool {
	return sameMemberSet(s.AcceptedBy, s.MemberIDs)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION VALIDATION
// Проверка корректности переходов для внешних вызывающих.
// ══════════════════════════════════════════════════════════════════════════════

// ValidateStatusTransition проверяет допустимость перехода статуса
// с учётом множества принявших. Переход в confirmed допустим только
// когда acceptedBy - перестановка memberIDs без дубликатов и
// посторонних; переход в declined недопустим при полном наборе
// принявших.
func ValidateStatusTransition(from, to SuggestionStatus, acceptedBy, memberIDs []shared.CandidateID) error {
	if !from.IsValid() || !to.IsValid() {
		return shared.NewDomainError("matching", "ValidateTransition", shared.ErrInvalidInput, "unknown status")
	}
	if from.IsFinal() {
		return shared.ErrSuggestionFinalized
	}

	switch to {
	case SuggestionStatusConfirmed:
		if !sameMemberSet(acceptedBy, memberIDs) {
			return shared.NewDomainError("matching", "ValidateTransition", shared.ErrStateTransition,
				"confirmed requires acceptance from the exact member set")
		}
	case SuggestionStatusDeclined:
		if sameMemberSet(acceptedBy, memberIDs) {
			return shared.NewDomainError("matching", "ValidateTransition", shared.ErrStateTransition,
				"all members accepted, suggestion must be confirmed")
		}
	case SuggestionStatusAccepted, SuggestionStatusExpired:
		// Допустимо из любого открытого статуса.
	case SuggestionStatusPending:
		return shared.NewDomainError("matching", "ValidateTransition", shared.ErrStateTransition,
			"cannot transition back to pending")
	}

	return nil
}

// sameMemberSet проверяет, что два списка задают одно и то же
// множество без дубликатов (порядок не важен).
func sameMemberSet(a, b []shared.CandidateID) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[shared.CandidateID]int, len(a))
	for _, id := range a {
		counts[id]++
		if counts[id] > 1 {
			return false
		}
	}
	for _, id := range b {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}

func hasDuplicates(ids []shared.CandidateID) bool {
	seen := make(map[shared.CandidateID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}
