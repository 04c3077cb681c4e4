package matching

import (
	"context"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE BOUNDARY
//
// Движок не управляет транзакциями между вызовами: каждый вызов
// атомарен с его точки зрения, восстановление после частичного
// сбоя - ответственность вызывающего.
// ══════════════════════════════════════════════════════════════════════════════

// MatchRepository - сток результатов подбора.
type MatchRepository interface {
	// SaveMatchRun сохраняет сводку прогона.
	SaveMatchRun(ctx context.Context, run *RunSummary) error

	// GetRunSummary возвращает сводку прогона по идентификатору.
	GetRunSummary(ctx context.Context, runID shared.RunID) (*RunSummary, error)

	// SaveMatches сохраняет записи массового прогона.
	SaveMatches(ctx context.Context, records []*MatchRecord) error

	// CreateSuggestions сохраняет новые предложения.
	CreateSuggestions(ctx context.Context, suggestions []*MatchSuggestion) error

	// UpdateSuggestion сохраняет изменение статуса предложения.
	UpdateSuggestion(ctx context.Context, suggestion *MatchSuggestion) error

	// GetSuggestion возвращает предложение по идентификатору.
	// Возвращает shared.ErrSuggestionNotFound, если не найдено.
	GetSuggestion(ctx context.Context, id string) (*MatchSuggestion, error)

	// ListSuggestionsForCandidate возвращает предложения кандидата.
	ListSuggestionsForCandidate(ctx context.Context, id shared.CandidateID) ([]*MatchSuggestion, error)

	// ListOpenExpired возвращает открытые предложения с истёкшим сроком.
	// limit ограничивает размер выборки (0 = без ограничения).
	ListOpenExpired(ctx context.Context, now time.Time, limit int) ([]*MatchSuggestion, error)
}

// BlocklistRepository - источник блок-листов. Блокировка симметрична:
// A заблокировал B - пара исключается независимо от направления.
type BlocklistRepository interface {
	// GetBlocklists возвращает блок-листы для всех кандидатов когорты
	// одним запросом - никаких обращений на каждую пару.
	GetBlocklists(ctx context.Context, ids []shared.CandidateID) (map[shared.CandidateID][]shared.CandidateID, error)
}

// BlockSet - симметричное множество заблокированных пар,
// построенное из блок-листов когорты.
type BlockSet map[PairKey]bool

// NewBlockSet строит множество из карты блок-листов.
func NewBlockSet(blocklists map[shared.CandidateID][]shared.CandidateID) BlockSet {
	set := make(BlockSet)
	for owner, blocked := range blocklists {
		for _, id := range blocked {
			set[NewPairKey(owner, id)] = true
		}
	}
	return set
}

// IsBlocked проверяет, заблокирована ли пара (в любом направлении).
func (s BlockSet) IsBlocked(a, b shared.CandidateID) bool {
	return s[NewPairKey(a, b)]
}
