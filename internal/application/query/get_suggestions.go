// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"sort"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUGGESTIONS QUERY
//
// Предложения кандидата, отсортированные по индексу совместимости.
// Запрос ничего не записывает: просроченные предложения показываются
// как expired, фиксация статуса остаётся за командами.
// ══════════════════════════════════════════════════════════════════════════════

// GetSuggestionsQuery содержит параметры запроса.
type GetSuggestionsQuery struct {
	// CandidateID - чьи предложения запрашиваются.
	CandidateID shared.CandidateID

	// IncludeClosed - включать ли финализированные и истёкшие.
	IncludeClosed bool
}

// Validate проверяет запрос.
func (q GetSuggestionsQuery) Validate() error {
	if !q.CandidateID.IsValid() {
		return shared.ErrInvalidCandidateID
	}
	return nil
}

// SuggestionView - представление предложения для чтения.
type SuggestionView struct {
	// SuggestionID - идентификатор предложения.
	SuggestionID string

	// RunID - прогон, породивший предложение.
	RunID shared.RunID

	// Kind - пара или группа.
	Kind matching.MatchKind

	// Others - остальные участники предложения.
	Others []shared.CandidateID

	// FitIndex - индекс совместимости (0-100).
	FitIndex shared.FitIndex

	// Quality - качественная оценка индекса.
	Quality shared.MatchQuality

	// SectionScores - оценки по разделам.
	SectionScores map[string]float64

	// Reasons - человекочитаемые причины.
	Reasons []string

	// Status - эффективный статус с учётом срока действия.
	Status matching.SuggestionStatus

	// HasResponded - отвечал ли уже запрашивающий.
	HasResponded bool

	// ExpiresAt - срок действия.
	ExpiresAt time.Time
}

// GetSuggestionsResult содержит результат запроса.
type GetSuggestionsResult struct {
	// CandidateID - чьи предложения.
	CandidateID shared.CandidateID

	// Suggestions - представления, по убыванию индекса.
	Suggestions []SuggestionView

	// OpenCount - сколько из них ещё ждут ответа.
	OpenCount int
}

// GetSuggestionsHandler обрабатывает запрос предложений.
type GetSuggestionsHandler struct {
	matchRepo matching.MatchRepository
	now       func() time.Time
}

// NewGetSuggestionsHandler создаёт обработчик запроса.
func NewGetSuggestionsHandler(matchRepo matching.MatchRepository) *GetSuggestionsHandler {
	return &GetSuggestionsHandler{
		matchRepo: matchRepo,
		now:       time.Now,
	}
}

// Handle возвращает предложения кандидата.
func (h *GetSuggestionsHandler) Handle(ctx context.Context, q GetSuggestionsQuery) (*GetSuggestionsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	suggestions, err := h.matchRepo.ListSuggestionsForCandidate(ctx, q.CandidateID)
	if err != nil {
		return nil, shared.WrapError("matching", "GetSuggestions", shared.ErrExternalService,
			"failed to list suggestions", err)
	}

	now := h.now().UTC()
	result := &GetSuggestionsResult{CandidateID: q.CandidateID}

	for _, s := range suggestions {
		status := s.Status
		if s.IsExpired(now) {
			status = matching.SuggestionStatusExpired
		}

		open := status.IsOpen()
		if !open && !q.IncludeClosed {
			continue
		}
		if open {
			result.OpenCount++
		}

		result.Suggestions = append(result.Suggestions, SuggestionView{
			SuggestionID:  s.ID,
			RunID:         s.RunID,
			Kind:          s.Kind,
			Others:        othersOf(s, q.CandidateID),
			FitIndex:      s.FitIndex,
			Quality:       s.FitIndex.Quality(),
			SectionScores: s.SectionScores,
			Reasons:       s.Reasons,
			Status:        status,
			HasResponded:  s.HasAccepted(q.CandidateID),
			ExpiresAt:     s.ExpiresAt,
		})
	}

	sort.SliceStable(result.Suggestions, func(i, j int) bool {
		return result.Suggestions[i].FitIndex > result.Suggestions[j].FitIndex
	})

	return result, nil
}

// othersOf возвращает участников предложения кроме запрашивающего.
func othersOf(s *matching.MatchSuggestion, viewer shared.CandidateID) []shared.CandidateID {
	others := make([]shared.CandidateID, 0, len(s.MemberIDs)-1)
	for _, member := range s.MemberIDs {
		if member != viewer {
			others = append(others, member)
		}
	}
	return others
}
