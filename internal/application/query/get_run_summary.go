package query

import (
	"context"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RUN SUMMARY QUERY
//
// Сводка прогона для оператора: диагностика воронки и
// распределение оценок. Главный инструмент ответа на вопрос
// "почему прогон вернул пустой результат".
// ══════════════════════════════════════════════════════════════════════════════

// GetRunSummaryQuery содержит параметры запроса.
type GetRunSummaryQuery struct {
	// RunID - идентификатор прогона.
	RunID shared.RunID
}

// Validate проверяет запрос.
func (q GetRunSummaryQuery) Validate() error {
	if !q.RunID.IsValid() {
		return shared.NewDomainError("matching", "GetRunSummary", shared.ErrInvalidID, "invalid run id")
	}
	return nil
}

// RunSummaryView - представление сводки прогона.
type RunSummaryView struct {
	// RunID - идентификатор прогона.
	RunID shared.RunID

	// Mode - режим прогона.
	Mode matching.RunMode

	// Cohort - использованный фильтр когорты.
	Cohort string

	// RecordCount - сколько записей породил прогон.
	RecordCount int

	// Diagnostics - диагностика воронки.
	Diagnostics matching.Diagnostics

	// Duration - длительность прогона.
	Duration time.Duration

	// CompletedAt - когда прогон завершился.
	CompletedAt time.Time
}

// GetRunSummaryHandler обрабатывает запрос сводки прогона.
type GetRunSummaryHandler struct {
	matchRepo matching.MatchRepository
}

// NewGetRunSummaryHandler создаёт обработчик запроса.
func NewGetRunSummaryHandler(matchRepo matching.MatchRepository) *GetRunSummaryHandler {
	return &GetRunSummaryHandler{matchRepo: matchRepo}
}

// Handle возвращает сводку прогона.
func (h *GetRunSummaryHandler) Handle(ctx context.Context, q GetRunSummaryQuery) (*RunSummaryView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	summary, err := h.matchRepo.GetRunSummary(ctx, q.RunID)
	if err != nil {
		return nil, err
	}

	return &RunSummaryView{
		RunID:       summary.RunID,
		Mode:        summary.Mode,
		Cohort:      summary.CohortDescription,
		RecordCount: summary.RecordCount,
		Diagnostics: summary.Diagnostics,
		Duration:    summary.CompletedAt.Sub(summary.StartedAt),
		CompletedAt: summary.CompletedAt,
	}, nil
}
