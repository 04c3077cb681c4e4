package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE SUGGESTIONS COMMAND
//
// Фоновый свип: помечает открытые предложения с истёкшим сроком
// как expired. Дополняет ленивое истечение в RespondSuggestion -
// предложения, к которым никто не обращался, тоже должны закрыться.
// ══════════════════════════════════════════════════════════════════════════════

// ExpireSuggestionsCommand содержит параметры свипа.
type ExpireSuggestionsCommand struct {
	// Limit - максимум предложений за один свип (0 = без ограничения).
	Limit int
}

// ExpireSuggestionsResult содержит результат свипа.
type ExpireSuggestionsResult struct {
	// Expired - сколько предложений помечено как истёкшие.
	Expired int

	// Failed - сколько обновлений не удалось.
	Failed int
}

// ExpireSuggestionsHandler обрабатывает свип истёкших предложений.
type ExpireSuggestionsHandler struct {
	matchRepo matching.MatchRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewExpireSuggestionsHandler создаёт обработчик свипа.
func NewExpireSuggestionsHandler(matchRepo matching.MatchRepository, logger *slog.Logger) *ExpireSuggestionsHandler {
	return &ExpireSuggestionsHandler{
		matchRepo: matchRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle выполняет свип.
func (h *ExpireSuggestionsHandler) Handle(ctx context.Context, cmd ExpireSuggestionsCommand) (*ExpireSuggestionsResult, error) {
	now := h.now().UTC()

	open, err := h.matchRepo.ListOpenExpired(ctx, now, cmd.Limit)
	if err != nil {
		return nil, shared.WrapError("matching", "ExpireSuggestions", shared.ErrExternalService,
			"failed to list expired suggestions", err)
	}

	result := &ExpireSuggestionsResult{}
	for _, suggestion := range open {
		if err := suggestion.MarkExpired(); err != nil {
			// Гонка с ответом участника: предложение успело
			// финализироваться между выборкой и свипом
			continue
		}
		if err := h.matchRepo.UpdateSuggestion(ctx, suggestion); err != nil {
			result.Failed++
			h.logger.Warn("failed to expire suggestion",
				"suggestion_id", suggestion.ID, "error", err)
			continue
		}
		result.Expired++
	}

	if result.Expired > 0 || result.Failed > 0 {
		h.logger.Info("suggestion expiry sweep completed",
			"expired", result.Expired, "failed", result.Failed)
	}

	return result, nil
}
