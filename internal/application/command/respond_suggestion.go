package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPOND SUGGESTION COMMAND
//
// Ответ участника на предложение: принять или отклонить.
// Предложение переходит в confirmed только когда приняли ВСЕ
// участники; истёкшее предложение помечается expired при первом
// же обращении, не дожидаясь фонового свипа.
// ══════════════════════════════════════════════════════════════════════════════

// SuggestionAction - действие участника над предложением.
type SuggestionAction string

const (
	// ActionAccept - участник принимает предложение.
	ActionAccept SuggestionAction = "accept"

	// ActionDecline - участник отклоняет предложение.
	ActionDecline SuggestionAction = "decline"
)

// IsValid проверяет корректность действия.
func (a SuggestionAction) IsValid() bool {
	return a == ActionAccept || a == ActionDecline
}

// RespondSuggestionCommand содержит данные ответа на предложение.
type RespondSuggestionCommand struct {
	// SuggestionID - идентификатор предложения.
	SuggestionID string

	// CandidateID - кто отвечает. Должен быть участником предложения.
	CandidateID shared.CandidateID

	// Action - accept или decline.
	Action SuggestionAction
}

// Validate проверяет команду.
func (c RespondSuggestionCommand) Validate() error {
	if c.SuggestionID == "" {
		return shared.NewDomainError("matching", "RespondSuggestion", shared.ErrEmptyValue, "suggestion id is required")
	}
	if !c.CandidateID.IsValid() {
		return shared.ErrInvalidCandidateID
	}
	if !c.Action.IsValid() {
		return shared.NewDomainError("matching", "RespondSuggestion", shared.ErrInvalidInput, "action must be accept or decline")
	}
	return nil
}

// RespondSuggestionResult содержит результат ответа.
type RespondSuggestionResult struct {
	// SuggestionID - идентификатор предложения.
	SuggestionID string

	// Status - статус предложения после ответа.
	Status matching.SuggestionStatus

	// AcceptedBy - кто уже принял предложение.
	AcceptedBy []shared.CandidateID

	// Confirmed - приняли ли все участники.
	Confirmed bool
}

// RespondSuggestionHandler обрабатывает ответы на предложения.
type RespondSuggestionHandler struct {
	matchRepo matching.MatchRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewRespondSuggestionHandler создаёт обработчик ответов.
func NewRespondSuggestionHandler(matchRepo matching.MatchRepository, logger *slog.Logger) *RespondSuggestionHandler {
	return &RespondSuggestionHandler{
		matchRepo: matchRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle применяет ответ участника к предложению.
func (h *RespondSuggestionHandler) Handle(ctx context.Context, cmd RespondSuggestionCommand) (*RespondSuggestionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	suggestion, err := h.matchRepo.GetSuggestion(ctx, cmd.SuggestionID)
	if err != nil {
		return nil, err
	}

	now := h.now().UTC()

	// Ленивое истечение: просроченное предложение фиксируется
	// здесь же, до фонового свипа.
	if suggestion.Status.IsOpen() && suggestion.IsExpired(now) {
		if err := suggestion.MarkExpired(); err != nil {
			return nil, err
		}
		if err := h.matchRepo.UpdateSuggestion(ctx, suggestion); err != nil {
			return nil, shared.WrapError("matching", "RespondSuggestion", shared.ErrExternalService,
				"failed to persist expiry", err)
		}
		return nil, shared.ErrSuggestionExpired
	}

	switch cmd.Action {
	case ActionAccept:
		err = suggestion.Accept(cmd.CandidateID, now)
	case ActionDecline:
		err = suggestion.Decline(cmd.CandidateID)
	}
	if err != nil {
		return nil, err
	}

	if err := h.matchRepo.UpdateSuggestion(ctx, suggestion); err != nil {
		return nil, shared.WrapError("matching", "RespondSuggestion", shared.ErrExternalService,
			"failed to update suggestion", err)
	}

	h.logger.Info("suggestion response recorded",
		"suggestion_id", suggestion.ID,
		"candidate_id", cmd.CandidateID.String(),
		"action", string(cmd.Action),
		"status", string(suggestion.Status),
	)

	return &RespondSuggestionResult{
		SuggestionID: suggestion.ID,
		Status:       suggestion.Status,
		AcceptedBy:   suggestion.AcceptedBy,
		Confirmed:    suggestion.Status == matching.SuggestionStatusConfirmed,
	}, nil
}
