// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/experiment"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
	"github.com/dorm-hub/dorm-match-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN MATCHING COMMAND
//
// Оркестратор подбора - единственный компонент с побочными эффектами.
// Конвейер строго упорядочен:
//
//   1. загрузка когорты             (хранилище, batched, с retry)
//   2. отсев неполных анкет         (eligibility gate)
//   3. нормализация в профили
//   4. назначение вариантов A/B     (один раз на кандидата, не на пару)
//   5. фильтр + оценка пар          (параллельно, O(n^2) чистых операций)
//   6. решатель / ранжирование      (последовательно)
//   7. блок-листы, дедуп, run id, срок действия
//   8. сохранение результатов
//
// Отказ хранилища до шага 8 прерывает прогон без частичной записи.
// Пустой результат - не ошибка: диагностика показывает, на каком
// этапе опустела воронка.
// ══════════════════════════════════════════════════════════════════════════════

// Этапы воронки для диагностики.
const (
	StageLoad        = "load"
	StageEligibility = "eligibility"
	StageDealBreaker = "dealbreaker"
	StageThreshold   = "threshold"
	StageSolver      = "solver"
)

// RunMatchingCommand содержит параметры прогона подбора.
type RunMatchingCommand struct {
	// Cohort - фильтр когорты.
	Cohort profile.CohortFilter

	// Mode - режим прогона: pairs, groups или suggestions.
	Mode matching.RunMode

	// GroupSize - целевой размер группы (режим groups).
	GroupSize int

	// TopN - сколько лучших пар оставить на кандидата (режим suggestions).
	TopN int

	// ScoreThreshold - минимальная итоговая оценка пары (0-1).
	ScoreThreshold float64

	// AutoMatchThreshold - индекс, при котором предложение
	// автоматически поднимается до accepted (0-100).
	AutoMatchThreshold shared.FitIndex

	// SuggestionTTL - срок действия предложений.
	SuggestionTTL time.Duration

	// Workers - размер пула для параллельной оценки пар.
	Workers int
}

// Validate проверяет и нормализует параметры команды.
func (c *RunMatchingCommand) Validate() error {
	if !c.Mode.IsValid() {
		return shared.NewDomainError("orchestrator", "Validate", shared.ErrInvalidInput, "unknown run mode")
	}
	if c.Mode == matching.RunModeGroups && c.GroupSize < 2 {
		c.GroupSize = 3
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.TopN > 20 {
		c.TopN = 20
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return shared.NewDomainError("orchestrator", "Validate", shared.ErrValueOutOfRange, "score threshold must be in [0, 1]")
	}
	if c.AutoMatchThreshold == 0 {
		c.AutoMatchThreshold = 80
	}
	if c.SuggestionTTL <= 0 {
		c.SuggestionTTL = 72 * time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return nil
}

// RunMatchingResult содержит результат прогона.
type RunMatchingResult struct {
	// RunID - идентификатор прогона.
	RunID shared.RunID

	// Mode - режим прогона.
	Mode matching.RunMode

	// Matches - записи массового прогона (режимы pairs/groups).
	Matches []*matching.MatchRecord

	// Suggestions - предложения (режим suggestions).
	Suggestions []*matching.MatchSuggestion

	// Diagnostics - диагностика воронки. Возвращается всегда,
	// даже при пустом результате.
	Diagnostics matching.Diagnostics
}

// RunMatchingHandler обрабатывает команды прогона подбора.
type RunMatchingHandler struct {
	candidateRepo profile.CandidateRepository
	normalizer    *profile.Normalizer
	gate          *profile.EligibilityGate
	filter        *matching.Filter
	resolver      *experiment.Resolver
	expStore      experiment.Store
	matchRepo     matching.MatchRepository
	blocklistRepo matching.BlocklistRepository
	logger        *slog.Logger
	retrier       *retry.Retrier
}

// NewRunMatchingHandler создаёт обработчик прогона.
func NewRunMatchingHandler(
	candidateRepo profile.CandidateRepository,
	normalizer *profile.Normalizer,
	gate *profile.EligibilityGate,
	filter *matching.Filter,
	resolver *experiment.Resolver,
	expStore experiment.Store,
	matchRepo matching.MatchRepository,
	blocklistRepo matching.BlocklistRepository,
	logger *slog.Logger,
) *RunMatchingHandler {
	return &RunMatchingHandler{
		candidateRepo: candidateRepo,
		normalizer:    normalizer,
		gate:          gate,
		filter:        filter,
		resolver:      resolver,
		expStore:      expStore,
		matchRepo:     matchRepo,
		blocklistRepo: blocklistRepo,
		logger:        logger,
		retrier:       retry.StorageRetrier(),
	}
}

// Handle выполняет прогон подбора.
func (h *RunMatchingHandler) Handle(ctx context.Context, cmd RunMatchingCommand) (*RunMatchingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	runID := shared.RunID(uuid.NewString())
	startedAt := time.Now().UTC()
	result := &RunMatchingResult{RunID: runID, Mode: cmd.Mode}

	log := h.logger.With("run_id", runID.String(), "mode", string(cmd.Mode))
	log.Info("starting matching run")

	// ─────────────────────────────────────────────────────────────────────────
	// 1-3. Загрузка когорты, отсев, нормализация
	// ─────────────────────────────────────────────────────────────────────────
	profiles, err := h.loadProfiles(ctx, cmd, &result.Diagnostics)
	if err != nil {
		return nil, err
	}

	if len(profiles) < 2 {
		result.Diagnostics.EmptiedAtStage = emptyStage(result.Diagnostics)
		log.Info("cohort too small, completing with empty result",
			"loaded", result.Diagnostics.CandidatesLoaded,
			"eligible", result.Diagnostics.CandidatesEligible,
		)
		return result, h.persist(ctx, cmd, result, startedAt)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Назначение вариантов экспериментов (на кандидата, не на пару)
	// ─────────────────────────────────────────────────────────────────────────
	experiments, assignments := h.resolveAssignments(ctx, profiles, log)

	// Блок-листы когорты - одним запросом, не по паре.
	blocks, err := h.loadBlockSet(ctx, profiles)
	if err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Фильтр жёстких ограничений и оценка пар (параллельно)
	// ─────────────────────────────────────────────────────────────────────────
	scored, reasons, err := h.scorePairs(ctx, cmd, profiles, experiments, assignments, blocks, &result.Diagnostics)
	if err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6-7. Решатель / ранжирование, run id, срок действия
	// ─────────────────────────────────────────────────────────────────────────
	if err := h.buildOutput(cmd, runID, profiles, scored, reasons, result); err != nil {
		return nil, err
	}

	if len(result.Matches) == 0 && len(result.Suggestions) == 0 {
		result.Diagnostics.EmptiedAtStage = emptyStage(result.Diagnostics)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Сохранение
	// ─────────────────────────────────────────────────────────────────────────
	if err := h.persist(ctx, cmd, result, startedAt); err != nil {
		return nil, err
	}

	log.Info("matching run completed",
		"pairs_considered", result.Diagnostics.PairsConsidered,
		"dealbreaker_blocked", result.Diagnostics.DealBreakerBlocked,
		"below_threshold", result.Diagnostics.BelowThreshold,
		"blocklist_excluded", result.Diagnostics.BlocklistExcluded,
		"matches", len(result.Matches),
		"suggestions", len(result.Suggestions),
	)

	return result, nil
}

// loadProfiles загружает когорту и строит профили допущенных кандидатов.
func (h *RunMatchingHandler) loadProfiles(ctx context.Context, cmd RunMatchingCommand, diag *matching.Diagnostics) ([]*profile.Profile, error) {
	var candidates []profile.Candidate
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		var loadErr error
		candidates, loadErr = h.candidateRepo.LoadCandidates(ctx, cmd.Cohort)
		if loadErr != nil {
			return retry.Retryable(loadErr)
		}
		return nil
	})
	if err != nil {
		return nil, shared.WrapError("orchestrator", "LoadCandidates", shared.ErrExternalService,
			"failed to load cohort", err)
	}

	diag.CandidatesLoaded = len(candidates)

	profiles := make([]*profile.Profile, 0, len(candidates))
	for _, candidate := range candidates {
		if !h.gate.IsEligible(candidate.Answers) {
			continue
		}

		p := h.normalizer.Normalize(candidate.ID, candidate.Answers, candidate.Academic, candidate.Location)
		if len(candidate.Vector) == len(p.Vector) && len(candidate.Vector) > 0 {
			// Заранее посчитанный вектор имеет приоритет
			p.Vector = candidate.Vector
		}
		if !p.HasVector() {
			continue
		}

		profiles = append(profiles, p)
	}

	diag.CandidatesEligible = len(profiles)
	return profiles, nil
}

// resolveAssignments загружает активные эксперименты и назначает
// варианты всем кандидатам когорты. Отказ хранилища экспериментов
// деградирует до весов по умолчанию, прогон продолжается.
func (h *RunMatchingHandler) resolveAssignments(ctx context.Context, profiles []*profile.Profile, log *slog.Logger) ([]experiment.Experiment, map[shared.CandidateID]map[string]string) {
	experiments, err := h.expStore.ActiveExperiments(ctx)
	if err != nil {
		log.Warn("experiment store unavailable, using default weights", "error", err)
		return nil, nil
	}

	assignments := make(map[shared.CandidateID]map[string]string, len(profiles))
	for _, p := range profiles {
		byExperiment := make(map[string]string)
		for _, exp := range experiments {
			if !exp.Active {
				continue
			}
			assignment, err := h.resolver.AssignVariant(ctx, p.CandidateID, exp)
			if err != nil {
				log.Warn("variant assignment failed, candidate falls back to default weights",
					"candidate_id", p.CandidateID, "experiment_id", exp.ID, "error", err)
				continue
			}
			byExperiment[exp.ID] = assignment.Variant
		}
		assignments[p.CandidateID] = byExperiment
	}

	return experiments, assignments
}

// loadBlockSet загружает блок-листы когорты одним batched-запросом.
func (h *RunMatchingHandler) loadBlockSet(ctx context.Context, profiles []*profile.Profile) (matching.BlockSet, error) {
	ids := make([]shared.CandidateID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.CandidateID
	}

	blocklists, err := h.blocklistRepo.GetBlocklists(ctx, ids)
	if err != nil {
		return nil, shared.WrapError("orchestrator", "GetBlocklists", shared.ErrExternalService,
			"failed to load blocklists", err)
	}

	return matching.NewBlockSet(blocklists), nil
}

// pairWeights выбирает набор весов для пары: веса варианта, только
// если оба участника в одном варианте одного эксперимента.
func (h *RunMatchingHandler) pairWeights(a, b shared.CandidateID, experiments []experiment.Experiment, assignments map[shared.CandidateID]map[string]string) matching.WeightSet {
	for _, exp := range experiments {
		if !exp.Active {
			continue
		}
		variantA, okA := assignments[a][exp.ID]
		variantB, okB := assignments[b][exp.ID]
		if !okA || !okB || variantA != variantB {
			continue
		}
		if variant, ok := exp.VariantByName(variantA); ok {
			return variant.Weights
		}
	}
	return h.resolver.DefaultWeights()
}

// scorePairs оценивает все неупорядоченные пары когорты.
// Проверки и оценки чистые и независимые, поэтому пары
// обрабатываются пулом воркеров; синхронизация нужна только
// для агрегации диагностики и результатов.
func (h *RunMatchingHandler) scorePairs(
	ctx context.Context,
	cmd RunMatchingCommand,
	profiles []*profile.Profile,
	experiments []experiment.Experiment,
	assignments map[shared.CandidateID]map[string]string,
	blocks matching.BlockSet,
	diag *matching.Diagnostics,
) ([]matching.ScoredPair, map[matching.PairKey][]string, error) {
	type indexPair struct{ i, j int }

	pairCh := make(chan indexPair)
	var mu sync.Mutex
	scored := make([]matching.ScoredPair, 0, len(profiles))
	reasons := make(map[matching.PairKey][]string)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(pairCh)
		for i := 0; i < len(profiles); i++ {
			for j := i + 1; j < len(profiles); j++ {
				select {
				case pairCh <- indexPair{i, j}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})

	for w := 0; w < cmd.Workers; w++ {
		g.Go(func() error {
			for pair := range pairCh {
				a, b := profiles[pair.i], profiles[pair.j]

				check := h.filter.Check(a, b)
				blocked := blocks.IsBlocked(a.CandidateID, b.CandidateID)

				mu.Lock()
				diag.PairsConsidered++
				if !check.CanMatch {
					diag.DealBreakerBlocked++
					mu.Unlock()
					continue
				}
				if blocked {
					diag.BlocklistExcluded++
					mu.Unlock()
					continue
				}
				mu.Unlock()

				weights := h.pairWeights(a.CandidateID, b.CandidateID, experiments, assignments)
				score, err := matching.Score(a, b, weights)
				if err != nil {
					// Несовпадение размерностей - нарушение контракта,
					// прогон падает громко
					return err
				}

				mu.Lock()
				diag.ObserveScore(score.Composite.Float64())
				if score.Composite.Float64() < cmd.ScoreThreshold {
					diag.BelowThreshold++
					mu.Unlock()
					continue
				}
				scored = append(scored, matching.ScoredPair{
					A:     a.CandidateID,
					B:     b.CandidateID,
					Score: score,
				})
				reasons[matching.NewPairKey(a.CandidateID, b.CandidateID)] = check.Reasons
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Параллельная обработка теряет исходный порядок - восстанавливаем
	// его для воспроизводимости решателя при одинаковом входе.
	sortScoredPairs(scored, profiles)

	return scored, reasons, nil
}

// buildOutput строит записи или предложения в зависимости от режима.
func (h *RunMatchingHandler) buildOutput(
	cmd RunMatchingCommand,
	runID shared.RunID,
	profiles []*profile.Profile,
	scored []matching.ScoredPair,
	reasons map[matching.PairKey][]string,
	result *RunMatchingResult,
) error {
	switch cmd.Mode {
	case matching.RunModePairs:
		for _, pair := range matching.SolvePairs(scored) {
			record, err := matching.NewPairRecord(matching.NewPairRecordParams{
				ID:      uuid.NewString(),
				RunID:   runID,
				Pair:    pair,
				Reasons: pairReasons(pair, reasons),
			})
			if err != nil {
				return err
			}
			result.Matches = append(result.Matches, record)
		}

	case matching.RunModeGroups:
		ids := make([]shared.CandidateID, len(profiles))
		matrix := make(matching.FitMatrix, len(scored))
		for i, p := range profiles {
			ids[i] = p.CandidateID
		}
		for _, pair := range scored {
			matrix.Set(pair.A, pair.B, pair.Score.Composite.Float64())
		}

		for _, group := range matching.SolveGroups(ids, matrix, cmd.GroupSize) {
			record, err := matching.NewGroupRecord(matching.NewGroupRecordParams{
				ID:    uuid.NewString(),
				RunID: runID,
				Group: group,
			})
			if err != nil {
				return err
			}
			result.Matches = append(result.Matches, record)
		}

	case matching.RunModeSuggestions:
		for _, pair := range matching.TopPairsPerCandidate(scored, cmd.TopN) {
			suggestion, err := matching.NewMatchSuggestion(matching.NewSuggestionParams{
				ID:            uuid.NewString(),
				RunID:         runID,
				Kind:          matching.MatchKindPair,
				MemberIDs:     []shared.CandidateID{pair.A, pair.B},
				FitIndex:      pair.Score.Composite.Index(),
				SectionScores: pair.Score.SectionScores(),
				Reasons:       pairReasons(pair, reasons),
				TTL:           cmd.SuggestionTTL,
			})
			if err != nil {
				return err
			}
			if suggestion.FitIndex >= cmd.AutoMatchThreshold {
				suggestion.AutoAccept()
			}
			result.Suggestions = append(result.Suggestions, suggestion)
		}
	}

	return nil
}

// persist сохраняет сводку прогона и его записи.
// Сводка пишется первой: каждая запись обязана ссылаться на
// существующий прогон.
func (h *RunMatchingHandler) persist(ctx context.Context, cmd RunMatchingCommand, result *RunMatchingResult, startedAt time.Time) error {
	summary := &matching.RunSummary{
		RunID:             result.RunID,
		Mode:              cmd.Mode,
		CohortDescription: describeCohort(cmd.Cohort),
		RecordCount:       len(result.Matches) + len(result.Suggestions),
		Diagnostics:       result.Diagnostics,
		StartedAt:         startedAt,
		CompletedAt:       time.Now().UTC(),
	}

	if err := h.matchRepo.SaveMatchRun(ctx, summary); err != nil {
		return shared.WrapError("orchestrator", "SaveMatchRun", shared.ErrExternalService,
			"failed to save run summary", err)
	}

	if len(result.Matches) > 0 {
		if err := h.matchRepo.SaveMatches(ctx, result.Matches); err != nil {
			return shared.WrapError("orchestrator", "SaveMatches", shared.ErrExternalService,
				"failed to save match records", err)
		}
	}

	if len(result.Suggestions) > 0 {
		if err := h.matchRepo.CreateSuggestions(ctx, result.Suggestions); err != nil {
			return shared.WrapError("orchestrator", "CreateSuggestions", shared.ErrExternalService,
				"failed to save suggestions", err)
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// sortScoredPairs восстанавливает порядок пар по позициям кандидатов
// в исходной когорте.
func sortScoredPairs(scored []matching.ScoredPair, profiles []*profile.Profile) {
	position := make(map[shared.CandidateID]int, len(profiles))
	for i, p := range profiles {
		position[p.CandidateID] = i
	}

	sortFn := func(i, j int) bool {
		pi, pj := scored[i], scored[j]
		if position[pi.A] != position[pj.A] {
			return position[pi.A] < position[pj.A]
		}
		return position[pi.B] < position[pj.B]
	}
	sort.SliceStable(scored, sortFn)
}

// pairReasons собирает человекочитаемые причины пары: причины
// фильтра плюс сильная сторона из объяснения оценки.
func pairReasons(pair matching.ScoredPair, reasons map[matching.PairKey][]string) []string {
	out := append([]string{}, reasons[pair.Key()]...)
	out = append(out, fmt.Sprintf("strongest alignment: %s", pair.Score.Explanation.TopAlignment))
	if pair.Score.Explanation.WatchOut != matching.WatchOutNone {
		out = append(out, fmt.Sprintf("watch out: %s", pair.Score.Explanation.WatchOut))
	}
	return out
}

// describeCohort форматирует фильтр когорты для сводки прогона.
func describeCohort(filter profile.CohortFilter) string {
	if filter.IsEmpty() {
		return "all"
	}
	return fmt.Sprintf("institution=%s city=%s degree=%s limit=%d",
		filter.InstitutionID, filter.City, filter.DegreeLevel, filter.Limit)
}

// emptyStage определяет этап, на котором опустела воронка.
func emptyStage(diag matching.Diagnostics) string {
	switch {
	case diag.CandidatesLoaded == 0:
		return StageLoad
	case diag.CandidatesEligible < 2:
		return StageEligibility
	case diag.PairsConsidered == diag.DealBreakerBlocked+diag.BlocklistExcluded:
		return StageDealBreaker
	case diag.BelowThreshold > 0:
		return StageThreshold
	default:
		return StageSolver
	}
}
