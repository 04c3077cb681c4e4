// Package http implements the REST API of Dorm Match Hub.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dorm-hub/dorm-match-hub/internal/application/command"
	"github.com/dorm-hub/dorm-match-hub/internal/application/query"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
	"github.com/dorm-hub/dorm-match-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Dorm Match Hub API",
		"version":     "v1",
		"description": "REST API for the roommate matching engine",
		"endpoints": map[string]string{
			"health":      "/health",
			"suggestions": "/api/v1/candidates/{id}/suggestions",
			"respond":     "/api/v1/suggestions/{id}/respond",
			"run_summary": "/api/v1/runs/{id}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

// handleReady handles the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"ready":   false,
				"message": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"alive": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// SUGGESTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// suggestionResponse is the wire format of a single suggestion.
type suggestionResponse struct {
	SuggestionID  string             `json:"suggestion_id"`
	RunID         string             `json:"run_id"`
	Kind          string             `json:"kind"`
	Others        []string           `json:"others"`
	FitIndex      int                `json:"fit_index"`
	Quality       string             `json:"quality"`
	SectionScores map[string]float64 `json:"section_scores,omitempty"`
	Reasons       []string           `json:"reasons,omitempty"`
	Status        string             `json:"status"`
	HasResponded  bool               `json:"has_responded"`
	ExpiresAt     time.Time          `json:"expires_at"`
	ExpiresIn     string             `json:"expires_in,omitempty"`
}

// handleGetSuggestions returns the suggestions of a candidate.
//
// GET /api/v1/candidates/{id}/suggestions?include_closed=true
func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	candidateID, err := shared.NewCandidateID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_candidate_id", "Candidate ID must be a valid UUID")
		return
	}

	result, err := s.deps.GetSuggestionsHandler.Handle(r.Context(), query.GetSuggestionsQuery{
		CandidateID:   candidateID,
		IncludeClosed: getQueryParamBool(r, "include_closed"),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]suggestionResponse, 0, len(result.Suggestions))
	for _, v := range result.Suggestions {
		others := make([]string, 0, len(v.Others))
		for _, id := range v.Others {
			others = append(others, string(id))
		}
		var expiresIn string
		if !v.ExpiresAt.IsZero() {
			expiresIn = timeutil.FormatRelative(v.ExpiresAt)
		}
		views = append(views, suggestionResponse{
			SuggestionID:  v.SuggestionID,
			RunID:         string(v.RunID),
			Kind:          string(v.Kind),
			Others:        others,
			FitIndex:      int(v.FitIndex),
			Quality:       string(v.Quality),
			SectionScores: v.SectionScores,
			Reasons:       v.Reasons,
			Status:        string(v.Status),
			HasResponded:  v.HasResponded,
			ExpiresAt:     v.ExpiresAt,
			ExpiresIn:     expiresIn,
		})
	}

	writeJSONWithMeta(w, r, http.StatusOK, map[string]interface{}{
		"candidate_id": string(result.CandidateID),
		"suggestions":  views,
		"open_count":   result.OpenCount,
	}, &ResponseMeta{TotalCount: len(views)})
}

// respondRequest is the wire format of a suggestion response.
type respondRequest struct {
	CandidateID string `json:"candidate_id"`
	Action      string `json:"action"`
}

// handleRespondSuggestion records an accept or decline on a suggestion.
//
// POST /api/v1/suggestions/{id}/respond
// Body: {"candidate_id": "...", "action": "accept"}
func (s *Server) handleRespondSuggestion(w http.ResponseWriter, r *http.Request) {
	suggestionID := r.PathValue("id")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return
	}

	var req respondRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return
	}

	candidateID, err := shared.NewCandidateID(req.CandidateID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_candidate_id", "Candidate ID must be a valid UUID")
		return
	}

	result, err := s.deps.RespondSuggestionHandler.Handle(r.Context(), command.RespondSuggestionCommand{
		SuggestionID: suggestionID,
		CandidateID:  candidateID,
		Action:       command.SuggestionAction(req.Action),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	acceptedBy := make([]string, 0, len(result.AcceptedBy))
	for _, id := range result.AcceptedBy {
		acceptedBy = append(acceptedBy, string(id))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suggestion_id": result.SuggestionID,
		"status":        string(result.Status),
		"accepted_by":   acceptedBy,
		"confirmed":     result.Confirmed,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRunSummary returns the funnel diagnostics of a matching run.
//
// GET /api/v1/runs/{id}
func (s *Server) handleGetRunSummary(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetRunSummaryHandler.Handle(r.Context(), query.GetRunSummaryQuery{
		RunID: shared.RunID(r.PathValue("id")),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":       string(result.RunID),
		"mode":         string(result.Mode),
		"cohort":       result.Cohort,
		"record_count": result.RecordCount,
		"diagnostics":  result.Diagnostics,
		"duration_ms":  result.Duration.Milliseconds(),
		"completed_at": result.CompletedAt,
	})
}

// handleTriggerRun starts a background job out of schedule.
//
// POST /api/v1/admin/jobs/{name}/run
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.RunTrigger == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Job triggering is not configured")
		return
	}

	jobName := r.PathValue("name")
	if err := s.deps.RunTrigger.RunNow(jobName); err != nil {
		writeJSONError(w, http.StatusConflict, "trigger_failed", err.Error())
		return
	}

	s.logger.Info("job triggered via API",
		"job", jobName,
		"request_id", getRequestID(r.Context()),
	)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job":       jobName,
		"triggered": true,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrExpired):
		writeJSONError(w, http.StatusGone, "expired", err.Error())
	case errors.Is(err, shared.ErrStateTransition):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidID),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrEmptyValue),
		errors.Is(err, shared.ErrValueOutOfRange):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
