package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/analyzer"
	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/services"
)

const defaultRunListLimit = 50

// RunsHandler serves persisted analysis run history.
type RunsHandler struct {
	svc    *services.AnalysisService
	logger *zap.Logger
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(svc *services.AnalysisService, logger *zap.Logger) *RunsHandler {
	return &RunsHandler{svc: svc, logger: logger.Named("runs_handler")}
}

// RegisterRoutes registers the run history routes on the given mux.
func (h *RunsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/runs", h.Create)
	mux.HandleFunc("GET /api/runs", h.List)
	mux.HandleFunc("GET /api/runs/{id}", h.Get)
	mux.HandleFunc("DELETE /api/runs/{id}", h.Delete)
}

// Create handles POST /api/runs. The analysis is queued and the
// response carries the run ID it will be stored under; poll GET
// /api/runs/{id} for the result.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id, err := h.svc.AnalyzeAsync(req.Source, req.FileName, analyzer.Options{
		DatabasesOnly:  req.DatabasesOnly,
		MaxChunkTokens: req.MaxChunkTokens,
	})
	if err != nil {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "async_unavailable", err.Error())
		return
	}

	_ = WriteJSON(w, http.StatusAccepted, map[string]string{"runId": id.String()})
}

// List handles GET /api/runs, newest first. An optional limit query
// parameter caps the page size.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid run ID")
		return
	}

	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		h.logger.Error("failed to get run", zap.String("run_id", id.String()), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "get_failed", err.Error())
		return
	}

	_ = WriteJSON(w, http.StatusOK, run)
}

// Delete handles DELETE /api/runs/{id}.
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid run ID")
		return
	}

	if err := h.svc.DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "run not found")
			return
		}
		h.logger.Error("failed to delete run", zap.String("run_id", id.String()), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
