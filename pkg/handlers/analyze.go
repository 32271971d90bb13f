package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/analyzer"
	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/services"
)

// AnalyzeRequest is the body for POST /api/analyze.
type AnalyzeRequest struct {
	Source         string `json:"source"`
	FileName       string `json:"fileName,omitempty"`
	DatabasesOnly  bool   `json:"databasesOnly,omitempty"`
	MaxChunkTokens int    `json:"maxChunkTokens,omitempty"`
}

// AnalyzeHandler exposes the analysis pipeline over HTTP.
type AnalyzeHandler struct {
	svc    *services.AnalysisService
	logger *zap.Logger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(svc *services.AnalysisService, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{svc: svc, logger: logger.Named("analyze_handler")}
}

// RegisterRoutes registers the analysis routes on the given mux.
func (h *AnalyzeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analyze", h.Analyze)
}

// Analyze handles POST /api/analyze. It runs the full pipeline and
// returns the recorded run, report included.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	opts := analyzer.Options{
		DatabasesOnly:  req.DatabasesOnly,
		MaxChunkTokens: req.MaxChunkTokens,
	}
	run, err := h.svc.Analyze(r.Context(), req.Source, req.FileName, opts)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptySource) || errors.Is(err, apperrors.ErrInvalidEncoding) {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_source", err.Error())
			return
		}
		h.logger.Error("analysis failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "analysis_failed", "failed to analyze source")
		return
	}

	_ = WriteJSON(w, http.StatusOK, run)
}
