package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/services"
)

// ConvertRequest is the body for POST /api/convert.
type ConvertRequest struct {
	Source   string `json:"source"`
	FileName string `json:"fileName,omitempty"`
}

// ConvertHandler exposes SAS to Python conversion over HTTP.
type ConvertHandler struct {
	svc    *services.ConversionService
	logger *zap.Logger
}

// NewConvertHandler creates a new ConvertHandler. svc may be nil when no
// AI provider is configured; requests then get a 503.
func NewConvertHandler(svc *services.ConversionService, logger *zap.Logger) *ConvertHandler {
	return &ConvertHandler{svc: svc, logger: logger.Named("convert_handler")}
}

// RegisterRoutes registers the conversion routes on the given mux.
func (h *ConvertHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/convert", h.Convert)
	mux.HandleFunc("GET /api/convert/tasks", h.Tasks)
}

// Convert handles POST /api/convert. The conversion runs through the
// work queue and the handler blocks until it finishes.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "conversion_unavailable", "no AI provider is configured")
		return
	}

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_source", apperrors.ErrEmptySource.Error())
		return
	}

	result, err := h.svc.Convert(r.Context(), req.Source, req.FileName)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptySource) || errors.Is(err, apperrors.ErrInvalidEncoding) {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_source", err.Error())
			return
		}
		h.logger.Error("conversion failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "conversion_failed", err.Error())
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// Tasks handles GET /api/convert/tasks with the queue state.
func (h *ConvertHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "conversion_unavailable", "no AI provider is configured")
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": h.svc.Tasks(),
	})
}
