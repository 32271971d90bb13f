package handlers

import (
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/runner"
)

// ScriptOutputLine is one captured line of script output.
type ScriptOutputLine struct {
	Stream string `json:"stream"`
	Line   string `json:"line"`
}

// ScriptRunResponse is the body returned by POST /api/scripts/{id}/run.
type ScriptRunResponse struct {
	ScriptID string             `json:"scriptId"`
	ExitOK   bool               `json:"exitOk"`
	Error    string             `json:"error,omitempty"`
	Output   []ScriptOutputLine `json:"output"`
}

// ScriptsHandler serves stored generated scripts and runs them.
type ScriptsHandler struct {
	runner *runner.Runner
	logger *zap.Logger
}

// NewScriptsHandler creates a new ScriptsHandler.
func NewScriptsHandler(r *runner.Runner, logger *zap.Logger) *ScriptsHandler {
	return &ScriptsHandler{runner: r, logger: logger.Named("scripts_handler")}
}

// RegisterRoutes registers the script routes on the given mux.
func (h *ScriptsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/scripts/{id}", h.Get)
	mux.HandleFunc("POST /api/scripts/{id}/run", h.Run)
	mux.HandleFunc("POST /api/scripts/{id}/stop", h.Stop)
	mux.HandleFunc("GET /api/scripts/running", h.Running)
}

// Get handles GET /api/scripts/{id} with the raw script source.
func (h *ScriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	script, err := h.runner.Load(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrScriptNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "script not found")
			return
		}
		h.logger.Error("failed to load script", zap.String("script_id", id), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/x-python")
	_, _ = w.Write([]byte(script))
}

// Run handles POST /api/scripts/{id}/run. It executes the script to
// completion and returns the captured output.
func (h *ScriptsHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var mu sync.Mutex
	var output []ScriptOutputLine
	err := h.runner.Run(r.Context(), id, func(stream runner.Stream, line string) {
		mu.Lock()
		output = append(output, ScriptOutputLine{Stream: string(stream), Line: line})
		mu.Unlock()
	})

	if errors.Is(err, apperrors.ErrScriptNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "script not found")
		return
	}

	resp := ScriptRunResponse{
		ScriptID: id,
		ExitOK:   err == nil,
		Output:   output,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	_ = WriteJSON(w, http.StatusOK, resp)
}

// Stop handles POST /api/scripts/{id}/stop.
func (h *ScriptsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.runner.Stop(id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "script is not running")
			return
		}
		_ = ErrorResponse(w, http.StatusInternalServerError, "stop_failed", err.Error())
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// Running handles GET /api/scripts/running.
func (h *ScriptsHandler) Running(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.runner.Running(),
	})
}
