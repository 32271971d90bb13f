package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/services"
)

func testDeps() *ToolDeps {
	return &ToolDeps{
		Analysis: services.NewAnalysisService(nil, nil, time.Minute, zap.NewNop()),
		Logger:   zap.NewNop(),
	}
}

func TestNewServer(t *testing.T) {
	s := NewServer("1.0.0", testDeps())
	if s == nil {
		t.Fatal("expected non-nil server")
	}
}

func TestNewHTTPHandler_RequiresPOST(t *testing.T) {
	handler := NewHTTPHandler(NewServer("1.0.0", testDeps()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "POST" {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestOptionalArgumentHelpers(t *testing.T) {
	var req mcp.CallToolRequest
	req.Params.Arguments = map[string]any{
		"databases_only":   true,
		"max_chunk_tokens": float64(2000),
		"file_name":        "etl.sas",
	}

	if !optionalBool(req, "databases_only", false) {
		t.Error("expected databases_only true")
	}
	if got := optionalInt(req, "max_chunk_tokens", 0); got != 2000 {
		t.Errorf("expected 2000, got %d", got)
	}
	if got := optionalString(req, "file_name", ""); got != "etl.sas" {
		t.Errorf("expected etl.sas, got %q", got)
	}

	var empty mcp.CallToolRequest
	if optionalBool(empty, "databases_only", false) {
		t.Error("expected default false")
	}
	if got := optionalInt(empty, "max_chunk_tokens", 4000); got != 4000 {
		t.Errorf("expected default 4000, got %d", got)
	}
}
