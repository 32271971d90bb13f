// Package mcp exposes the analysis engine to MCP clients over streamable
// HTTP.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates the MCP server with the analysis tools registered.
func NewServer(version string, deps *ToolDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"sas-engine",
		version,
		server.WithToolCapabilities(true),
	)
	registerAnalyzeTool(s, deps)
	registerConvertTool(s, deps)
	return s
}

// NewHTTPHandler wraps the MCP server in a stateless streamable HTTP
// transport. MCP over streamable HTTP uses POST for JSON-RPC, so other
// methods get a 405.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	transport := server.NewStreamableHTTPServer(s, server.WithStateLess(true))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		transport.ServeHTTP(w, r)
	})
}
