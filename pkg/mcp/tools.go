package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/analyzer"
	"github.com/codemorph-io/sas-engine/pkg/services"
)

// ToolDeps contains the services the analysis tools need. Conversion may
// be nil when no AI provider is configured.
type ToolDeps struct {
	Analysis   *services.AnalysisService
	Conversion *services.ConversionService
	Logger     *zap.Logger
}

func registerAnalyzeTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"analyze_sas_code",
		mcp.WithDescription(
			"Statically analyze SAS source code without executing it. "+
				"Returns the databases and tables the code touches with per-table operations (SELECT, INSERT, UPDATE, DELETE, CREATE VIEW), "+
				"macro definitions and their dependency graph, complexity metrics per block, and LLM-sized chunks. "+
				"Credentials found in LIBNAME statements are redacted from the report.",
		),
		mcp.WithString(
			"source",
			mcp.Required(),
			mcp.Description("The SAS source code to analyze"),
		),
		mcp.WithString(
			"file_name",
			mcp.Description("Optional file name recorded with the analysis run"),
		),
		mcp.WithBoolean(
			"databases_only",
			mcp.Description("Restrict the report to database and table usage (default: false)"),
		),
		mcp.WithNumber(
			"max_chunk_tokens",
			mcp.Description("Token budget per chunk (default: 4000)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("source")
		if err != nil {
			return nil, err
		}

		opts := analyzer.Options{
			DatabasesOnly:  optionalBool(req, "databases_only", false),
			MaxChunkTokens: optionalInt(req, "max_chunk_tokens", 0),
		}
		run, err := deps.Analysis.Analyze(ctx, source, optionalString(req, "file_name", ""), opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		jsonResult, err := json.Marshal(run.Report)
		if err != nil {
			return nil, fmt.Errorf("marshal report: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

func registerConvertTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"convert_sas_code",
		mcp.WithDescription(
			"Convert SAS source code to an equivalent Python script using pandas and SQLAlchemy. "+
				"The result includes the generated script, its pip requirements, and conversion notes. "+
				"Requires an AI provider to be configured.",
		),
		mcp.WithString(
			"source",
			mcp.Required(),
			mcp.Description("The SAS source code to convert"),
		),
		mcp.WithString(
			"file_name",
			mcp.Description("Optional file name used to label the conversion task"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Conversion == nil {
			return mcp.NewToolResultError("conversion is not configured; set an AI provider"), nil
		}

		source, err := req.RequireString("source")
		if err != nil {
			return nil, err
		}

		result, err := deps.Conversion.Convert(ctx, source, optionalString(req, "file_name", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("conversion failed: %v", err)), nil
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

func optionalString(req mcp.CallToolRequest, key, defaultVal string) string {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if val, ok := args[key].(string); ok {
			return val
		}
	}
	return defaultVal
}

func optionalBool(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if val, ok := args[key].(bool); ok {
			return val
		}
	}
	return defaultVal
}

// optionalInt reads a numeric argument; JSON numbers arrive as float64.
func optionalInt(req mcp.CallToolRequest, key string, defaultVal int) int {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if val, ok := args[key].(float64); ok {
			return int(val)
		}
	}
	return defaultVal
}
