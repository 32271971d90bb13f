// Package converter turns an analyzed SAS program into a Python script
// via LLM-assisted translation. Macros convert to functions, top-level
// chunks convert in order, and the results are assembled into one script
// with merged imports and database connection scaffolding.
package converter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/llm"
	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/prompts"
)

// Result is an assembled conversion.
type Result struct {
	// Script is the complete generated Python source.
	Script string `json:"script"`
	// Requirements lists pip packages the script needs.
	Requirements []string `json:"requirements"`
	// Notes aggregates assumptions and caveats from every conversion
	// step, prefixed with the step that produced them.
	Notes []string `json:"notes,omitempty"`
}

// conversionResponse is the JSON shape every prompt asks for.
type conversionResponse struct {
	Code         string   `json:"code"`
	Imports      []string `json:"imports"`
	Requirements []string `json:"requirements"`
	Notes        []string `json:"notes"`
}

// Converter drives the conversion pipeline.
type Converter struct {
	client          llm.Client
	maxOutputTokens int
	logger          *zap.Logger
}

// New creates a converter over the given LLM client.
func New(client llm.Client, maxOutputTokens int, logger *zap.Logger) *Converter {
	return &Converter{
		client:          client,
		maxOutputTokens: maxOutputTokens,
		logger:          logger.Named("converter"),
	}
}

// Convert translates the analyzed program. The report must come from the
// full analysis of the same source (it supplies macros, chunks, and
// database context). Macros convert first so chunk prompts can name the
// resulting functions.
func (c *Converter) Convert(ctx context.Context, report *models.AnalysisReport) (*Result, error) {
	if report.Chunks == nil {
		return nil, fmt.Errorf("report has no chunks; run full analysis first")
	}

	asm := newAssembler(report)

	for _, m := range report.Chunks.Macros {
		resp, err := c.convertMacro(ctx, m, report)
		if err != nil {
			return nil, fmt.Errorf("convert macro %s: %w", m.Name, err)
		}
		asm.addMacro(m.Name, resp)
	}

	total := len(report.Chunks.Units)
	for _, unit := range report.Chunks.Units {
		resp, err := c.convertChunk(ctx, unit, total, report, asm.functionNames())
		if err != nil {
			return nil, fmt.Errorf("convert chunk %d: %w", unit.Index, err)
		}
		asm.addChunk(unit.Index, resp)
	}

	return asm.build(), nil
}

func (c *Converter) convertMacro(ctx context.Context, m *models.MacroChunk, report *models.AnalysisReport) (*conversionResponse, error) {
	mc := prompts.MacroContext{
		Name:   m.Name,
		Source: m.Text,
	}
	for _, def := range report.Macros {
		if strings.EqualFold(def.Name, m.Name) {
			mc.Parameters = def.Parameters
			mc.Dependencies = functionNamesFor(def.Invokes)
			break
		}
	}

	c.logger.Info("converting macro",
		zap.String("macro", m.Name),
		zap.Int("token_count", m.TokenCount))

	return c.complete(ctx, prompts.BuildMacroConversionPrompt(mc))
}

func (c *Converter) convertChunk(ctx context.Context, unit models.Chunk, total int, report *models.AnalysisReport, functions []string) (*conversionResponse, error) {
	cc := prompts.ChunkContext{
		Index:          unit.Index,
		Total:          total,
		HasSQL:         containsSQL(unit.Text),
		MacroFunctions: functions,
		Source:         unit.Text,
	}
	if cc.HasSQL {
		for _, db := range report.Databases {
			dc := prompts.DatabaseContext{
				Name:    db.DatabaseName,
				Dialect: string(db.DatabaseType),
			}
			for _, tbl := range db.OperationTables {
				dc.Tables = append(dc.Tables, tbl.TableName)
			}
			cc.Databases = append(cc.Databases, dc)
		}
	}

	c.logger.Info("converting chunk",
		zap.Int("index", unit.Index),
		zap.Bool("has_sql", cc.HasSQL),
		zap.Int("token_count", unit.TokenCount))

	return c.complete(ctx, prompts.BuildChunkConversionPrompt(cc))
}

func (c *Converter) complete(ctx context.Context, prompt string) (*conversionResponse, error) {
	result, err := c.client.Complete(ctx, llm.CompletionRequest{
		System:      prompts.SystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   c.maxOutputTokens,
	})
	if err != nil {
		return nil, err
	}

	resp, err := llm.ParseJSONResponse[conversionResponse](result.Content)
	if err != nil {
		return nil, fmt.Errorf("parse conversion response: %w", err)
	}
	if strings.TrimSpace(resp.Code) == "" {
		return nil, fmt.Errorf("conversion response has no code")
	}
	return resp, nil
}

// containsSQL reports whether chunk text carries a PROC SQL block.
func containsSQL(text string) bool {
	return sqlMarker.MatchString(text)
}

// functionNamesFor maps macro names to the Python function names their
// conversions produce, deduplicated.
func functionNamesFor(macroNames []string) []string {
	seen := make(map[string]bool, len(macroNames))
	var out []string
	for _, name := range macroNames {
		fn := strings.ToLower(name)
		if !seen[fn] {
			seen[fn] = true
			out = append(out, fn)
		}
	}
	sort.Strings(out)
	return out
}
