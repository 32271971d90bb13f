package analyzer

import (
	"strings"

	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/sas"
)

// DefaultMaxChunkTokens is the chunk token budget when the caller does
// not supply one.
const DefaultMaxChunkTokens = 4000

// EstimateTokens approximates the token count of text. One token is
// assumed to cover roughly four characters, the same heuristic the
// conversion prompts are budgeted with.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Chunker splits the residual top-level body into token-budget-bounded
// units. Split points are only ever top-level statement boundaries; a SQL
// block is one indivisible statement and a macro definition is never
// chunked at all, because a macro is the unit of semantic coherence for
// downstream conversion.
type Chunker struct {
	maxTokens int
}

// NewChunker creates a chunker with the given token budget per unit.
// A non-positive budget falls back to DefaultMaxChunkTokens.
func NewChunker(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	return &Chunker{maxTokens: maxTokens}
}

// Process consumes a segmentation and produces whole-macro units plus
// budgeted body units. A single statement whose own token count exceeds
// the budget is emitted whole, flagged Oversized.
func (c *Chunker) Process(seg *sas.Segmentation) *models.ChunkResult {
	result := &models.ChunkResult{}

	for _, m := range seg.Macros() {
		result.Macros = append(result.Macros, &models.MacroChunk{
			Name:       m.MacroName,
			Text:       m.Text,
			TokenCount: EstimateTokens(m.Text),
		})
	}

	statements := c.topLevelStatements(seg)

	var (
		current strings.Builder
		flush   = func(oversized bool) {
			if current.Len() == 0 {
				return
			}
			text := current.String()
			result.Units = append(result.Units, models.Chunk{
				Index:      len(result.Units),
				Text:       text,
				TokenCount: EstimateTokens(text),
				Oversized:  oversized,
			})
			current.Reset()
		}
	)

	for _, stmt := range statements {
		need := EstimateTokens(stmt)
		if need > c.maxTokens {
			flush(false)
			current.WriteString(stmt)
			flush(true)
			continue
		}
		if EstimateTokens(current.String())+need > c.maxTokens {
			flush(false)
		}
		current.WriteString(stmt)
	}
	flush(false)

	return result
}

// topLevelStatements flattens the non-macro segments into an ordered
// statement list. SQL segments stay whole; body segments split after each
// semicolon so no unit can end mid-statement.
func (c *Chunker) topLevelStatements(seg *sas.Segmentation) []string {
	var statements []string

	for _, s := range seg.Segments {
		switch s.Kind {
		case sas.SegmentMacro:
			// handled separately, never budget-split
		case sas.SegmentSQL:
			statements = append(statements, s.Text)
		case sas.SegmentBody:
			statements = append(statements, splitStatements(s.Text)...)
		}
	}

	return statements
}

// splitStatements cuts text after each semicolon, keeping the delimiter
// with its statement.
func splitStatements(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ';' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) && strings.TrimSpace(text[start:]) != "" {
		out = append(out, text[start:])
	}
	return out
}
