package analyzer

import (
	"strings"
	"unicode/utf8"

	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/sas"
)

// TopLevelBlock is the complexity map key for the residual top-level
// body; macro blocks are keyed by macro name.
const TopLevelBlock = "main"

// Options controls what Analyze produces.
type Options struct {
	// DatabasesOnly restricts the report to database usage: macros,
	// dependencies, complexity, and chunks are skipped.
	DatabasesOnly bool
	// MaxChunkTokens is the chunk token budget. Zero means
	// DefaultMaxChunkTokens.
	MaxChunkTokens int
}

// Analyze runs the full static analysis pipeline over one SAS source
// unit and assembles the report. The pipeline is purely lexical: segment,
// resolve variables, register libraries, then extract table usage from
// every SQL block (top level and inside macro bodies), build the macro
// dependency graph, score complexity per block, and chunk the top level.
// Malformed source degrades to anomalies, never to an error; the only
// errors are empty input and invalid UTF-8.
func Analyze(source string, opts Options) (*models.AnalysisReport, error) {
	if strings.TrimSpace(source) == "" {
		return nil, apperrors.ErrEmptySource
	}
	if !utf8.ValidString(source) {
		return nil, apperrors.ErrInvalidEncoding
	}

	seg := sas.SegmentSource(source)
	vars := sas.ParseVariables(source)
	registry := ParseLibraries(source, vars)
	usage := NewTableUsage(registry, vars)

	report := &models.AnalysisReport{}
	report.Anomalies = append(report.Anomalies, seg.Anomalies...)

	for _, block := range seg.SQLBlocks() {
		usage.Extract(block.Text, block.Start)
	}

	var macros []*models.MacroDefinition
	for _, m := range seg.Macros() {
		def := &models.MacroDefinition{
			Name:       m.MacroName,
			Parameters: m.MacroParams,
			Start:      m.Start,
			End:        m.End,
			Body:       m.Text,
		}
		macros = append(macros, def)

		// SQL blocks inside a macro body count toward the same global
		// table usage. The inner body (markers stripped, or the outer
		// %macro would just swallow everything again) is re-segmented on
		// its own; anomalies and offsets are shifted back into
		// whole-source coordinates.
		inner := sas.SegmentSource(m.InnerBody())
		for _, block := range inner.SQLBlocks() {
			usage.Extract(block.Text, m.BodyStart+block.Start)
		}
		for _, a := range inner.Anomalies {
			a.Offset += m.BodyStart
			report.Anomalies = append(report.Anomalies, a)
		}
	}

	report.Databases = registry.HandlesWithOperations()
	report.UnknownTables = usage.Unknown()
	report.Anomalies = append(report.Anomalies, usage.Anomalies()...)

	if opts.DatabasesOnly {
		return report, nil
	}

	report.Macros = macros
	report.Dependencies = BuildDependencyGraph(macros, seg.Body())

	report.Complexity = map[string]*models.ComplexityMetrics{
		TopLevelBlock: AnalyzeComplexity(topLevelText(seg)),
	}
	for _, m := range macros {
		report.Complexity[m.Name] = AnalyzeComplexity(m.Body)
	}

	report.Chunks = NewChunker(opts.MaxChunkTokens).Process(seg)

	return report, nil
}

// topLevelText joins everything outside macro definitions, in source
// order, for top-level complexity scoring.
func topLevelText(seg *sas.Segmentation) string {
	var b strings.Builder
	for _, s := range seg.Segments {
		if s.Kind != sas.SegmentMacro {
			b.WriteString(s.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}
