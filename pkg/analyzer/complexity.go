package analyzer

import (
	"regexp"
	"strings"

	"github.com/codemorph-io/sas-engine/pkg/models"
)

var (
	macroCountRe = regexp.MustCompile(`(?i)%macro\s+\w+`)
	procCountRe  = regexp.MustCompile(`(?i)\bproc\s+\w+`)
	dataStepRe   = regexp.MustCompile(`(?i)\bdata\s+[&\w.]+`)
	ifCountRe    = regexp.MustCompile(`(?i)\bif\b`)
	doWhileRe    = regexp.MustCompile(`(?i)\bdo\s+while\b`)
	doUntilRe    = regexp.MustCompile(`(?i)\bdo\s+until\b`)
	iterativeDo  = regexp.MustCompile(`(?i)\bdo\s+[A-Za-z_]\w*\s*=`)
)

// AnalyzeComplexity computes structural metrics for one block (a macro
// body or the residual top level). The cyclomatic score is decision
// points + 1 where decision points are if statements plus do-while,
// do-until, and iterative do loops, all found by keyword counting. No
// control-flow graph is built; this is a deliberate approximation and is
// reported as such.
func AnalyzeComplexity(block string) *models.ComplexityMetrics {
	m := &models.ComplexityMetrics{
		MacroCount:    len(macroCountRe.FindAllString(block, -1)),
		ProcCount:     len(procCountRe.FindAllString(block, -1)),
		DataStepCount: len(dataStepRe.FindAllString(block, -1)),
		IfCount:       len(ifCountRe.FindAllString(block, -1)),
	}

	m.DoLoopCount = len(doWhileRe.FindAllString(block, -1)) +
		len(doUntilRe.FindAllString(block, -1)) +
		len(iterativeDo.FindAllString(block, -1))

	m.TotalLines, m.CodeLines, m.CommentLines = countLines(block)

	decisionPoints := m.IfCount + m.DoLoopCount
	m.CyclomaticComplexity = decisionPoints + 1

	return m
}

// countLines classifies each line as code, comment, or blank. Both SAS
// comment syntaxes are recognized: `* ...;` statement comments and
// `/* ... */` block comments, the latter tracked across lines.
func countLines(block string) (total, code, comment int) {
	inBlockComment := false

	lines := strings.Split(block, "\n")
	total = len(lines)

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		if inBlockComment {
			comment++
			if strings.Contains(stripped, "*/") {
				inBlockComment = false
			}
			continue
		}

		switch {
		case stripped == "":
			// blank
		case strings.HasPrefix(stripped, "*"), strings.HasPrefix(stripped, "/*"):
			comment++
			if strings.Contains(stripped, "/*") && !strings.Contains(stripped, "*/") {
				inBlockComment = true
			}
		default:
			code++
		}
	}

	return total, code, comment
}
