// Package sas provides the lexical layer for SAS source analysis:
// statement segmentation and macro-variable resolution. Everything here is
// a pure, single-pass transformation over in-memory text; no SAS grammar is
// built and no macro is ever executed.
package sas

import (
	"regexp"
	"sort"
	"strings"

	"github.com/codemorph-io/sas-engine/pkg/models"
)

// SegmentKind identifies the type of a source segment.
type SegmentKind string

const (
	// SegmentMacro is a %macro ... %mend definition block.
	SegmentMacro SegmentKind = "macro"
	// SegmentSQL is a proc sql; ... quit; block.
	SegmentSQL SegmentKind = "sql"
	// SegmentBody is residual top-level text between blocks.
	SegmentBody SegmentKind = "body"
)

// Segment is one typed region of source with its original offsets, so
// downstream components can report block identity.
type Segment struct {
	Kind  SegmentKind
	Start int
	End   int
	Text  string
	// MacroName and MacroParams are set for SegmentMacro only.
	MacroName   string
	MacroParams string
	// BodyStart and BodyEnd delimit the macro inner body, between the
	// %macro header and the closing %mend, in whole-source offsets.
	// Set for SegmentMacro only.
	BodyStart int
	BodyEnd   int
}

// InnerBody returns the macro body text without the %macro header and
// %mend marker. Empty for non-macro segments.
func (s Segment) InnerBody() string {
	if s.Kind != SegmentMacro || s.BodyStart >= s.BodyEnd {
		return ""
	}
	return s.Text[s.BodyStart-s.Start : s.BodyEnd-s.Start]
}

// Segmentation is the ordered result of splitting a source unit.
type Segmentation struct {
	Segments  []Segment
	Anomalies []models.Anomaly
}

// Macros returns the macro-definition segments in source order.
func (s *Segmentation) Macros() []Segment {
	return s.byKind(SegmentMacro)
}

// SQLBlocks returns the top-level SQL segments in source order.
func (s *Segmentation) SQLBlocks() []Segment {
	return s.byKind(SegmentSQL)
}

// Body returns the residual top-level segments in source order.
func (s *Segmentation) Body() []Segment {
	return s.byKind(SegmentBody)
}

func (s *Segmentation) byKind(kind SegmentKind) []Segment {
	var out []Segment
	for _, seg := range s.Segments {
		if seg.Kind == kind {
			out = append(out, seg)
		}
	}
	return out
}

var (
	macroStartRe = regexp.MustCompile(`(?i)%macro\s+([A-Za-z_]\w*)\s*(\([^)]*\))?`)
	macroEndRe   = regexp.MustCompile(`(?i)%mend\b[^;]*;?`)
	sqlStartRe   = regexp.MustCompile(`(?i)\bproc\s+sql\b[^;]*;`)
	sqlEndRe     = regexp.MustCompile(`(?i)\bquit\s*;`)
)

type markerKind int

const (
	markerMacroStart markerKind = iota
	markerMacroEnd
	markerSQLStart
	markerSQLEnd
)

type marker struct {
	kind       markerKind
	start, end int
	name       string // macro name for markerMacroStart
	params     string // raw parameter list for markerMacroStart
}

// SegmentSource splits source into macro-definition blocks, SQL blocks, and
// residual body segments. Macro definitions are matched by bracket depth
// so nested %macro blocks stay inside their enclosing definition, and SQL
// markers inside a macro body are ignored (bodies are re-segmented by
// callers that need their SQL blocks). Malformed input never fails: an
// unterminated block becomes a best-effort segment running to end of file
// plus a recorded anomaly.
func SegmentSource(source string) *Segmentation {
	markers := collectMarkers(source)

	result := &Segmentation{}
	var (
		macroDepth int
		openMacro  marker
		sqlOpen    bool
		openSQL    marker
		cursor     int
	)

	emitBody := func(start, end int) {
		if start >= end {
			return
		}
		text := source[start:end]
		if strings.TrimSpace(text) == "" {
			return
		}
		result.Segments = append(result.Segments, Segment{
			Kind:  SegmentBody,
			Start: start,
			End:   end,
			Text:  text,
		})
	}

	for _, m := range markers {
		switch {
		case macroDepth > 0:
			// Inside a macro definition only %macro/%mend matter.
			switch m.kind {
			case markerMacroStart:
				macroDepth++
			case markerMacroEnd:
				macroDepth--
				if macroDepth == 0 {
					result.Segments = append(result.Segments, Segment{
						Kind:        SegmentMacro,
						Start:       openMacro.start,
						End:         m.end,
						Text:        source[openMacro.start:m.end],
						MacroName:   openMacro.name,
						MacroParams: openMacro.params,
						BodyStart:   openMacro.end,
						BodyEnd:     m.start,
					})
					cursor = m.end
				}
			}

		case sqlOpen:
			if m.kind == markerSQLEnd {
				sqlOpen = false
				result.Segments = append(result.Segments, Segment{
					Kind:  SegmentSQL,
					Start: openSQL.start,
					End:   m.end,
					Text:  source[openSQL.start:m.end],
				})
				cursor = m.end
			}

		default:
			switch m.kind {
			case markerMacroStart:
				emitBody(cursor, m.start)
				macroDepth = 1
				openMacro = m
			case markerMacroEnd:
				result.Anomalies = append(result.Anomalies, models.Anomaly{
					Kind:    models.AnomalyUnmatchedMend,
					Message: "%mend without matching %macro",
					Offset:  m.start,
				})
			case markerSQLStart:
				emitBody(cursor, m.start)
				sqlOpen = true
				openSQL = m
			case markerSQLEnd:
				// A stray quit; also terminates non-SQL procs; leave it
				// in the residual body.
			}
		}
	}

	switch {
	case macroDepth > 0:
		result.Segments = append(result.Segments, Segment{
			Kind:        SegmentMacro,
			Start:       openMacro.start,
			End:         len(source),
			Text:        source[openMacro.start:],
			MacroName:   openMacro.name,
			MacroParams: openMacro.params,
			BodyStart:   openMacro.end,
			BodyEnd:     len(source),
		})
		result.Anomalies = append(result.Anomalies, models.Anomaly{
			Kind:    models.AnomalyUnterminatedMacro,
			Message: "macro definition " + openMacro.name + " has no matching %mend",
			Offset:  openMacro.start,
		})
	case sqlOpen:
		result.Segments = append(result.Segments, Segment{
			Kind:  SegmentSQL,
			Start: openSQL.start,
			End:   len(source),
			Text:  source[openSQL.start:],
		})
		result.Anomalies = append(result.Anomalies, models.Anomaly{
			Kind:    models.AnomalyUnterminatedSQL,
			Message: "proc sql block has no matching quit;",
			Offset:  openSQL.start,
		})
	default:
		emitBody(cursor, len(source))
	}

	return result
}

// collectMarkers finds every block marker in source and returns them in
// offset order.
func collectMarkers(source string) []marker {
	var markers []marker

	for _, idx := range macroStartRe.FindAllStringSubmatchIndex(source, -1) {
		m := marker{kind: markerMacroStart, start: idx[0], end: idx[1]}
		m.name = source[idx[2]:idx[3]]
		if idx[4] >= 0 {
			m.params = strings.Trim(source[idx[4]:idx[5]], "()")
		}
		markers = append(markers, m)
	}
	for _, idx := range macroEndRe.FindAllStringIndex(source, -1) {
		markers = append(markers, marker{kind: markerMacroEnd, start: idx[0], end: idx[1]})
	}
	for _, idx := range sqlStartRe.FindAllStringIndex(source, -1) {
		markers = append(markers, marker{kind: markerSQLStart, start: idx[0], end: idx[1]})
	}
	for _, idx := range sqlEndRe.FindAllStringIndex(source, -1) {
		markers = append(markers, marker{kind: markerSQLEnd, start: idx[0], end: idx[1]})
	}

	sort.Slice(markers, func(i, j int) bool { return markers[i].start < markers[j].start })
	return markers
}
