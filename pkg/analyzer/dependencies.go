package analyzer

import (
	"regexp"
	"strings"

	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/sas"
)

var invokeRe = regexp.MustCompile(`%([A-Za-z_]\w*)`)

// builtinMacros are macro-language keywords that look like invocations but
// are not user macro calls.
var builtinMacros = map[string]bool{
	"if": true, "then": true, "else": true, "do": true, "end": true,
	"to": true, "let": true, "put": true, "global": true, "local": true,
	"include": true, "macro": true, "mend": true, "eval": true,
	"sysfunc": true, "sysevalf": true, "str": true, "nrstr": true,
	"scan": true, "upcase": true, "substr": true, "symput": true,
	"symputx": true, "goto": true, "return": true, "abort": true,
}

// BuildDependencyGraph constructs the macro call graph for one unit.
// Each %name occurrence in a macro body yields one edge (repeats and
// self-loops included, since multiplicity is informative); invocations in
// the residual top-level body yield edges with an empty caller. Callees
// with no definition in the unit are tagged external; defined macros that
// nothing invokes are tagged internal-unused. The External and
// InternalUnused lists are the deduplicated summary view of the raw
// multigraph.
func BuildDependencyGraph(macros []*models.MacroDefinition, bodySegments []sas.Segment) *models.DependencyGraph {
	defined := make(map[string]*models.MacroDefinition, len(macros))
	for _, m := range macros {
		defined[strings.ToLower(m.Name)] = m
	}

	graph := &models.DependencyGraph{}
	externalSeen := make(map[string]bool)

	addEdges := func(caller, text string) {
		for _, m := range invokeRe.FindAllStringSubmatch(text, -1) {
			callee := m[1]
			key := strings.ToLower(callee)
			if builtinMacros[key] {
				continue
			}
			target, isDefined := defined[key]
			graph.Edges = append(graph.Edges, models.DependencyEdge{
				Caller:   caller,
				Callee:   callee,
				External: !isDefined,
			})
			if isDefined {
				target.Invoked = true
			} else if !externalSeen[key] {
				externalSeen[key] = true
				graph.External = append(graph.External, callee)
			}
			if caller != "" {
				if def, ok := defined[strings.ToLower(caller)]; ok {
					def.Invokes = append(def.Invokes, callee)
				}
			}
		}
	}

	// The %macro/%mend markers themselves are harmless here: "macro" and
	// "mend" are in the builtin set and the defined name is not
	// %-prefixed inside its own header.
	for _, m := range macros {
		addEdges(m.Name, m.Body)
	}
	for _, seg := range bodySegments {
		addEdges("", seg.Text)
	}

	for _, m := range macros {
		if !m.Invoked {
			graph.InternalUnused = append(graph.InternalUnused, m.Name)
		}
	}

	return graph
}
