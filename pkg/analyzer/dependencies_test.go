package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/sas"
)

func macroDef(name, body string) *models.MacroDefinition {
	return &models.MacroDefinition{Name: name, Body: body}
}

func TestBuildDependencyGraph(t *testing.T) {
	macros := []*models.MacroDefinition{
		macroDef("load", "%macro load;\n  %validate\n  %log_step(load)\n%mend;"),
		macroDef("validate", "%macro validate;\n  %if &debug %then %put checking;\n%mend;"),
		macroDef("orphan", "%macro orphan;\n  data _null_; run;\n%mend;"),
	}
	body := []sas.Segment{{Kind: sas.SegmentBody, Text: "%load\n"}}

	graph := BuildDependencyGraph(macros, body)

	assert.Equal(t, []models.DependencyEdge{
		{Caller: "load", Callee: "validate"},
		{Caller: "load", Callee: "log_step", External: true},
		{Caller: "", Callee: "load"},
	}, graph.Edges)

	assert.Equal(t, []string{"log_step"}, graph.External)
	assert.Equal(t, []string{"orphan"}, graph.InternalUnused)

	assert.Equal(t, []string{"validate", "log_step"}, macros[0].Invokes)
	assert.True(t, macros[0].Invoked)
	assert.True(t, macros[1].Invoked)
	assert.False(t, macros[2].Invoked)
}

func TestBuildDependencyGraph_KeepsMultiplicity(t *testing.T) {
	macros := []*models.MacroDefinition{
		macroDef("runner", "%macro runner;\n  %step\n  %step\n%mend;"),
		macroDef("step", "%macro step;\n%mend;"),
	}

	graph := BuildDependencyGraph(macros, nil)

	require.Len(t, graph.Edges, 2)
	for _, e := range graph.Edges {
		assert.Equal(t, "runner", e.Caller)
		assert.Equal(t, "step", e.Callee)
		assert.False(t, e.External)
	}
}

func TestBuildDependencyGraph_CaseInsensitiveResolution(t *testing.T) {
	macros := []*models.MacroDefinition{
		macroDef("Refresh_Summary", "%macro Refresh_Summary;\n%mend;"),
	}
	body := []sas.Segment{{Kind: sas.SegmentBody, Text: "%REFRESH_SUMMARY\n"}}

	graph := BuildDependencyGraph(macros, body)

	require.Len(t, graph.Edges, 1)
	assert.False(t, graph.Edges[0].External)
	assert.True(t, macros[0].Invoked)
	assert.Empty(t, graph.External)
	assert.Empty(t, graph.InternalUnused)
}

func TestBuildDependencyGraph_BuiltinsIgnored(t *testing.T) {
	macros := []*models.MacroDefinition{
		macroDef("cond", "%macro cond;\n  %if &x = 1 %then %do;\n    %put hit;\n  %end;\n  %else %let y = %eval(&x + 1);\n%mend;"),
	}

	graph := BuildDependencyGraph(macros, nil)

	assert.Empty(t, graph.Edges)
	assert.Empty(t, graph.External)
	assert.Equal(t, []string{"cond"}, graph.InternalUnused)
}

func TestBuildDependencyGraph_SelfRecursion(t *testing.T) {
	macros := []*models.MacroDefinition{
		macroDef("walk", "%macro walk(depth);\n  %if &depth > 0 %then %walk(%eval(&depth - 1));\n%mend;"),
	}

	graph := BuildDependencyGraph(macros, nil)

	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "walk", graph.Edges[0].Caller)
	assert.Equal(t, "walk", graph.Edges[0].Callee)
	// Self-recursion counts as an invocation.
	assert.True(t, macros[0].Invoked)
	assert.Empty(t, graph.InternalUnused)
}
