package sas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariables_ChainedDefinitions(t *testing.T) {
	source := `
%let env = prod;
%let schema = risk_&env;
%let full = &schema..calc;
`

	vars := ParseVariables(source)
	require.Equal(t, 3, vars.Len())

	env, ok := vars.Lookup("env")
	require.True(t, ok)
	assert.Equal(t, "prod", env)

	schema, ok := vars.Lookup("SCHEMA")
	require.True(t, ok)
	assert.Equal(t, "risk_prod", schema)

	full, ok := vars.Lookup("full")
	require.True(t, ok)
	assert.Equal(t, "risk_prod.calc", full)
}

func TestParseVariables_RedefinitionLatestWins(t *testing.T) {
	source := `
%let lib = dev_mart;
%let first_target = &lib;
%let lib = prod_mart;
`

	vars := ParseVariables(source)

	lib, _ := vars.Lookup("lib")
	assert.Equal(t, "prod_mart", lib)

	// Assignments resolve against the table as it stood at that point.
	first, _ := vars.Lookup("first_target")
	assert.Equal(t, "dev_mart", first)

	assert.Equal(t, []string{"lib", "first_target"}, vars.Names())
}

func TestParseVariables_ForwardReferenceSettles(t *testing.T) {
	source := `
%let path = &root/data;
%let root = /srv/sas;
`

	vars := ParseVariables(source)
	path, _ := vars.Lookup("path")
	assert.Equal(t, "/srv/sas/data", path)
}

func TestParseVariables_CycleCollapsesToLiteral(t *testing.T) {
	source := `
%let a = &b;
%let b = &a;
`

	vars := ParseVariables(source)
	a, _ := vars.Lookup("a")
	b, _ := vars.Lookup("b")

	// The cycle resolves to the literal reference and stays stable.
	assert.Equal(t, "&a", a)
	assert.Equal(t, "&a", b)
	assert.Equal(t, a, vars.Substitute(a))
}

func TestSubstitute(t *testing.T) {
	vars := NewVariables()
	vars.Set("mart_lib", "mart")
	vars.Set("TBL", "summary")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain reference", "&mart_lib", "mart"},
		{"case-insensitive", "&MART_LIB", "mart"},
		{"dot terminator consumed", "&mart_lib..&tbl", "mart.summary"},
		{"undefined preserved", "&unknown_lib.orders", "&unknown_lib.orders"},
		{"no references", "work.out", "work.out"},
		{"embedded", "select * from &mart_lib..t", "select * from mart.t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, vars.Substitute(tt.input))
		})
	}
}

func TestSubstitute_Idempotent(t *testing.T) {
	source := `
%let env = prod;
%let schema = risk_&env;
%let loop = &loop;
%let late = &defined_below;
%let defined_below = x;
`

	vars := ParseVariables(source)

	inputs := []string{
		"&schema..table_a",
		"&loop",
		"&late",
		"&env &schema &undefined",
	}
	for _, in := range inputs {
		once := vars.Substitute(in)
		assert.Equal(t, once, vars.Substitute(once), "input %q", in)
	}
}
