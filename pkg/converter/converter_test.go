package converter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/analyzer"
	"github.com/codemorph-io/sas-engine/pkg/llm"
)

const convertSource = `
libname rsk TERADATA server=td schema="RISK_DB";

%macro refresh;
  proc sql;
    update rsk.exposure set flag = 1;
  quit;
  %audit_log(refresh)
%mend refresh;

proc sql;
  select * from rsk.exposure;
quit;

%refresh
`

func TestConvert_AssemblesScript(t *testing.T) {
	report, err := analyzer.Analyze(convertSource, analyzer.Options{})
	require.NoError(t, err)

	mock := llm.NewMockClient(
		`{"code": "def refresh():\n    pass", "imports": ["import pandas as pd"], "requirements": ["pandas>=2.0"], "notes": ["assumed exposure fits in memory"]}`,
		`{"code": "df = pd.read_sql('select * from exposure', risk_db_engine)\nrefresh()", "imports": ["import pandas as pd"], "requirements": ["pandas"], "notes": []}`,
	)

	result, err := New(mock, 8000, zap.NewNop()).Convert(context.Background(), report)
	require.NoError(t, err)

	assert.Contains(t, result.Script, "def refresh():")
	assert.Contains(t, result.Script, "refresh()")
	// Imports deduplicated across steps.
	assert.Equal(t, 1, strings.Count(result.Script, "import pandas as pd"))
	// Teradata connection scaffolding from the analyzed database.
	assert.Contains(t, result.Script, `RISK_DB_URL`)
	assert.Contains(t, result.Script, "teradatasql")
	// External macro flagged for manual follow-up.
	assert.Contains(t, result.Script, "audit_log")

	// Requirements deduplicated by package name, pinned spelling first,
	// plus driver packages derived from the dialects.
	assert.Contains(t, result.Requirements, "pandas>=2.0")
	assert.NotContains(t, result.Requirements, "pandas")
	assert.Contains(t, result.Requirements, "sqlalchemy")
	assert.Contains(t, result.Requirements, "teradatasqlalchemy")

	require.Len(t, result.Notes, 1)
	assert.Contains(t, result.Notes[0], "macro refresh:")
}

func TestConvert_SQLChunkGetsDatabaseContext(t *testing.T) {
	report, err := analyzer.Analyze(convertSource, analyzer.Options{})
	require.NoError(t, err)

	mock := llm.NewMockClient(`{"code": "pass", "imports": [], "requirements": [], "notes": []}`)

	_, err = New(mock, 8000, zap.NewNop()).Convert(context.Background(), report)
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	// First request converts the macro, second the SQL-bearing chunk.
	assert.Contains(t, reqs[0].Prompt, "SAS Macro Conversion")
	assert.Contains(t, reqs[1].Prompt, "RISK_DB (teradata)")
	assert.Contains(t, reqs[1].Prompt, "refresh")
}

func TestConvert_ErrorsSurfaceWithStep(t *testing.T) {
	report, err := analyzer.Analyze(convertSource, analyzer.Options{})
	require.NoError(t, err)

	mock := llm.NewMockClient().FailWith(assert.AnError)

	_, err = New(mock, 8000, zap.NewNop()).Convert(context.Background(), report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "convert macro refresh")
}

func TestConvert_RejectsResponseWithoutCode(t *testing.T) {
	report, err := analyzer.Analyze(convertSource, analyzer.Options{})
	require.NoError(t, err)

	mock := llm.NewMockClient(`{"code": "", "imports": [], "requirements": [], "notes": []}`)

	_, err = New(mock, 8000, zap.NewNop()).Convert(context.Background(), report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code")
}

func TestConvert_RequiresFullReport(t *testing.T) {
	report, err := analyzer.Analyze(convertSource, analyzer.Options{DatabasesOnly: true})
	require.NoError(t, err)

	_, err = New(llm.NewMockClient(), 8000, zap.NewNop()).Convert(context.Background(), report)
	require.Error(t, err)
}
