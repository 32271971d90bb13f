package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/models"
)

const scenarioSource = `
%let mart_lib = mart;
%let risk_schema = RISK_DB;

libname ora1 oracle user=scott path=proddb;
libname RSK_CALC TERADATA server=tdprod user=rsk schema="&risk_schema";
libname &mart_lib oracle user=mart path=martdb;

%macro refresh_summary;
  proc sql;
    create view mart.active_v as
      select * from ora1.customers;
    update RSK_CALC.exposure set flag = 1;
  quit;
  %audit_log(refresh)
%mend refresh_summary;

proc sql;
  select a.id
    from ora1.accounts a
    inner join mart.summary s on a.id = s.id;
  insert into RSK_CALC.results
    select * from ora1.staging;
quit;

%refresh_summary
`

func findDB(t *testing.T, report *models.AnalysisReport, name string) *models.DatabaseHandle {
	t.Helper()
	for _, db := range report.Databases {
		if db.DatabaseName == name {
			return db
		}
	}
	t.Fatalf("database %s not in report", name)
	return nil
}

func findTable(t *testing.T, db *models.DatabaseHandle, name string) *models.TableReference {
	t.Helper()
	for _, ref := range db.OperationTables {
		if ref.TableName == name {
			return ref
		}
	}
	t.Fatalf("table %s not in database %s", name, db.DatabaseName)
	return nil
}

func TestAnalyze_Scenario(t *testing.T) {
	report, err := Analyze(scenarioSource, Options{})
	require.NoError(t, err)
	require.Len(t, report.Databases, 3)

	ora := findDB(t, report, "ora1")
	assert.Equal(t, models.DialectOracle, ora.DatabaseType)
	assert.Equal(t, []models.Operation{models.OpSelect}, findTable(t, ora, "customers").Operations)
	assert.Equal(t, []models.Operation{models.OpSelect}, findTable(t, ora, "accounts").Operations)
	assert.Equal(t, []models.Operation{models.OpSelect}, findTable(t, ora, "staging").Operations)

	rsk := findDB(t, report, "RISK_DB")
	assert.Equal(t, models.DialectTeradata, rsk.DatabaseType)
	assert.Equal(t, []models.Operation{models.OpUpdate}, findTable(t, rsk, "exposure").Operations)
	assert.Equal(t, []models.Operation{models.OpInsert}, findTable(t, rsk, "results").Operations)

	mart := findDB(t, report, "mart")
	assert.Equal(t, []models.Operation{models.OpCreateView}, findTable(t, mart, "active_v").Operations)
	assert.Equal(t, []models.Operation{models.OpSelect}, findTable(t, mart, "summary").Operations)

	assert.Empty(t, report.UnknownTables)
	assert.Empty(t, report.Anomalies)
}

func TestAnalyze_ScenarioMacrosAndDependencies(t *testing.T) {
	report, err := Analyze(scenarioSource, Options{})
	require.NoError(t, err)

	require.Len(t, report.Macros, 1)
	m := report.Macros[0]
	assert.Equal(t, "refresh_summary", m.Name)
	assert.True(t, m.Invoked)
	assert.Equal(t, []string{"audit_log"}, m.Invokes)
	assert.Equal(t, scenarioSource[m.Start:m.End], m.Body)

	deps := report.Dependencies
	require.NotNil(t, deps)
	assert.Equal(t, []string{"audit_log"}, deps.External)
	assert.Empty(t, deps.InternalUnused)
	assert.Contains(t, deps.Edges, models.DependencyEdge{Caller: "refresh_summary", Callee: "audit_log", External: true})
	assert.Contains(t, deps.Edges, models.DependencyEdge{Caller: "", Callee: "refresh_summary", External: false})
}

func TestAnalyze_ScenarioComplexityAndChunks(t *testing.T) {
	report, err := Analyze(scenarioSource, Options{MaxChunkTokens: 50})
	require.NoError(t, err)

	require.Contains(t, report.Complexity, TopLevelBlock)
	require.Contains(t, report.Complexity, "refresh_summary")
	assert.GreaterOrEqual(t, report.Complexity[TopLevelBlock].CyclomaticComplexity, 1)
	assert.Equal(t, 1, report.Complexity["refresh_summary"].MacroCount)

	require.NotNil(t, report.Chunks)
	require.Len(t, report.Chunks.Macros, 1)
	assert.Equal(t, "refresh_summary", report.Chunks.Macros[0].Name)
	require.NotEmpty(t, report.Chunks.Units)
	for _, u := range report.Chunks.Units {
		assert.NotContains(t, u.Text, "%macro")
	}
}

func TestAnalyze_DatabasesOnly(t *testing.T) {
	report, err := Analyze(scenarioSource, Options{DatabasesOnly: true})
	require.NoError(t, err)

	assert.Len(t, report.Databases, 3)
	assert.Nil(t, report.Macros)
	assert.Nil(t, report.Dependencies)
	assert.Nil(t, report.Complexity)
	assert.Nil(t, report.Chunks)
}

func TestAnalyze_InputValidation(t *testing.T) {
	_, err := Analyze("", Options{})
	assert.ErrorIs(t, err, apperrors.ErrEmptySource)

	_, err = Analyze("   \n\t  ", Options{})
	assert.ErrorIs(t, err, apperrors.ErrEmptySource)

	_, err = Analyze("data a; run; \xff\xfe", Options{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidEncoding)
}

func TestAnalyze_UnknownQualifierReported(t *testing.T) {
	source := `
libname ora oracle path=p;
proc sql;
  select * from stg.events;
  select * from ora.customers;
quit;
`
	report, err := Analyze(source, Options{})
	require.NoError(t, err)

	require.Len(t, report.UnknownTables, 1)
	assert.Equal(t, "stg.events", report.UnknownTables[0].TableName)

	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, models.AnomalyUnknownAlias, report.Anomalies[0].Kind)
}

func TestAnalyze_MacroBodySQLOffsets(t *testing.T) {
	source := `
libname ora oracle path=p;
%macro inner_sql;
  proc sql;
    select * from ora.t1;
`
	report, err := Analyze(source, Options{})
	require.NoError(t, err)

	// The macro is unterminated and so is its inner SQL block; both are
	// surfaced as anomalies, in whole-source offsets.
	kinds := map[models.AnomalyKind]bool{}
	for _, a := range report.Anomalies {
		kinds[a.Kind] = true
		assert.LessOrEqual(t, a.Offset, len(source))
	}
	assert.True(t, kinds[models.AnomalyUnterminatedMacro])
	assert.True(t, kinds[models.AnomalyUnterminatedSQL])

	ora := findDB(t, report, "ora")
	assert.Equal(t, []models.Operation{models.OpSelect}, findTable(t, ora, "t1").Operations)
}
