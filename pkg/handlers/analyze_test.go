package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/services"
)

func newAnalyzeHandler() *AnalyzeHandler {
	svc := services.NewAnalysisService(nil, nil, time.Minute, zap.NewNop())
	return NewAnalyzeHandler(svc, zap.NewNop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAnalyzeHandler_Analyze(t *testing.T) {
	h := newAnalyzeHandler()

	rec := postJSON(t, h.Analyze, AnalyzeRequest{
		Source: `
libname ora oracle path=proddb;
proc sql;
  select * from ora.customers;
quit;
`,
		FileName: "etl.sas",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var run models.AnalysisRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "etl.sas", run.FileName)
	require.NotNil(t, run.Report)
	require.Len(t, run.Report.Databases, 1)
	assert.Equal(t, "ora", run.Report.Databases[0].DatabaseName)
}

func TestAnalyzeHandler_EmptySource(t *testing.T) {
	h := newAnalyzeHandler()

	rec := postJSON(t, h.Analyze, AnalyzeRequest{Source: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_source", body["error"])
}

func TestAnalyzeHandler_InvalidBody(t *testing.T) {
	h := newAnalyzeHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeHandler_DatabasesOnly(t *testing.T) {
	h := newAnalyzeHandler()

	rec := postJSON(t, h.Analyze, AnalyzeRequest{
		Source:        "libname ora oracle path=proddb;\nproc sql;\n select * from ora.t;\nquit;",
		DatabasesOnly: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var run models.AnalysisRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.True(t, run.DatabasesOnly)
	assert.Nil(t, run.Report.Chunks)
}
