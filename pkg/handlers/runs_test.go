package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/services"
	"github.com/codemorph-io/sas-engine/pkg/services/workqueue"
)

// memRunRepository is an in-memory AnalysisRunRepository for handler
// tests.
type memRunRepository struct {
	runs map[uuid.UUID]*models.AnalysisRun
}

func newMemRunRepository() *memRunRepository {
	return &memRunRepository{runs: make(map[uuid.UUID]*models.AnalysisRun)}
}

func (m *memRunRepository) Create(_ context.Context, run *models.AnalysisRun) error {
	m.runs[run.ID] = run
	return nil
}

func (m *memRunRepository) Get(_ context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return run, nil
}

func (m *memRunRepository) List(_ context.Context, limit int) ([]*models.AnalysisRun, error) {
	out := make([]*models.AnalysisRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRunRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.runs[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.runs, id)
	return nil
}

func newRunsHandler(repo *memRunRepository) *RunsHandler {
	svc := services.NewAnalysisService(repo, nil, time.Minute, zap.NewNop())
	return NewRunsHandler(svc, zap.NewNop())
}

func seedRun(repo *memRunRepository, fileName string, createdAt time.Time) *models.AnalysisRun {
	run := &models.AnalysisRun{
		ID:        uuid.New(),
		FileName:  fileName,
		Report:    &models.AnalysisReport{},
		CreatedAt: createdAt,
	}
	repo.runs[run.ID] = run
	return run
}

func TestRunsHandler_Create(t *testing.T) {
	repo := newMemRunRepository()
	queue := workqueue.New(zap.NewNop())
	svc := services.NewAnalysisService(repo, nil, time.Minute, zap.NewNop(), services.WithQueue(queue))
	h := NewRunsHandler(svc, zap.NewNop())

	body := []byte(`{"source": "data work.a; set work.b; run;", "fileName": "job.sas"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id, err := uuid.Parse(resp["runId"])
	require.NoError(t, err)

	require.NoError(t, queue.Wait(context.Background()))
	run, err := svc.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "job.sas", run.FileName)
}

func TestRunsHandler_CreateWithoutQueue(t *testing.T) {
	h := newRunsHandler(newMemRunRepository())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", bytes.NewReader([]byte(`{"source": "data a; run;"}`)))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunsHandler_List(t *testing.T) {
	repo := newMemRunRepository()
	now := time.Now()
	seedRun(repo, "old.sas", now.Add(-time.Hour))
	newest := seedRun(repo, "new.sas", now)
	h := newRunsHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Runs []*models.AnalysisRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, newest.ID, resp.Runs[0].ID)
}

func TestRunsHandler_ListInvalidLimit(t *testing.T) {
	h := newRunsHandler(newMemRunRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsHandler_Get(t *testing.T) {
	repo := newMemRunRepository()
	run := seedRun(repo, "etl.sas", time.Now())
	h := newRunsHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID.String(), nil)
	req.SetPathValue("id", run.ID.String())
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.AnalysisRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "etl.sas", got.FileName)
}

func TestRunsHandler_GetNotFound(t *testing.T) {
	h := newRunsHandler(newMemRunRepository())

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsHandler_GetInvalidID(t *testing.T) {
	h := newRunsHandler(newMemRunRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsHandler_Delete(t *testing.T) {
	repo := newMemRunRepository()
	run := seedRun(repo, "etl.sas", time.Now())
	h := newRunsHandler(repo)

	req := httptest.NewRequest(http.MethodDelete, "/api/runs/"+run.ID.String(), nil)
	req.SetPathValue("id", run.ID.String())
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.runs)

	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
