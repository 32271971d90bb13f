// Package services contains the application services that tie the
// analysis core to persistence, caching, and the conversion pipeline.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/analyzer"
	"github.com/codemorph-io/sas-engine/pkg/logging"
	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/repositories"
	"github.com/codemorph-io/sas-engine/pkg/services/workqueue"
)

// AnalysisService runs analyses and manages their persisted history.
// Both the repository and the cache are optional; with neither, the
// service still analyzes but keeps no history.
type AnalysisService struct {
	repo     repositories.AnalysisRunRepository
	cache    *redis.Client
	cacheTTL time.Duration
	queue    *workqueue.Queue
	logger   *zap.Logger
}

// AnalysisOption configures an AnalysisService.
type AnalysisOption func(*AnalysisService)

// WithQueue enables asynchronous analysis through the given queue.
func WithQueue(q *workqueue.Queue) AnalysisOption {
	return func(s *AnalysisService) {
		s.queue = q
	}
}

// NewAnalysisService creates the analysis service. repo and cache may be
// nil.
func NewAnalysisService(repo repositories.AnalysisRunRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger, opts ...AnalysisOption) *AnalysisService {
	s := &AnalysisService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("analysis"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs the analysis pipeline and records the run. Connection
// details are sanitized before the report leaves this service so
// credentials from LIBNAME statements never reach storage or clients.
func (s *AnalysisService) Analyze(ctx context.Context, source, fileName string, opts analyzer.Options) (*models.AnalysisRun, error) {
	return s.analyzeAs(ctx, uuid.New(), source, fileName, opts)
}

func (s *AnalysisService) analyzeAs(ctx context.Context, id uuid.UUID, source, fileName string, opts analyzer.Options) (*models.AnalysisRun, error) {
	start := time.Now()

	report, err := analyzer.Analyze(source, opts)
	if err != nil {
		return nil, err
	}
	sanitizeReport(report)

	run := &models.AnalysisRun{
		ID:            id,
		FileName:      fileName,
		SourceBytes:   len(source),
		DatabasesOnly: opts.DatabasesOnly,
		Report:        report,
		DurationMS:    time.Since(start).Milliseconds(),
		CreatedAt:     time.Now(),
	}

	s.logger.Info("analysis completed",
		zap.String("run_id", run.ID.String()),
		zap.String("file_name", fileName),
		zap.Int("source_bytes", run.SourceBytes),
		zap.Int("databases", len(report.Databases)),
		zap.Int("anomalies", len(report.Anomalies)),
		zap.Int64("duration_ms", run.DurationMS))

	if s.repo != nil {
		if err := s.repo.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("persist analysis run: %w", err)
		}
	}
	s.cacheRun(ctx, run)

	return run, nil
}

// analysisTask runs one queued analysis under a pre-assigned run ID.
type analysisTask struct {
	workqueue.BaseTask
	svc      *AnalysisService
	runID    uuid.UUID
	source   string
	fileName string
	opts     analyzer.Options
}

// Execute runs the analysis for this task.
func (t *analysisTask) Execute(ctx context.Context, _ workqueue.Enqueuer) error {
	_, err := t.svc.analyzeAs(ctx, t.runID, t.source, t.fileName, t.opts)
	return err
}

// AnalyzeAsync queues the analysis and returns the run ID it will be
// recorded under. The run becomes visible through GetRun once the task
// completes.
func (s *AnalysisService) AnalyzeAsync(source, fileName string, opts analyzer.Options) (uuid.UUID, error) {
	if s.queue == nil {
		return uuid.Nil, fmt.Errorf("async analysis is not enabled")
	}
	if s.repo == nil && s.cache == nil {
		return uuid.Nil, fmt.Errorf("async analysis requires a database or redis to store the result")
	}

	task := &analysisTask{
		BaseTask: workqueue.NewBaseTask("analyze "+fileName, workqueue.KindAnalysis),
		svc:      s,
		runID:    uuid.New(),
		source:   source,
		fileName: fileName,
		opts:     opts,
	}
	s.queue.Enqueue(task)
	return task.runID, nil
}

// AnalysisTasks exposes the queue state for status endpoints.
func (s *AnalysisService) AnalysisTasks() []workqueue.Snapshot {
	if s.queue == nil {
		return nil
	}
	return s.queue.Tasks()
}

// GetRun returns a run by ID, consulting the cache first.
func (s *AnalysisService) GetRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	if run := s.cachedRun(ctx, id); run != nil {
		return run, nil
	}
	if s.repo == nil {
		return nil, fmt.Errorf("analysis history is not enabled")
	}
	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, run)
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *AnalysisService) ListRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("analysis history is not enabled")
	}
	return s.repo.List(ctx, limit)
}

// DeleteRun removes a run from storage and cache.
func (s *AnalysisService) DeleteRun(ctx context.Context, id uuid.UUID) error {
	if s.repo == nil {
		return fmt.Errorf("analysis history is not enabled")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, runCacheKey(id)).Err(); err != nil {
			s.logger.Warn("failed to evict cached run", zap.Error(err))
		}
	}
	return nil
}

func (s *AnalysisService) cacheRun(ctx context.Context, run *models.AnalysisRun) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		s.logger.Warn("failed to marshal run for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, runCacheKey(run.ID), data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("failed to cache run", zap.Error(err))
	}
}

func (s *AnalysisService) cachedRun(ctx context.Context, id uuid.UUID) *models.AnalysisRun {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, runCacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var run models.AnalysisRun
	if err := json.Unmarshal(data, &run); err != nil {
		s.logger.Warn("failed to unmarshal cached run", zap.Error(err))
		return nil
	}
	return &run
}

func runCacheKey(id uuid.UUID) string {
	return "analysis_run:" + id.String()
}

// sanitizeReport strips credentials from connection details and chunk
// text before the report leaves the service.
func sanitizeReport(report *models.AnalysisReport) {
	logging.SanitizeReport(report)
}
