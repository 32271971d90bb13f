package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/analyzer"
	"github.com/codemorph-io/sas-engine/pkg/converter"
	"github.com/codemorph-io/sas-engine/pkg/runner"
	"github.com/codemorph-io/sas-engine/pkg/services/workqueue"
)

// ConversionResult is a finished conversion with its stored script.
type ConversionResult struct {
	ScriptID     string   `json:"scriptId"`
	Script       string   `json:"script"`
	Requirements []string `json:"requirements"`
	Notes        []string `json:"notes,omitempty"`
}

// ConversionService analyzes SAS source and converts it to Python.
// Conversions run through the work queue so LLM concurrency stays
// bounded alongside any other queued work.
type ConversionService struct {
	converter *converter.Converter
	scripts   *runner.Runner
	queue     *workqueue.Queue
	maxTokens int
	logger    *zap.Logger
}

// NewConversionService creates the conversion service. scripts may be
// nil to skip storing generated code on disk.
func NewConversionService(conv *converter.Converter, scripts *runner.Runner, queue *workqueue.Queue, maxChunkTokens int, logger *zap.Logger) *ConversionService {
	return &ConversionService{
		converter: conv,
		scripts:   scripts,
		queue:     queue,
		maxTokens: maxChunkTokens,
		logger:    logger.Named("conversion"),
	}
}

// conversionTask adapts one conversion into a queue task.
type conversionTask struct {
	workqueue.BaseTask
	svc    *ConversionService
	source string

	result *ConversionResult
}

// Execute runs the analysis and conversion for this task.
func (t *conversionTask) Execute(ctx context.Context, _ workqueue.Enqueuer) error {
	result, err := t.svc.convert(ctx, t.source)
	if err != nil {
		return err
	}
	t.result = result
	return nil
}

// Convert analyzes source, converts it, and waits for the queued task
// to finish.
func (s *ConversionService) Convert(ctx context.Context, source, fileName string) (*ConversionResult, error) {
	if s.converter == nil {
		return nil, fmt.Errorf("conversion is not configured; set an AI provider")
	}

	task := &conversionTask{
		BaseTask: workqueue.NewBaseTask("convert "+fileName, workqueue.KindConversion),
		svc:      s,
		source:   source,
	}
	s.queue.Enqueue(task)

	waitErr := s.queue.Wait(ctx)
	if task.result != nil {
		return task.result, nil
	}
	// Wait reports the first failure queue-wide; prefer this task's own
	// error when it has one.
	for _, snap := range s.queue.Tasks() {
		if snap.ID == task.ID() && snap.Error != "" {
			return nil, fmt.Errorf("conversion failed: %s", snap.Error)
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return nil, fmt.Errorf("conversion did not complete")
}

func (s *ConversionService) convert(ctx context.Context, source string) (*ConversionResult, error) {
	report, err := analyzer.Analyze(source, analyzer.Options{MaxChunkTokens: s.maxTokens})
	if err != nil {
		return nil, err
	}

	converted, err := s.converter.Convert(ctx, report)
	if err != nil {
		return nil, err
	}

	result := &ConversionResult{
		Script:       converted.Script,
		Requirements: converted.Requirements,
		Notes:        converted.Notes,
	}

	if s.scripts != nil {
		id, err := s.scripts.Save(converted.Script)
		if err != nil {
			return nil, fmt.Errorf("store generated script: %w", err)
		}
		result.ScriptID = id
	}

	s.logger.Info("conversion completed",
		zap.String("script_id", result.ScriptID),
		zap.Int("script_bytes", len(result.Script)),
		zap.Int("requirements", len(result.Requirements)))

	return result, nil
}

// Tasks exposes the queue state for status endpoints.
func (s *ConversionService) Tasks() []workqueue.Snapshot {
	return s.queue.Tasks()
}
