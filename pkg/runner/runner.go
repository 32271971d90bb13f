// Package runner stores generated Python scripts and executes them as
// subprocesses with line-streamed output.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codemorph-io/sas-engine/pkg/apperrors"
)

// Stream identifies which output stream a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// LineFunc receives one output line as it is produced.
type LineFunc func(stream Stream, line string)

// Runner saves scripts under a directory keyed by ID and runs them.
type Runner struct {
	dir         string
	interpreter string
	logger      *zap.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterpreter overrides the interpreter binary (default python3).
func WithInterpreter(interpreter string) Option {
	return func(r *Runner) {
		if interpreter != "" {
			r.interpreter = interpreter
		}
	}
}

// New creates a runner that stores scripts under dir, creating it if
// needed.
func New(dir string, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scripts dir: %w", err)
	}
	r := &Runner{
		dir:         dir,
		interpreter: "python3",
		logger:      logger.Named("runner"),
		running:     make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Save writes script content to a new file and returns its ID.
func (r *Runner) Save(script string) (string, error) {
	id := uuid.New().String()
	if err := os.WriteFile(filepath.Join(r.dir, id+".py"), []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	r.logger.Info("script saved", zap.String("script_id", id))
	return id, nil
}

// Load returns the stored script content for id.
func (r *Runner) Load(id string) (string, error) {
	path, err := r.scriptPath(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", apperrors.ErrScriptNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

// Run executes the script with the configured interpreter, streaming
// each output line to onLine as it is produced. Run blocks until the
// process exits or ctx is cancelled; Stop from another goroutine also
// terminates it.
func (r *Runner) Run(ctx context.Context, id string, onLine LineFunc) error {
	path, err := r.scriptPath(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return apperrors.ErrScriptNotFound
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if _, exists := r.running[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("script %s is already running", id)
	}
	r.running[id] = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, id)
		r.mu.Unlock()
	}()

	cmd := exec.CommandContext(runCtx, r.interpreter, path)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start script: %w", err)
	}

	r.logger.Info("script started",
		zap.String("script_id", id),
		zap.Int("pid", cmd.Process.Pid))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, StreamStdout, onLine)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, StreamStderr, onLine)
	}()
	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		r.logger.Warn("script exited with error",
			zap.String("script_id", id),
			zap.Error(err))
		return fmt.Errorf("script %s: %w", id, err)
	}

	r.logger.Info("script completed", zap.String("script_id", id))
	return nil
}

// Stop terminates a running script. Stopping a script that is not
// running returns ErrNotFound.
func (r *Runner) Stop(id string) error {
	r.mu.Lock()
	cancel, ok := r.running[id]
	r.mu.Unlock()

	if !ok {
		return apperrors.ErrNotFound
	}
	cancel()
	r.logger.Info("script stop requested", zap.String("script_id", id))
	return nil
}

// Running lists the IDs of currently running scripts.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	return ids
}

// scriptPath validates id before it touches the filesystem. IDs are
// always UUIDs assigned by Save; anything else, including path
// separators, is treated as not found.
func (r *Runner) scriptPath(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.ErrScriptNotFound
	}
	return filepath.Join(r.dir, id+".py"), nil
}

func scanLines(src interface{ Read([]byte) (int, error) }, stream Stream, onLine LineFunc) {
	if onLine == nil {
		onLine = func(Stream, string) {}
	}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(stream, scanner.Text())
	}
}
