// Package repositories provides data access for persisted analysis runs.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/codemorph-io/sas-engine/pkg/apperrors"
	"github.com/codemorph-io/sas-engine/pkg/database"
	"github.com/codemorph-io/sas-engine/pkg/models"
)

// AnalysisRunRepository defines data access for analysis runs.
type AnalysisRunRepository interface {
	Create(ctx context.Context, run *models.AnalysisRun) error
	Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error)
	List(ctx context.Context, limit int) ([]*models.AnalysisRun, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// analysisRunRepository implements AnalysisRunRepository using PostgreSQL.
type analysisRunRepository struct {
	db *database.DB
}

// NewAnalysisRunRepository creates a new analysis run repository.
func NewAnalysisRunRepository(db *database.DB) AnalysisRunRepository {
	return &analysisRunRepository{db: db}
}

// Create inserts a new analysis run. The report is stored as JSONB.
func (r *analysisRunRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO analysis_runs (id, file_name, source_bytes, databases_only, report, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query,
		run.ID,
		run.FileName,
		run.SourceBytes,
		run.DatabasesOnly,
		report,
		run.DurationMS,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}

	return nil
}

// Get retrieves an analysis run by ID.
func (r *analysisRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	query := `
		SELECT id, file_name, source_bytes, databases_only, report, duration_ms, created_at
		FROM analysis_runs
		WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}
	return run, nil
}

// List returns the most recent analysis runs, newest first.
func (r *analysisRunRepository) List(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, file_name, source_bytes, databases_only, report, duration_ms, created_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes an analysis run by ID.
func (r *analysisRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM analysis_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*models.AnalysisRun, error) {
	var (
		run    models.AnalysisRun
		report []byte
	)
	if err := row.Scan(
		&run.ID,
		&run.FileName,
		&run.SourceBytes,
		&run.DatabasesOnly,
		&report,
		&run.DurationMS,
		&run.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(report, &run.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &run, nil
}
