package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is one persisted analysis execution.
type AnalysisRun struct {
	ID            uuid.UUID       `json:"id"`
	FileName      string          `json:"fileName,omitempty"`
	SourceBytes   int             `json:"sourceBytes"`
	DatabasesOnly bool            `json:"databasesOnly"`
	Report        *AnalysisReport `json:"report"`
	DurationMS    int64           `json:"durationMs"`
	CreatedAt     time.Time       `json:"createdAt"`
}
