// Package resultstore persists completed simulation runs: the aggregate
// summary row plus the JSON-encoded per-patient visit histories. Two
// backends are provided, SQLite for single-machine use and PostgreSQL for
// shared deployments, plus an optional Redis cache in front of either.
package resultstore

import (
	"context"

	"github.com/amd-treatment-sim/internal/domain"
)

// Store is the persistence contract for simulation results.
type Store interface {
	// SaveRun stores the aggregate summary for a completed run.
	SaveRun(ctx context.Context, summary *domain.RunSummary) error
	// GetRun fetches a run summary by id; domain.ErrNotFound when absent.
	GetRun(ctx context.Context, runID string) (*domain.RunSummary, error)
	// ListRuns returns the most recent run summaries, newest first.
	ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error)
	// SaveHistories stores the per-patient visit histories of a run.
	SaveHistories(ctx context.Context, runID string, patients map[string]*domain.PatientAgent) error
	// GetHistory fetches one patient's history from a run.
	GetHistory(ctx context.Context, runID, patientID string) (*domain.PatientAgent, error)
	// Close releases the underlying connection.
	Close() error
}
