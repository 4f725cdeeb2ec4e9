// Package repository provides pgx-based persistence of run metadata for
// PostgreSQL server deployments. The resultstore package is the
// database/sql counterpart used by single-machine tooling.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// RunRepository handles simulation-run metadata persistence.
type RunRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *pgxpool.Pool, logger *logrus.Logger) *RunRepository {
	return &RunRepository{db: db, log: logger}
}

// GetByID fetches a run summary by its identifier.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `
		SELECT run_id, protocol_name, protocol_checksum, seed,
			patient_count, duration_years, total_injections, total_visits,
			final_vision_mean, final_vision_std, discontinuation_rate,
			retreatment_count, created_at
		FROM simulation_runs
		WHERE run_id = $1`

	summary := &domain.RunSummary{}
	err := r.db.QueryRow(ctx, query, runID).Scan(
		&summary.RunID,
		&summary.ProtocolName,
		&summary.ProtocolChecksum,
		&summary.Seed,
		&summary.PatientCount,
		&summary.DurationYears,
		&summary.TotalInjections,
		&summary.TotalVisits,
		&summary.FinalVisionMean,
		&summary.FinalVisionStd,
		&summary.DiscontinuationRate,
		&summary.RetreatmentCount,
		&summary.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching run %s: %w", runID, err)
	}
	return summary, nil
}

// ListRecent returns recent runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT run_id, protocol_name, protocol_checksum, seed,
			patient_count, duration_years, total_injections, total_visits,
			final_vision_mean, final_vision_std, discontinuation_rate,
			retreatment_count, created_at
		FROM simulation_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.RunSummary
	for rows.Next() {
		summary := &domain.RunSummary{}
		if err := rows.Scan(
			&summary.RunID,
			&summary.ProtocolName,
			&summary.ProtocolChecksum,
			&summary.Seed,
			&summary.PatientCount,
			&summary.DurationYears,
			&summary.TotalInjections,
			&summary.TotalVisits,
			&summary.FinalVisionMean,
			&summary.FinalVisionStd,
			&summary.DiscontinuationRate,
			&summary.RetreatmentCount,
			&summary.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Delete removes a run record.
func (r *RunRepository) Delete(ctx context.Context, runID string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM simulation_runs WHERE run_id = $1", runID)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return nil
}
