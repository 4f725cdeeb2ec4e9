package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/amd-treatment-sim/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL results store around an
// existing connection. The schema is expected to exist already (created via
// migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL results store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

const pgRunColumns = `run_id, protocol_name, protocol_checksum, seed,
	patient_count, duration_years, total_injections, total_visits,
	final_vision_mean, final_vision_std, discontinuation_rate,
	retreatment_count, created_at`

// SaveRun stores the aggregate summary for a completed run.
func (s *PostgresStore) SaveRun(ctx context.Context, summary *domain.RunSummary) error {
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO simulation_runs (
			run_id, protocol_name, protocol_checksum, seed,
			patient_count, duration_years, total_injections, total_visits,
			final_vision_mean, final_vision_std, discontinuation_rate,
			retreatment_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		summary.RunID, summary.ProtocolName, summary.ProtocolChecksum, summary.Seed,
		summary.PatientCount, summary.DurationYears, summary.TotalInjections, summary.TotalVisits,
		summary.FinalVisionMean, summary.FinalVisionStd, summary.DiscontinuationRate,
		summary.RetreatmentCount, summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", summary.RunID, err)
	}
	return nil
}

// GetRun fetches a run summary by id.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+pgRunColumns+" FROM simulation_runs WHERE run_id = $1", runID)
	summary, err := scanRunSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching run %s: %w", runID, err)
	}
	return summary, nil
}

// ListRuns returns the most recent run summaries, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+pgRunColumns+" FROM simulation_runs ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.RunSummary
	for rows.Next() {
		summary, err := scanRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// SaveHistories stores the per-patient visit histories of a run as JSONB.
func (s *PostgresStore) SaveHistories(ctx context.Context, runID string, patients map[string]*domain.PatientAgent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patient_histories (run_id, patient_id, history)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, patient_id) DO UPDATE SET history = EXCLUDED.history`)
	if err != nil {
		return fmt.Errorf("preparing history insert: %w", err)
	}
	defer stmt.Close()

	for id, patient := range patients {
		data, err := json.Marshal(patient)
		if err != nil {
			return fmt.Errorf("encoding history for %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, id, string(data)); err != nil {
			return fmt.Errorf("saving history for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetHistory fetches one patient's history from a run.
func (s *PostgresStore) GetHistory(ctx context.Context, runID, patientID string) (*domain.PatientAgent, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT history FROM patient_histories WHERE run_id = $1 AND patient_id = $2",
		runID, patientID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patient %s in run %s: %w", patientID, runID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	patient := &domain.PatientAgent{}
	if err := json.Unmarshal([]byte(data), patient); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return patient, nil
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
