package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amd-treatment-sim/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite results store. It creates the
// database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency between writers and readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulation_runs (
		run_id TEXT PRIMARY KEY,
		protocol_name TEXT NOT NULL,
		protocol_checksum TEXT NOT NULL DEFAULT '',
		seed INTEGER NOT NULL,
		patient_count INTEGER NOT NULL,
		duration_years REAL NOT NULL,
		total_injections INTEGER NOT NULL,
		total_visits INTEGER NOT NULL,
		final_vision_mean REAL NOT NULL,
		final_vision_std REAL NOT NULL,
		discontinuation_rate REAL NOT NULL,
		retreatment_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS patient_histories (
		run_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		history TEXT NOT NULL,
		PRIMARY KEY (run_id, patient_id),
		FOREIGN KEY (run_id) REFERENCES simulation_runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON simulation_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_protocol ON simulation_runs(protocol_name);
	`
	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRunSummary(s scanner) (*domain.RunSummary, error) {
	r := &domain.RunSummary{}
	err := s.Scan(
		&r.RunID, &r.ProtocolName, &r.ProtocolChecksum, &r.Seed,
		&r.PatientCount, &r.DurationYears, &r.TotalInjections, &r.TotalVisits,
		&r.FinalVisionMean, &r.FinalVisionStd, &r.DiscontinuationRate,
		&r.RetreatmentCount, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

const runColumns = `run_id, protocol_name, protocol_checksum, seed,
	patient_count, duration_years, total_injections, total_visits,
	final_vision_mean, final_vision_std, discontinuation_rate,
	retreatment_count, created_at`

// SaveRun stores the aggregate summary for a completed run.
func (s *SQLiteStore) SaveRun(ctx context.Context, summary *domain.RunSummary) error {
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO simulation_runs (
			run_id, protocol_name, protocol_checksum, seed,
			patient_count, duration_years, total_injections, total_visits,
			final_vision_mean, final_vision_std, discontinuation_rate,
			retreatment_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM simulation_runs WHERE run_id = ?", runID)
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
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM simulation_runs ORDER BY created_at DESC LIMIT ?", limit)
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

// SaveHistories stores the per-patient visit histories of a run as JSON.
func (s *SQLiteStore) SaveHistories(ctx context.Context, runID string, patients map[string]*domain.PatientAgent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO patient_histories (run_id, patient_id, history) VALUES (?, ?, ?)")
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
func (s *SQLiteStore) GetHistory(ctx context.Context, runID, patientID string) (*domain.PatientAgent, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT history FROM patient_histories WHERE run_id = ? AND patient_id = ?",
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
