package resultstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd-treatment-sim/internal/domain"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store, mock
}

func TestNewPostgresStore_NilConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_SaveRun(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	summary := sampleSummary("run-1")

	mock.ExpectExec("INSERT INTO simulation_runs").
		WithArgs(
			summary.RunID, summary.ProtocolName, summary.ProtocolChecksum, summary.Seed,
			summary.PatientCount, summary.DurationYears, summary.TotalInjections, summary.TotalVisits,
			summary.FinalVisionMean, summary.FinalVisionStd, summary.DiscontinuationRate,
			summary.RetreatmentCount, summary.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveRun(context.Background(), summary))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_StampsCreatedAt(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	summary := sampleSummary("run-1")
	summary.CreatedAt = time.Time{}

	mock.ExpectExec("INSERT INTO simulation_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveRun(context.Background(), summary))
	assert.False(t, summary.CreatedAt.IsZero())
}

func runRows(summaries ...*domain.RunSummary) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"run_id", "protocol_name", "protocol_checksum", "seed",
		"patient_count", "duration_years", "total_injections", "total_visits",
		"final_vision_mean", "final_vision_std", "discontinuation_rate",
		"retreatment_count", "created_at",
	})
	for _, s := range summaries {
		rows.AddRow(
			s.RunID, s.ProtocolName, s.ProtocolChecksum, s.Seed,
			s.PatientCount, s.DurationYears, s.TotalInjections, s.TotalVisits,
			s.FinalVisionMean, s.FinalVisionStd, s.DiscontinuationRate,
			s.RetreatmentCount, s.CreatedAt,
		)
	}
	return rows
}

func TestPostgresStore_GetRun(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	want := sampleSummary("run-1")

	mock.ExpectQuery("SELECT (.+) FROM simulation_runs WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(runRows(want))

	got, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT (.+) FROM simulation_runs WHERE run_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_ListRuns(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	a := sampleSummary("run-a")
	b := sampleSummary("run-b")

	mock.ExpectQuery("SELECT (.+) FROM simulation_runs ORDER BY created_at DESC").
		WithArgs(10).
		WillReturnRows(runRows(a, b))

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT (.+) FROM simulation_runs ORDER BY created_at DESC").
		WithArgs(50).
		WillReturnRows(runRows())

	_, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveHistories(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	enrollment := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	patients := map[string]*domain.PatientAgent{
		"P00001": domain.NewPatientAgent("P00001", enrollment, 58, 70),
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO patient_histories").
		ExpectExec().
		WithArgs("run-1", "P00001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveHistories(context.Background(), "run-1", patients))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHistory_NotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT history FROM patient_histories").
		WithArgs("run-1", "P99999").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetHistory(context.Background(), "run-1", "P99999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_GetHistory(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	history := `{"id":"P00001","injection_count":3,"visit_history":[]}`
	mock.ExpectQuery("SELECT history FROM patient_histories").
		WithArgs("run-1", "P00001").
		WillReturnRows(sqlmock.NewRows([]string{"history"}).AddRow(history))

	got, err := store.GetHistory(context.Background(), "run-1", "P00001")
	require.NoError(t, err)
	assert.Equal(t, "P00001", got.ID)
	assert.Equal(t, 3, got.InjectionCount)
}
