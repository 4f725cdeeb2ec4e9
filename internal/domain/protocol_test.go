package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTable() TransitionTable {
	table := make(TransitionTable, len(DiseaseStates))
	for _, from := range DiseaseStates {
		row := make(map[DiseaseState]float64, len(DiseaseStates))
		for _, to := range DiseaseStates {
			row[to] = 0
		}
		row[STABLE] = 1
		table[from] = row
	}
	return table
}

func validSpec() *ProtocolSpec {
	return &ProtocolSpec{
		Name:                "unit-test",
		LoadingDoseCount:    3,
		LoadingIntervalDays: 28,
		MinIntervalDays:     56,
		MaxIntervalDays:     112,
		ExtensionDays:       14,
		ShorteningDays:      14,
		UpdateIntervalDays:  14,
		BaselineVision:      BaselineVisionDistribution{Type: "normal", Mean: 58, Std: 12},
		Transitions:         validTable(),
		TreatmentEffect:     TreatmentEffectParameters{HalfLifeDays: 56},
	}
}

func TestTransitionTable_Validate(t *testing.T) {
	assert.NoError(t, validTable().Validate())
}

func TestTransitionTable_Validate_Empty(t *testing.T) {
	assert.ErrorIs(t, TransitionTable{}.Validate(), ErrInvalidTransitionTable)
}

func TestTransitionTable_Validate_MissingRow(t *testing.T) {
	table := validTable()
	delete(table, ACTIVE)
	assert.ErrorIs(t, table.Validate(), ErrInvalidTransitionTable)
}

func TestTransitionTable_Validate_MissingTarget(t *testing.T) {
	table := validTable()
	delete(table[ACTIVE], HIGHLY_ACTIVE)
	assert.ErrorIs(t, table.Validate(), ErrInvalidTransitionTable)
}

func TestTransitionTable_Validate_BadRowSum(t *testing.T) {
	table := validTable()
	table[STABLE][ACTIVE] = 0.1 // sum 1.1
	assert.ErrorIs(t, table.Validate(), ErrInvalidTransitionTable)
}

func TestTransitionTable_Validate_WithinTolerance(t *testing.T) {
	table := validTable()
	table[STABLE][STABLE] = 0.9995
	table[STABLE][ACTIVE] = 0.0001
	assert.NoError(t, table.Validate())
}

func TestTransitionTable_Validate_NegativeProbability(t *testing.T) {
	table := validTable()
	table[STABLE][ACTIVE] = -0.1
	table[STABLE][STABLE] = 1.1
	assert.ErrorIs(t, table.Validate(), ErrInvalidTransitionTable)
}

func TestProtocolSpec_Validate(t *testing.T) {
	spec := validSpec()
	require.NoError(t, spec.Validate())
	// Enrollment defaults on first validation.
	assert.Equal(t, ENROLL_ALL_AT_START, spec.Enrollment)
}

func TestProtocolSpec_Validate_IntervalBounds(t *testing.T) {
	spec := validSpec()
	spec.MaxIntervalDays = spec.MinIntervalDays - 1
	assert.ErrorIs(t, spec.Validate(), ErrInvalidProtocol)
}

func TestProtocolSpec_Validate_HalfLife(t *testing.T) {
	spec := validSpec()
	spec.TreatmentEffect.HalfLifeDays = 0
	assert.ErrorIs(t, spec.Validate(), ErrInvalidProtocol)
}

func TestProtocolSpec_Validate_BaselineType(t *testing.T) {
	spec := validSpec()
	spec.BaselineVision.Type = "lognormal"
	assert.ErrorIs(t, spec.Validate(), ErrInvalidProtocol)
}

func TestProtocolSpec_Validate_PoissonWindow(t *testing.T) {
	spec := validSpec()
	spec.Enrollment = ENROLL_POISSON
	assert.ErrorIs(t, spec.Validate(), ErrInvalidProtocol)

	spec.EnrollmentWindowDays = 180
	assert.NoError(t, spec.Validate())
}

func TestProtocolSpec_Validate_DiscontinuationProbabilities(t *testing.T) {
	spec := validSpec()
	spec.Discontinuation.StableProbability = 1.5
	assert.ErrorIs(t, spec.Validate(), ErrInvalidProtocol)
}

func TestProtocolSpec_Checksum(t *testing.T) {
	a := validSpec()
	b := validSpec()
	require.Equal(t, a.Checksum(), b.Checksum())
	assert.Len(t, a.Checksum(), 64)

	b.MaxIntervalDays = 98
	assert.NotEqual(t, a.Checksum(), b.Checksum())
}
