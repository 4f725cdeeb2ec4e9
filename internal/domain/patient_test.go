package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrollDate() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestNewPatientAgent_StartsNaiveAndActive(t *testing.T) {
	p := NewPatientAgent("P00001", enrollDate(), 58, 70)

	assert.Equal(t, NAIVE, p.DiseaseState)
	assert.Equal(t, LOADING, p.Phase)
	assert.True(t, p.Treatment.Active)
	assert.Equal(t, 58.0, p.ActualVision)
	assert.Equal(t, 70.0, p.VisionCeiling)
	assert.Zero(t, p.InjectionCount)
	assert.Equal(t, enrollDate(), p.TreatmentStartDate)

	_, treated := p.DaysSinceLastInjection(enrollDate())
	assert.False(t, treated)
}

func TestPatientAgent_RecordInjection(t *testing.T) {
	p := NewPatientAgent("P00001", enrollDate(), 58, 70)

	p.RecordInjection(enrollDate())
	assert.Equal(t, 1, p.InjectionCount)
	assert.Equal(t, 1, p.LoadingInjections)

	days, treated := p.DaysSinceLastInjection(enrollDate().AddDate(0, 0, 28))
	require.True(t, treated)
	assert.InDelta(t, 28, days, 1e-9)

	// Maintenance injections do not advance the loading counter.
	p.Phase = MAINTENANCE
	p.RecordInjection(enrollDate().AddDate(0, 0, 28))
	assert.Equal(t, 2, p.InjectionCount)
	assert.Equal(t, 1, p.LoadingInjections)
}

func TestPatientAgent_DiscontinueAndRetreat(t *testing.T) {
	p := NewPatientAgent("P00001", enrollDate(), 58, 70)
	stopDate := enrollDate().AddDate(1, 0, 0)

	gen := p.CourseGeneration
	p.Discontinue(STABLE_MAX_INTERVAL, stopDate)

	assert.False(t, p.Treatment.Active)
	require.NotNil(t, p.Treatment.DiscontinuedReason)
	assert.Equal(t, STABLE_MAX_INTERVAL, *p.Treatment.DiscontinuedReason)
	require.NotNil(t, p.Treatment.DiscontinuationDate)
	assert.Equal(t, stopDate, *p.Treatment.DiscontinuationDate)
	assert.Equal(t, 1, p.Treatment.DiscontinuationCount)
	assert.Equal(t, gen+1, p.CourseGeneration)

	retreatDate := stopDate.AddDate(1, 0, 0)
	p.ConsecutiveStable = 4
	p.LoadingInjections = 3
	p.Retreat(retreatDate)

	assert.True(t, p.Treatment.Active)
	assert.Nil(t, p.Treatment.DiscontinuedReason)
	assert.Nil(t, p.Treatment.DiscontinuationDate)
	assert.Equal(t, 1, p.Treatment.RetreatmentCount)
	assert.Equal(t, LOADING, p.Phase)
	assert.Zero(t, p.LoadingInjections)
	assert.Zero(t, p.ConsecutiveStable)
	assert.Equal(t, retreatDate, p.TreatmentStartDate)
	assert.Equal(t, gen+2, p.CourseGeneration)

	// Years on treatment count from the retreatment, not enrollment.
	assert.InDelta(t, 1.0, p.YearsOnTreatment(retreatDate.AddDate(1, 0, 0)), 0.01)
}

func TestPatientAgent_FinalMeasuredVision(t *testing.T) {
	p := NewPatientAgent("P00001", enrollDate(), 58, 70)
	assert.Equal(t, 58.0, p.FinalMeasuredVision())

	p.RecordVisit(Visit{Date: enrollDate(), MeasuredVision: 61})
	p.RecordVisit(Visit{Date: enrollDate().AddDate(0, 0, 28), MeasuredVision: 63})
	assert.Equal(t, 63.0, p.FinalMeasuredVision())

	v, ok := p.LastVisit()
	require.True(t, ok)
	assert.Equal(t, 63.0, v.MeasuredVision)
}
