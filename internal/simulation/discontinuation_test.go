package simulation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd-treatment-sim/internal/domain"
)

func TestDiscontinuationPolicy_AllRulesDisabled(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{}, testLogger())
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		_, stop := policy.Evaluate(EvaluationInput{
			MeasuredVision:   60,
			IntervalDays:     112,
			StableAtMax:      true,
			YearsOnTreatment: 20,
		}, rng)
		require.False(t, stop)
	}
}

func TestDiscontinuationPolicy_StableMaxInterval(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{
		StableProbability: 1,
	}, testLogger())
	rng := rand.New(rand.NewSource(2))

	reason, stop := policy.Evaluate(EvaluationInput{MeasuredVision: 60, IntervalDays: 112, StableAtMax: true}, rng)
	require.True(t, stop)
	assert.Equal(t, domain.STABLE_MAX_INTERVAL, reason)

	// Not stable at max: the rule never fires.
	_, stop = policy.Evaluate(EvaluationInput{MeasuredVision: 60, IntervalDays: 70, StableAtMax: false}, rng)
	assert.False(t, stop)
}

func TestDiscontinuationPolicy_PoorVisionThreshold(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{
		PoorVisionThreshold:   15,
		PoorVisionProbability: 1,
	}, testLogger())
	rng := rand.New(rand.NewSource(3))

	reason, stop := policy.Evaluate(EvaluationInput{MeasuredVision: 14.9, IntervalDays: 56}, rng)
	require.True(t, stop)
	assert.Equal(t, domain.POOR_VISION, reason)

	// At or above the threshold the rule does not apply.
	_, stop = policy.Evaluate(EvaluationInput{MeasuredVision: 15, IntervalDays: 56}, rng)
	assert.False(t, stop)
}

func TestDiscontinuationPolicy_CourseComplete(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{
		CourseDurationYears:       10,
		CourseCompleteProbability: 1,
	}, testLogger())
	rng := rand.New(rand.NewSource(4))

	_, stop := policy.Evaluate(EvaluationInput{MeasuredVision: 60, IntervalDays: 56, YearsOnTreatment: 9.9}, rng)
	assert.False(t, stop)

	reason, stop := policy.Evaluate(EvaluationInput{MeasuredVision: 60, IntervalDays: 56, YearsOnTreatment: 10}, rng)
	require.True(t, stop)
	assert.Equal(t, domain.COURSE_COMPLETE, reason)
}

func TestDiscontinuationPolicy_AdministrativeScalesWithInterval(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{
		AdministrativeAnnualProbability: 0.5,
	}, testLogger())

	fires := func(intervalDays, trials int) int {
		rng := rand.New(rand.NewSource(5))
		n := 0
		for i := 0; i < trials; i++ {
			if _, stop := policy.Evaluate(EvaluationInput{MeasuredVision: 60, IntervalDays: intervalDays}, rng); stop {
				n++
			}
		}
		return n
	}

	short := fires(28, 5000)
	long := fires(112, 5000)
	assert.Greater(t, long, short)
	// 1-(1-0.5)^(112/365.25) ~ 0.19 per visit.
	assert.InDelta(t, 0.19, float64(long)/5000, 0.03)
}

func TestMonitoringSchedule_PlannedAnnual(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{}, testLogger())
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, reason := range []domain.DiscontinuationReason{domain.STABLE_MAX_INTERVAL, domain.COURSE_COMPLETE} {
		dates := policy.MonitoringSchedule(reason, from)
		require.Len(t, dates, 3)
		assert.Equal(t, from.Add(365*24*time.Hour), dates[0])
		assert.Equal(t, from.Add(2*365*24*time.Hour), dates[1])
		assert.Equal(t, from.Add(3*365*24*time.Hour), dates[2])
	}
}

func TestMonitoringSchedule_UnplannedWeeks(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{}, testLogger())
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, reason := range []domain.DiscontinuationReason{domain.ADMINISTRATIVE, domain.PREMATURE, domain.POOR_VISION} {
		dates := policy.MonitoringSchedule(reason, from)
		require.Len(t, dates, 3)
		assert.Equal(t, from.Add(8*7*24*time.Hour), dates[0])
		assert.Equal(t, from.Add(16*7*24*time.Hour), dates[1])
		assert.Equal(t, from.Add(24*7*24*time.Hour), dates[2])
	}
}

func TestEvaluateRecurrence_FluidAlwaysDetected(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{}, testLogger())
	rng := rand.New(rand.NewSource(6))

	assert.True(t, policy.EvaluateRecurrence(domain.ACTIVE, 0, rng))
	assert.True(t, policy.EvaluateRecurrence(domain.HIGHLY_ACTIVE, 0, rng))
}

func TestEvaluateRecurrence_ZeroRiskNeverFires(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{}, testLogger())
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 1000; i++ {
		require.False(t, policy.EvaluateRecurrence(domain.STABLE, 365*24*time.Hour, rng))
	}
}

func TestEvaluateRecurrence_RiskScalesWithGap(t *testing.T) {
	policy := NewDiscontinuationPolicy(domain.DiscontinuationParameters{
		RecurrenceBaseAnnualRisk: 0.2,
		RecurrenceRiskMultiplier: 1,
	}, testLogger())

	fires := func(gap time.Duration, trials int) int {
		rng := rand.New(rand.NewSource(8))
		n := 0
		for i := 0; i < trials; i++ {
			if policy.EvaluateRecurrence(domain.STABLE, gap, rng) {
				n++
			}
		}
		return n
	}

	year := fires(365*24*time.Hour, 5000)
	eightWeeks := fires(8*7*24*time.Hour, 5000)
	assert.Greater(t, year, eightWeeks)
	assert.InDelta(t, 0.2, float64(year)/5000, 0.03)
}
