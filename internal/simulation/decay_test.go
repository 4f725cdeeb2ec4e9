package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTreatmentDecay_HalfLife(t *testing.T) {
	decay := NewTreatmentDecay(56)

	assert.InDelta(t, 1.0, decay.Efficacy(0), 1e-6)
	assert.InDelta(t, 0.5, decay.Efficacy(56), 1e-6)
	assert.InDelta(t, 0.25, decay.Efficacy(112), 1e-6)
}

func TestTreatmentDecay_NegativeDays(t *testing.T) {
	decay := NewTreatmentDecay(56)
	assert.Zero(t, decay.Efficacy(-1))
}

func TestTreatmentDecay_LargeDays(t *testing.T) {
	decay := NewTreatmentDecay(56)

	// Several thousand days must underflow toward zero without blowing up.
	e := decay.Efficacy(5000)
	assert.GreaterOrEqual(t, e, 0.0)
	assert.Less(t, e, 1e-20)
}

func TestTreatmentDecay_NeverTreated(t *testing.T) {
	decay := NewTreatmentDecay(56)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Zero(t, decay.EfficacyAt(nil, now))

	last := now.AddDate(0, 0, -56)
	assert.InDelta(t, 0.5, decay.EfficacyAt(&last, now), 1e-6)
}
