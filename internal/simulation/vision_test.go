package simulation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd-treatment-sim/internal/domain"
)

func TestNewVisionModel_SelectsParamModel(t *testing.T) {
	model := NewVisionModel(testProtocol(), testLogger())
	_, ok := model.(*ParamVisionModel)
	assert.True(t, ok)
}

func TestNewVisionModel_FallsBackWhenIncomplete(t *testing.T) {
	spec := testProtocol()
	delete(spec.VisionChange, domain.HIGHLY_ACTIVE)

	model := NewVisionModel(spec, testLogger())
	_, ok := model.(*SimpleVisionModel)
	assert.True(t, ok)
}

func TestNewVisionModel_FallsBackWhenAbsent(t *testing.T) {
	spec := testProtocol()
	spec.VisionChange = nil

	model := NewVisionModel(spec, testLogger())
	_, ok := model.(*SimpleVisionModel)
	assert.True(t, ok)
}

func TestParamVisionModel_BlendsByEfficacy(t *testing.T) {
	params := fullVisionChange()
	// Zero std makes the draw exactly the blended mean.
	params[domain.ACTIVE] = domain.VisionChangeParameters{
		UntreatedMean: -2, UntreatedStd: 0,
		TreatedMean: 1, TreatedStd: 0,
	}
	model, ok := NewParamVisionModel(params)
	require.True(t, ok)

	rng := rand.New(rand.NewSource(1))
	assert.InDelta(t, -2.0, model.Delta(domain.ACTIVE, 0, rng), 1e-9)
	assert.InDelta(t, 1.0, model.Delta(domain.ACTIVE, 1, rng), 1e-9)
	assert.InDelta(t, -0.5, model.Delta(domain.ACTIVE, 0.5, rng), 1e-9)
}

func TestSimpleVisionModel_TreatmentAttenuatesDecline(t *testing.T) {
	model := &SimpleVisionModel{}

	// Average over many draws so the noise washes out.
	mean := func(efficacy float64) float64 {
		rng := rand.New(rand.NewSource(11))
		sum := 0.0
		for i := 0; i < 10000; i++ {
			sum += model.Delta(domain.HIGHLY_ACTIVE, efficacy, rng)
		}
		return sum / 10000
	}

	untreated := mean(0)
	treated := mean(1)
	assert.InDelta(t, -3.0, untreated, 0.1)
	assert.InDelta(t, -3.0*(1-maxTreatmentAttenuation), treated, 0.1)
	assert.Greater(t, treated, untreated)
}

func TestApplyVisionDelta_Clamps(t *testing.T) {
	assert.Equal(t, 0.0, ApplyVisionDelta(3, -10, 80))
	assert.Equal(t, 80.0, ApplyVisionDelta(78, 10, 80))
	assert.Equal(t, 55.0, ApplyVisionDelta(50, 5, 80))
}
