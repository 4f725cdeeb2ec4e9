package simulation

import (
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// VisionModel produces a stochastic visual-acuity delta (ETDRS letters) for
// one disease-state update tick.
type VisionModel interface {
	// Delta returns the vision change for one tick given the disease
	// state and the current treatment efficacy in [0,1].
	Delta(state domain.DiseaseState, efficacy float64, rng *rand.Rand) float64
}

// ParamVisionModel draws the delta from a normal distribution whose mean and
// std are linearly blended between the untreated and treated parameter sets
// proportionally to treatment efficacy, mirroring the disease-transition
// blend.
type ParamVisionModel struct {
	params map[domain.DiseaseState]domain.VisionChangeParameters
}

// NewParamVisionModel constructs the full vision model from per-state
// change parameters. Returns false if the table is missing any state, in
// which case the caller should fall back to the simple model.
func NewParamVisionModel(params map[domain.DiseaseState]domain.VisionChangeParameters) (*ParamVisionModel, bool) {
	if len(params) == 0 {
		return nil, false
	}
	for _, state := range domain.DiseaseStates {
		if _, ok := params[state]; !ok {
			return nil, false
		}
	}
	return &ParamVisionModel{params: params}, true
}

// Delta implements VisionModel.
func (m *ParamVisionModel) Delta(state domain.DiseaseState, efficacy float64, rng *rand.Rand) float64 {
	p := m.params[state]
	mean := p.UntreatedMean*(1-efficacy) + p.TreatedMean*efficacy
	std := p.UntreatedStd*(1-efficacy) + p.TreatedStd*efficacy
	return sampleNormal(rng, mean, std)
}

// SimpleVisionModel is the degraded-but-functional fallback used when full
// vision-change parameters are unavailable: a fixed per-state decline that
// an effective treatment attenuates by up to 70%.
type SimpleVisionModel struct{}

// maxTreatmentAttenuation caps how much of the per-state decline a fully
// effective treatment can cancel.
const maxTreatmentAttenuation = 0.7

// simpleDecline is the per-tick untreated vision change in letters.
var simpleDecline = map[domain.DiseaseState]float64{
	domain.NAIVE:         -1.0,
	domain.STABLE:        -0.2,
	domain.ACTIVE:        -1.5,
	domain.HIGHLY_ACTIVE: -3.0,
}

// simpleNoiseStd is the per-tick noise around the fixed decline.
const simpleNoiseStd = 0.5

// Delta implements VisionModel.
func (m *SimpleVisionModel) Delta(state domain.DiseaseState, efficacy float64, rng *rand.Rand) float64 {
	decline := simpleDecline[state]
	attenuated := decline * (1 - maxTreatmentAttenuation*efficacy)
	return attenuated + rng.NormFloat64()*simpleNoiseStd
}

// NewVisionModel selects the parameterized model when the protocol carries a
// complete vision-change table, otherwise logs the degraded mode and returns
// the simple fallback. Missing parameters are a data condition, never an
// error.
func NewVisionModel(spec *domain.ProtocolSpec, logger *logrus.Logger) VisionModel {
	if m, ok := NewParamVisionModel(spec.VisionChange); ok {
		return m
	}
	logger.WithField("protocol", spec.Name).Warn(
		"Vision-change parameters incomplete, falling back to simple vision model")
	return &SimpleVisionModel{}
}

// ApplyVisionDelta applies a delta to the current acuity and clamps the
// result to [0, ceiling]. Ceilings never exceed 85 letters.
func ApplyVisionDelta(current, delta, ceiling float64) float64 {
	v := current + delta
	if v < 0 {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
