package simulation

import (
	"math"
	"time"
)

// TreatmentDecay converts "days since last injection" into a treatment
// efficacy scalar in [0,1] by exponential half-life decay. It is a pure
// function object shared by the disease and vision models.
type TreatmentDecay struct {
	HalfLifeDays float64
}

// NewTreatmentDecay creates a decay function with the given half-life.
// Half-life must be validated upstream (ProtocolSpec.Validate).
func NewTreatmentDecay(halfLifeDays float64) TreatmentDecay {
	return TreatmentDecay{HalfLifeDays: halfLifeDays}
}

// Efficacy returns the treatment efficacy for a patient treated the given
// number of days ago. Negative days yield 0. The exponential naturally
// underflows toward 0 for very large arguments; there is no overflow risk.
func (d TreatmentDecay) Efficacy(daysSinceInjection float64) float64 {
	if daysSinceInjection < 0 {
		return 0
	}
	return math.Pow(0.5, daysSinceInjection/d.HalfLifeDays)
}

// EfficacyAt returns the efficacy at the given time for a patient last
// injected at lastInjection. A nil lastInjection means never treated, which
// yields 0.
func (d TreatmentDecay) EfficacyAt(lastInjection *time.Time, at time.Time) float64 {
	if lastInjection == nil {
		return 0
	}
	return d.Efficacy(at.Sub(*lastInjection).Hours() / 24)
}
