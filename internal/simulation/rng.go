// Package simulation implements the AMD treatment simulation core: the
// fortnightly disease-state Markov model, the treatment-effect decay, the
// vision response models, the treat-and-extend protocol scheduler, the
// discontinuation/retreatment policy and the event-driven engine that ties
// them together.
//
// Every stochastic draw flows through an explicit *rand.Rand owned by the
// engine or derived from it. Nothing in this package touches the global
// math/rand source, so identical seeds reproduce identical results.
package simulation

import (
	"math"
	"math/rand"
)

// splitmix64 mixes a seed into a well-distributed 64-bit value. Used to
// derive independent per-patient substreams from the master seed so that
// per-patient draw sequences do not depend on event interleaving.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// NewMasterRNG returns the engine-level generator for the given seed. It is
// used only for patient initialization, in fixed patient-index order.
func NewMasterRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewPatientRNG returns the dedicated substream for one patient, derived
// deterministically from the master seed and the patient index.
func NewPatientRNG(seed int64, patientIndex int) *rand.Rand {
	derived := splitmix64(uint64(seed)) ^ splitmix64(uint64(patientIndex)+0x51_7c_c1_b7_27_22_0a_95)
	return rand.New(rand.NewSource(int64(derived)))
}

// sampleNormal draws from N(mean, std) using the given generator.
func sampleNormal(rng *rand.Rand, mean, std float64) float64 {
	return mean + rng.NormFloat64()*std
}

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia-Tsang method.
// Only needed for beta-distributed baseline vision.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Boost: Gamma(a) = Gamma(a+1) * U^(1/a)
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / (3.0 * math.Sqrt(d))
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// sampleBeta draws from Beta(alpha, beta).
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}
