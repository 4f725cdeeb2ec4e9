package simulation

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// DiseaseModel advances the four-state AMD disease chain on a fixed
// fortnightly cadence, independent of clinic visit timing. The per-patient
// last-update map is owned exclusively by this instance; multiple models can
// coexist in one process without cross-contamination.
type DiseaseModel struct {
	transitions    domain.TransitionTable
	multipliers    map[domain.DiseaseState]map[domain.DiseaseState]float64
	decay          TreatmentDecay
	updateInterval time.Duration
	lastUpdate     map[string]time.Time
	log            *logrus.Logger
}

// NewDiseaseModel validates the transition table and constructs the model.
// A malformed table (rows not summing to 1.0, missing targets) is a
// configuration error and fails immediately.
func NewDiseaseModel(spec *domain.ProtocolSpec, logger *logrus.Logger) (*DiseaseModel, error) {
	if err := spec.Transitions.Validate(); err != nil {
		return nil, fmt.Errorf("constructing disease model: %w", err)
	}
	if err := spec.TreatmentEffect.Validate(); err != nil {
		return nil, fmt.Errorf("constructing disease model: %w", err)
	}
	return &DiseaseModel{
		transitions:    spec.Transitions,
		multipliers:    spec.TreatmentEffect.Multipliers,
		decay:          NewTreatmentDecay(spec.TreatmentEffect.HalfLifeDays),
		updateInterval: time.Duration(spec.UpdateIntervalDays) * 24 * time.Hour,
		lastUpdate:     make(map[string]time.Time),
		log:            logger,
	}, nil
}

// ShouldUpdate reports whether a fortnightly tick is due for the patient at
// the given date. The first call for a patient always updates.
func (m *DiseaseModel) ShouldUpdate(patientID string, now time.Time) bool {
	last, ok := m.lastUpdate[patientID]
	if !ok {
		return true
	}
	return now.Sub(last) >= m.updateInterval
}

// NextTickTime returns the date the next tick will be stamped with: the
// previous tick plus one update interval, or now for a patient with no
// prior tick. The engine uses this to compute treatment recency at the tick
// rather than at the visit.
func (m *DiseaseModel) NextTickTime(patientID string, now time.Time) time.Time {
	last, ok := m.lastUpdate[patientID]
	if !ok {
		return now
	}
	return last.Add(m.updateInterval)
}

// UpdateState performs one tick: blends the transition row for the current
// state with the treatment-effect multipliers according to decayed efficacy,
// renormalizes, draws the next state and records the tick date.
//
// daysSinceInjection < 0 (or everTreated false) means no treatment effect.
// If floating-point rounding leaves the draw unmatched the current state is
// kept; this is the documented fallback, not an error.
func (m *DiseaseModel) UpdateState(
	patientID string,
	current domain.DiseaseState,
	tickDate time.Time,
	daysSinceInjection float64,
	everTreated bool,
	rng *rand.Rand,
) domain.DiseaseState {
	row := m.transitions[current]

	efficacy := 0.0
	if everTreated {
		efficacy = m.decay.Efficacy(daysSinceInjection)
	}

	// Blend each target probability toward base*multiplier as efficacy
	// approaches 1, then renormalize the row.
	probs := make([]float64, len(domain.DiseaseStates))
	total := 0.0
	stateMultipliers := m.multipliers[current]
	for i, target := range domain.DiseaseStates {
		p := row[target]
		if efficacy > 0 && stateMultipliers != nil {
			if mult, ok := stateMultipliers[target]; ok {
				p = p*(1-efficacy) + p*mult*efficacy
			}
		}
		probs[i] = p
		total += p
	}
	if total > 0 {
		for i := range probs {
			probs[i] /= total
		}
	}

	next := current
	r := rng.Float64()
	cumulative := 0.0
	for i, target := range domain.DiseaseStates {
		cumulative += probs[i]
		if r < cumulative {
			next = target
			break
		}
	}

	m.lastUpdate[patientID] = tickDate

	if next != current {
		m.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"from":       current,
			"to":         next,
			"efficacy":   efficacy,
		}).Debug("Disease state transition")
	}
	return next
}

// ResetPatient clears the patient's tick cadence so the next visit restarts
// it. Called on retreatment, when a new loading course begins.
func (m *DiseaseModel) ResetPatient(patientID string) {
	delete(m.lastUpdate, patientID)
}

// LastUpdate returns the date of the patient's most recent tick.
func (m *DiseaseModel) LastUpdate(patientID string) (time.Time, bool) {
	t, ok := m.lastUpdate[patientID]
	return t, ok
}
