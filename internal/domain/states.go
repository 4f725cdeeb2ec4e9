// Package domain contains the core entities and types for the AMD anti-VEGF
// treatment simulation: disease states, patients, visits, protocol
// specifications and aggregate results.
//
// The disease model follows a four-state Markov chain advanced on a fixed
// fortnightly cadence, independent of clinic visit timing.
package domain

import "fmt"

// DiseaseState represents the neovascular activity state of a simulated eye.
type DiseaseState string

const (
	NAIVE         DiseaseState = "NAIVE"
	STABLE        DiseaseState = "STABLE"
	ACTIVE        DiseaseState = "ACTIVE"
	HIGHLY_ACTIVE DiseaseState = "HIGHLY_ACTIVE"
)

// DiseaseStates lists all states in canonical order. Transition rows are
// always walked in this order so that random draws are reproducible; Go map
// iteration order must never feed a draw.
var DiseaseStates = []DiseaseState{NAIVE, STABLE, ACTIVE, HIGHLY_ACTIVE}

// IsValid reports whether the state is one of the four modeled states.
func (s DiseaseState) IsValid() bool {
	switch s {
	case NAIVE, STABLE, ACTIVE, HIGHLY_ACTIVE:
		return true
	default:
		return false
	}
}

// String returns the string representation of the disease state.
func (s DiseaseState) String() string {
	return string(s)
}

// HasFluid reports whether the state presents as active disease (fluid on
// OCT) at a clinic visit. This is the activity signal the treat-and-extend
// scheduler reacts to.
func (s DiseaseState) HasFluid() bool {
	return s == ACTIVE || s == HIGHLY_ACTIVE
}

// TreatmentPhase represents where a patient sits in the injection protocol.
type TreatmentPhase string

const (
	LOADING     TreatmentPhase = "LOADING"
	MAINTENANCE TreatmentPhase = "MAINTENANCE"
)

// IsValid reports whether the phase is a known protocol phase.
func (p TreatmentPhase) IsValid() bool {
	return p == LOADING || p == MAINTENANCE
}

// String returns the string representation of the phase.
func (p TreatmentPhase) String() string {
	return string(p)
}

// DiscontinuationReason classifies why active treatment stopped.
type DiscontinuationReason string

const (
	STABLE_MAX_INTERVAL DiscontinuationReason = "STABLE_MAX_INTERVAL"
	ADMINISTRATIVE      DiscontinuationReason = "ADMINISTRATIVE"
	COURSE_COMPLETE     DiscontinuationReason = "COURSE_COMPLETE"
	PREMATURE           DiscontinuationReason = "PREMATURE"
	POOR_VISION         DiscontinuationReason = "POOR_VISION"
)

// DiscontinuationReasons lists all reasons in canonical order.
var DiscontinuationReasons = []DiscontinuationReason{
	STABLE_MAX_INTERVAL, ADMINISTRATIVE, COURSE_COMPLETE, PREMATURE, POOR_VISION,
}

// IsValid reports whether the reason is a known discontinuation reason.
func (r DiscontinuationReason) IsValid() bool {
	switch r {
	case STABLE_MAX_INTERVAL, ADMINISTRATIVE, COURSE_COMPLETE, PREMATURE, POOR_VISION:
		return true
	default:
		return false
	}
}

// String returns the string representation of the reason.
func (r DiscontinuationReason) String() string {
	return string(r)
}

// CessationType groups discontinuation reasons into the two monitoring
// schedules used after treatment stops.
type CessationType string

const (
	PLANNED_CESSATION   CessationType = "PLANNED"
	UNPLANNED_CESSATION CessationType = "UNPLANNED"
)

// Cessation returns the cessation classification for the reason. Stable
// discontinuation at the maximum interval and completed courses are planned
// stops; everything else is unplanned and monitored more closely.
func (r DiscontinuationReason) Cessation() CessationType {
	switch r {
	case STABLE_MAX_INTERVAL, COURSE_COMPLETE:
		return PLANNED_CESSATION
	default:
		return UNPLANNED_CESSATION
	}
}

// VisitType distinguishes scheduled treatment visits from post-cessation
// monitoring visits.
type VisitType string

const (
	TREATMENT_VISIT  VisitType = "TREATMENT"
	MONITORING_VISIT VisitType = "MONITORING"
)

// String returns the string representation of the visit type.
func (v VisitType) String() string {
	return string(v)
}

// LogFields returns structured logging fields for the disease state,
// used in audit trails.
func (s DiseaseState) LogFields() map[string]any {
	return map[string]any{
		"disease_state": string(s),
		"has_fluid":     s.HasFluid(),
		"is_valid":      s.IsValid(),
	}
}

// ParseDiseaseState converts a string into a DiseaseState, failing on
// unknown values.
func ParseDiseaseState(s string) (DiseaseState, error) {
	state := DiseaseState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDiseaseState, s)
	}
	return state, nil
}
