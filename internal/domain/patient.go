package domain

import (
	"time"
)

// TreatmentStatus tracks whether a patient is receiving active treatment and,
// if not, why and since when.
type TreatmentStatus struct {
	Active                bool                   `json:"active"`
	DiscontinuedReason    *DiscontinuationReason `json:"discontinued_reason,omitempty"`
	DiscontinuationDate   *time.Time             `json:"discontinuation_date,omitempty"`
	RetreatmentCount      int                    `json:"retreatment_count"`
	DiscontinuationCount  int                    `json:"discontinuation_count"`
	MonitoringVisitsSince int                    `json:"monitoring_visits_since"`
}

// PatientAgent is the mutable per-patient simulation state. The engine is
// the only writer; the visit history is append-only and chronological.
type PatientAgent struct {
	ID             string          `json:"id"`
	EnrollmentDate time.Time       `json:"enrollment_date"`
	DiseaseState   DiseaseState    `json:"disease_state"`
	BaselineVision float64         `json:"baseline_vision"`
	ActualVision   float64         `json:"actual_vision"`
	VisionCeiling  float64         `json:"vision_ceiling"`
	Treatment      TreatmentStatus `json:"treatment_status"`
	Phase          TreatmentPhase  `json:"phase"`
	IntervalDays   int             `json:"current_interval_days"`
	InjectionCount int             `json:"injection_count"`
	VisitHistory   []Visit         `json:"visit_history"`

	// Protocol bookkeeping for the current treatment course.
	LoadingInjections  int        `json:"loading_injections"`
	ConsecutiveStable  int        `json:"consecutive_stable_visits"`
	LastInjectionDate  *time.Time `json:"last_injection_date,omitempty"`
	TreatmentStartDate time.Time  `json:"treatment_start_date"`

	// CourseGeneration increments whenever the patient switches between
	// active treatment and monitoring, invalidating events scheduled for
	// the previous course.
	CourseGeneration int `json:"-"`
}

// NewPatientAgent creates a treatment-naive patient with the given baseline
// vision and ceiling, enrolled at the given date.
func NewPatientAgent(id string, enrollment time.Time, baseline, ceiling float64) *PatientAgent {
	return &PatientAgent{
		ID:                 id,
		EnrollmentDate:     enrollment,
		DiseaseState:       NAIVE,
		BaselineVision:     baseline,
		ActualVision:       baseline,
		VisionCeiling:      ceiling,
		Treatment:          TreatmentStatus{Active: true},
		Phase:              LOADING,
		InjectionCount:     0,
		TreatmentStartDate: enrollment,
	}
}

// RecordVisit appends a visit to the history. Visits must arrive in
// chronological order; the engine guarantees this through its event queue.
func (p *PatientAgent) RecordVisit(v Visit) {
	p.VisitHistory = append(p.VisitHistory, v)
}

// RecordInjection updates injection bookkeeping after a treatment is given.
func (p *PatientAgent) RecordInjection(date time.Time) {
	d := date
	p.InjectionCount++
	p.LastInjectionDate = &d
	if p.Phase == LOADING {
		p.LoadingInjections++
	}
}

// Discontinue stops active treatment with the given reason. Further
// injections are frozen until Retreat flips the patient back to active.
func (p *PatientAgent) Discontinue(reason DiscontinuationReason, date time.Time) {
	d := date
	r := reason
	p.Treatment.Active = false
	p.Treatment.DiscontinuedReason = &r
	p.Treatment.DiscontinuationDate = &d
	p.Treatment.DiscontinuationCount++
	p.Treatment.MonitoringVisitsSince = 0
	p.CourseGeneration++
}

// Retreat resumes active treatment after a monitoring-detected recurrence.
// The loading sequence restarts from scratch.
func (p *PatientAgent) Retreat(date time.Time) {
	p.Treatment.Active = true
	p.Treatment.DiscontinuedReason = nil
	p.Treatment.DiscontinuationDate = nil
	p.Treatment.RetreatmentCount++
	p.Phase = LOADING
	p.LoadingInjections = 0
	p.ConsecutiveStable = 0
	p.TreatmentStartDate = date
	p.CourseGeneration++
}

// DaysSinceLastInjection returns the days elapsed at the given date since
// the most recent injection, or false if the patient was never treated.
func (p *PatientAgent) DaysSinceLastInjection(at time.Time) (float64, bool) {
	if p.LastInjectionDate == nil {
		return 0, false
	}
	return at.Sub(*p.LastInjectionDate).Hours() / 24, true
}

// YearsOnTreatment returns the duration of the current treatment course.
func (p *PatientAgent) YearsOnTreatment(at time.Time) float64 {
	return at.Sub(p.TreatmentStartDate).Hours() / 24 / 365.25
}

// LastVisit returns the most recent visit, or false if none were recorded.
func (p *PatientAgent) LastVisit() (Visit, bool) {
	if len(p.VisitHistory) == 0 {
		return Visit{}, false
	}
	return p.VisitHistory[len(p.VisitHistory)-1], true
}

// FinalMeasuredVision returns the measured vision at the last recorded
// visit, falling back to the baseline when no visit occurred.
func (p *PatientAgent) FinalMeasuredVision() float64 {
	if v, ok := p.LastVisit(); ok {
		return v.MeasuredVision
	}
	return p.BaselineVision
}
