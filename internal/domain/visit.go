package domain

import "time"

// Visit is one clinic attendance record. Visits are immutable once appended
// to a patient's history, and the discontinuation/retreatment flags are set
// exactly once by the engine at record creation; downstream consumers never
// infer them from other fields.
type Visit struct {
	Date                  time.Time              `json:"date"`
	Type                  VisitType              `json:"visit_type"`
	Phase                 TreatmentPhase         `json:"phase"`
	DiseaseState          DiseaseState           `json:"disease_state"`
	MeasuredVision        float64                `json:"vision"`
	ActualVision          float64                `json:"actual_vision"`
	TreatmentGiven        bool                   `json:"treatment_given"`
	IntervalDays          int                    `json:"interval_days"`
	IsDiscontinuation     bool                   `json:"is_discontinuation_visit"`
	DiscontinuationReason *DiscontinuationReason `json:"discontinuation_reason,omitempty"`
	IsRetreatment         bool                   `json:"is_retreatment_visit"`
}
