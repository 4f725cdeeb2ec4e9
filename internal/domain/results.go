package domain

import (
	"sort"
	"time"
)

// SimulationResults is the aggregate outcome of a completed run, plus the
// full per-patient histories. Run either returns a fully populated value or
// an error; there is no partial-results contract.
type SimulationResults struct {
	RunID         string    `json:"run_id"`
	ProtocolName  string    `json:"protocol_name"`
	Seed          int64     `json:"seed"`
	PatientCount  int       `json:"patient_count"`
	DurationYears float64   `json:"duration_years"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`

	TotalInjections     int     `json:"total_injections"`
	TotalVisits         int     `json:"total_visits"`
	FinalVisionMean     float64 `json:"final_vision_mean"`
	FinalVisionStd      float64 `json:"final_vision_std"`
	DiscontinuationRate float64 `json:"discontinuation_rate"`
	RetreatmentCount    int     `json:"retreatment_count"`

	DiscontinuationsByReason map[DiscontinuationReason]int `json:"discontinuations_by_reason"`

	Patients map[string]*PatientAgent `json:"patient_histories"`
}

// PatientIDs returns the patient identifiers in sorted order. All
// aggregation iterates in this order so output is reproducible.
func (r *SimulationResults) PatientIDs() []string {
	ids := make([]string, 0, len(r.Patients))
	for id := range r.Patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RunSummary is the persistable projection of SimulationResults without the
// per-patient histories. This is what the result stores and the run
// repository exchange.
type RunSummary struct {
	RunID               string    `json:"run_id"`
	ProtocolName        string    `json:"protocol_name"`
	ProtocolChecksum    string    `json:"protocol_checksum"`
	Seed                int64     `json:"seed"`
	PatientCount        int       `json:"patient_count"`
	DurationYears       float64   `json:"duration_years"`
	TotalInjections     int       `json:"total_injections"`
	TotalVisits         int       `json:"total_visits"`
	FinalVisionMean     float64   `json:"final_vision_mean"`
	FinalVisionStd      float64   `json:"final_vision_std"`
	DiscontinuationRate float64   `json:"discontinuation_rate"`
	RetreatmentCount    int       `json:"retreatment_count"`
	CreatedAt           time.Time `json:"created_at"`
}

// Summary projects the results into a RunSummary for persistence.
func (r *SimulationResults) Summary(protocolChecksum string) RunSummary {
	return RunSummary{
		RunID:               r.RunID,
		ProtocolName:        r.ProtocolName,
		ProtocolChecksum:    protocolChecksum,
		Seed:                r.Seed,
		PatientCount:        r.PatientCount,
		DurationYears:       r.DurationYears,
		TotalInjections:     r.TotalInjections,
		TotalVisits:         r.TotalVisits,
		FinalVisionMean:     r.FinalVisionMean,
		FinalVisionStd:      r.FinalVisionStd,
		DiscontinuationRate: r.DiscontinuationRate,
		RetreatmentCount:    r.RetreatmentCount,
	}
}
