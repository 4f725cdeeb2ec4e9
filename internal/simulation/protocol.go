package simulation

import (
	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// VisitDecision is the protocol's verdict for one treatment visit: whether
// to inject, the interval to the next visit, and whether the patient has
// become eligible for discontinuation evaluation.
type VisitDecision struct {
	Inject                     bool
	NextIntervalDays           int
	PhaseAfterVisit            domain.TreatmentPhase
	EligibleForDiscontinuation bool
}

// TreatAndExtend implements the treat-and-extend visit scheduler: a fixed
// loading series followed by interval extension on quiescence and
// shortening on activity, bounded inclusively by the protocol's minimum and
// maximum maintenance intervals. Every visit while treatment is active
// includes an injection.
type TreatAndExtend struct {
	spec *domain.ProtocolSpec
	log  *logrus.Logger
}

// NewTreatAndExtend creates the scheduler for a validated protocol.
func NewTreatAndExtend(spec *domain.ProtocolSpec, logger *logrus.Logger) *TreatAndExtend {
	return &TreatAndExtend{spec: spec, log: logger}
}

// Decide computes the scheduling outcome of a treatment visit. The caller
// applies the decision to the patient: this method only mutates the
// protocol bookkeeping fields (loading count, consecutive-stable counter,
// phase, interval).
func (t *TreatAndExtend) Decide(p *domain.PatientAgent, fluidDetected bool) VisitDecision {
	if p.Phase == domain.LOADING {
		return t.decideLoading(p)
	}
	return t.decideMaintenance(p, fluidDetected)
}

// decideLoading handles the fixed-cadence loading series. The injection
// given at this visit is counted by the engine via RecordInjection, so the
// completion check accounts for it here.
func (t *TreatAndExtend) decideLoading(p *domain.PatientAgent) VisitDecision {
	d := VisitDecision{
		Inject:          true,
		PhaseAfterVisit: domain.LOADING,
	}
	// This visit's injection completes the series once LoadingInjections+1
	// reaches the configured count.
	if p.LoadingInjections+1 >= t.spec.LoadingDoseCount {
		d.PhaseAfterVisit = domain.MAINTENANCE
		d.NextIntervalDays = t.spec.MinIntervalDays
		t.log.WithFields(logrus.Fields{
			"patient_id":    p.ID,
			"next_interval": d.NextIntervalDays,
		}).Debug("Loading series complete, entering maintenance")
	} else {
		d.NextIntervalDays = t.spec.LoadingIntervalDays
	}
	return d
}

// decideMaintenance applies the extend/shorten rules and flags eligibility
// for discontinuation once the patient is at the maximum interval with the
// required number of consecutive stable visits.
func (t *TreatAndExtend) decideMaintenance(p *domain.PatientAgent, fluidDetected bool) VisitDecision {
	d := VisitDecision{
		Inject:          true,
		PhaseAfterVisit: domain.MAINTENANCE,
	}

	interval := p.IntervalDays
	if interval < t.spec.MinIntervalDays {
		interval = t.spec.MinIntervalDays
	}

	if fluidDetected {
		interval -= t.spec.ShorteningDays
		if interval < t.spec.MinIntervalDays {
			interval = t.spec.MinIntervalDays
		}
		p.ConsecutiveStable = 0
	} else {
		p.ConsecutiveStable++
		if interval >= t.spec.MaxIntervalDays {
			interval = t.spec.MaxIntervalDays
			if p.ConsecutiveStable >= t.spec.Discontinuation.StableRequiredVisits {
				d.EligibleForDiscontinuation = true
			}
		} else {
			interval += t.spec.ExtensionDays
			if interval > t.spec.MaxIntervalDays {
				interval = t.spec.MaxIntervalDays
			}
		}
	}

	d.NextIntervalDays = interval
	return d
}
