// Package resources accumulates clinic workload and cost figures from the
// simulation's visit stream. The tracker has no state machine of its own:
// it is a pure accumulator over the visits the engine emits and never
// mutates patient state.
package resources

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// Role identifies a staffing category consumed by clinic visits.
type Role string

const (
	// RoleInjector covers the injection procedure itself.
	RoleInjector Role = "INJECTOR"
	// RoleAssessor covers vision testing and OCT review, performed at
	// every visit type.
	RoleAssessor Role = "ASSESSOR"
)

// roles in canonical order for deterministic output.
var roles = []Role{RoleInjector, RoleAssessor}

// CostBreakdown totals spending by category.
type CostBreakdown struct {
	Drug         float64 `json:"drug"`
	Injection    float64 `json:"injection"`
	Consultation float64 `json:"consultation"`
	OCT          float64 `json:"oct"`
	Total        float64 `json:"total"`
}

// RoleWorkload summarizes demand for one role across the simulated horizon.
type RoleWorkload struct {
	Role           Role    `json:"role"`
	TotalVisits    int     `json:"total_visits"`
	PeakDaily      int     `json:"peak_daily"`
	AverageDaily   float64 `json:"average_daily"`
	TotalSessions  int     `json:"total_sessions"`
	ActiveDays     int     `json:"active_days"`
}

// Bottleneck is one day where a role's demand exceeded available sessions.
type Bottleneck struct {
	Date              time.Time `json:"date"`
	Role              Role      `json:"role"`
	SessionsNeeded    int       `json:"sessions_needed"`
	SessionsAvailable int       `json:"sessions_available"`
	Overflow          int       `json:"overflow"`
}

// Tracker consumes the ordered visit stream and accumulates per-day
// per-role demand and cost totals. It implements the engine's
// VisitObserver contract.
type Tracker struct {
	cfg   domain.ResourcesConfig
	log   *logrus.Logger
	daily map[string]map[Role]int // date (2006-01-02) -> role -> visit count
	costs CostBreakdown
}

// NewTracker creates an empty tracker with the given capacity and unit-cost
// configuration.
func NewTracker(cfg domain.ResourcesConfig, logger *logrus.Logger) *Tracker {
	return &Tracker{
		cfg:   cfg,
		log:   logger,
		daily: make(map[string]map[Role]int),
	}
}

// ObserveVisit accumulates one visit into the demand and cost tallies.
func (t *Tracker) ObserveVisit(patientID string, visit domain.Visit) {
	day := visit.Date.Format("2006-01-02")
	if t.daily[day] == nil {
		t.daily[day] = make(map[Role]int)
	}

	// Every visit carries an assessment (vision test + OCT).
	t.daily[day][RoleAssessor]++
	t.costs.Consultation += t.cfg.ConsultationCost
	t.costs.OCT += t.cfg.OCTCost

	if visit.TreatmentGiven {
		t.daily[day][RoleInjector]++
		t.costs.Drug += t.cfg.DrugCost
		t.costs.Injection += t.cfg.InjectionCost
	}
}

// TotalCosts returns the accumulated cost breakdown.
func (t *Tracker) TotalCosts() CostBreakdown {
	c := t.costs
	c.Total = c.Drug + c.Injection + c.Consultation + c.OCT
	return c
}

// capacityPerSession returns how many visits one session of the role
// absorbs.
func (t *Tracker) capacityPerSession(role Role) int {
	switch role {
	case RoleInjector:
		return t.cfg.InjectionCapacityPerSession
	default:
		return t.cfg.AssessmentCapacityPerSession
	}
}

// sessionsNeeded converts a day's visit count into whole sessions.
func sessionsNeeded(count, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return (count + capacity - 1) / capacity
}

// WorkloadSummary aggregates per-role demand over the whole horizon.
func (t *Tracker) WorkloadSummary() []RoleWorkload {
	out := make([]RoleWorkload, 0, len(roles))
	for _, role := range roles {
		w := RoleWorkload{Role: role}
		for _, counts := range t.daily {
			n, ok := counts[role]
			if !ok || n == 0 {
				continue
			}
			w.TotalVisits += n
			w.ActiveDays++
			if n > w.PeakDaily {
				w.PeakDaily = n
			}
			w.TotalSessions += sessionsNeeded(n, t.capacityPerSession(role))
		}
		if w.ActiveDays > 0 {
			w.AverageDaily = float64(w.TotalVisits) / float64(w.ActiveDays)
		}
		out = append(out, w)
	}
	return out
}

// Bottlenecks lists the days where a role needed more sessions than the
// clinic had available, sorted by date then role.
func (t *Tracker) Bottlenecks() []Bottleneck {
	days := make([]string, 0, len(t.daily))
	for day := range t.daily {
		days = append(days, day)
	}
	sort.Strings(days)

	var out []Bottleneck
	for _, day := range days {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		for _, role := range roles {
			n := t.daily[day][role]
			if n == 0 {
				continue
			}
			needed := sessionsNeeded(n, t.capacityPerSession(role))
			if needed > t.cfg.SessionsPerDay {
				out = append(out, Bottleneck{
					Date:              date,
					Role:              role,
					SessionsNeeded:    needed,
					SessionsAvailable: t.cfg.SessionsPerDay,
					Overflow:          needed - t.cfg.SessionsPerDay,
				})
			}
		}
	}
	if len(out) > 0 {
		t.log.WithField("bottleneck_days", len(out)).Info("Capacity bottlenecks identified")
	}
	return out
}
