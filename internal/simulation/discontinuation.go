package simulation

import (
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// DiscontinuationPolicy evaluates stopping rules at maintenance decision
// points, schedules post-cessation monitoring and draws recurrence at
// monitoring visits. Over a multi-year horizon patients may cycle through
// discontinuation and retreatment several times.
type DiscontinuationPolicy struct {
	params domain.DiscontinuationParameters
	log    *logrus.Logger
}

// NewDiscontinuationPolicy creates the policy from validated parameters.
func NewDiscontinuationPolicy(params domain.DiscontinuationParameters, logger *logrus.Logger) *DiscontinuationPolicy {
	return &DiscontinuationPolicy{params: params, log: logger}
}

// EvaluationInput carries the signals a stopping decision depends on.
type EvaluationInput struct {
	MeasuredVision   float64
	IntervalDays     int
	StableAtMax      bool
	YearsOnTreatment float64
}

// Evaluate runs the stopping rules in a fixed order and returns the first
// reason whose draw fires, or false when treatment continues. Order matters
// for reproducibility: administrative, course-complete, premature,
// poor-vision, then stable-max-interval.
func (d *DiscontinuationPolicy) Evaluate(in EvaluationInput, rng *rand.Rand) (domain.DiscontinuationReason, bool) {
	// Administrative loss to follow-up can happen at any visit. The
	// annual probability is converted to a per-visit probability from the
	// interval actually elapsed.
	if p := d.perVisitProbability(d.params.AdministrativeAnnualProbability, in.IntervalDays); p > 0 {
		if rng.Float64() < p {
			return domain.ADMINISTRATIVE, true
		}
	}

	if d.params.CourseDurationYears > 0 && in.YearsOnTreatment >= d.params.CourseDurationYears {
		if rng.Float64() < d.params.CourseCompleteProbability {
			return domain.COURSE_COMPLETE, true
		}
	}

	if d.params.PrematureProbability > 0 {
		if rng.Float64() < d.params.PrematureProbability {
			return domain.PREMATURE, true
		}
	}

	if in.MeasuredVision < d.params.PoorVisionThreshold {
		if rng.Float64() < d.params.PoorVisionProbability {
			return domain.POOR_VISION, true
		}
	}

	if in.StableAtMax {
		if rng.Float64() < d.params.StableProbability {
			return domain.STABLE_MAX_INTERVAL, true
		}
	}

	return "", false
}

// perVisitProbability converts an annual event probability into the
// equivalent per-visit probability for a visit interval of the given days.
func (d *DiscontinuationPolicy) perVisitProbability(annual float64, intervalDays int) float64 {
	if annual <= 0 || intervalDays <= 0 {
		return 0
	}
	return 1 - math.Pow(1-annual, float64(intervalDays)/365.25)
}

// Monitoring offsets after cessation. Planned stops (stable at maximum
// interval, completed course) are reviewed annually; unplanned stops are
// watched on an 8/16/24-week schedule.
var (
	plannedMonitoringOffsets   = []time.Duration{365 * 24 * time.Hour, 2 * 365 * 24 * time.Hour, 3 * 365 * 24 * time.Hour}
	unplannedMonitoringOffsets = []time.Duration{8 * 7 * 24 * time.Hour, 16 * 7 * 24 * time.Hour, 24 * 7 * 24 * time.Hour}
)

// MonitoringSchedule returns the visit dates that follow a discontinuation
// with the given reason, starting from the discontinuation date.
func (d *DiscontinuationPolicy) MonitoringSchedule(reason domain.DiscontinuationReason, from time.Time) []time.Time {
	offsets := unplannedMonitoringOffsets
	if reason.Cessation() == domain.PLANNED_CESSATION {
		offsets = plannedMonitoringOffsets
	}
	dates := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		dates = append(dates, from.Add(off))
	}
	return dates
}

// EvaluateRecurrence draws whether disease recurrence is detected at a
// monitoring visit. The per-visit probability scales the base annual risk
// by the configured multiplier and by the gap since the previous monitoring
// point; active or highly active disease at the visit is always a
// detection.
func (d *DiscontinuationPolicy) EvaluateRecurrence(
	state domain.DiseaseState,
	sinceLastCheck time.Duration,
	rng *rand.Rand,
) bool {
	if state.HasFluid() {
		return true
	}
	annual := d.params.RecurrenceBaseAnnualRisk * d.params.RecurrenceRiskMultiplier
	if annual <= 0 {
		return false
	}
	if annual > 1 {
		annual = 1
	}
	years := sinceLastCheck.Hours() / 24 / 365.25
	p := 1 - math.Pow(1-annual, years)
	return rng.Float64() < p
}
