package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
)

// TransitionTable maps source disease state to target disease state to the
// per-fortnight transition probability. Every source state must carry an
// explicit probability for every target state, and each row must sum to 1.0
// within a tolerance of 1e-3.
type TransitionTable map[DiseaseState]map[DiseaseState]float64

const transitionRowTolerance = 1e-3

// Validate checks the structural invariants of the table. A failure here is
// a configuration error; the disease model refuses to construct.
func (t TransitionTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: table is empty", ErrInvalidTransitionTable)
	}
	for _, from := range DiseaseStates {
		row, ok := t[from]
		if !ok {
			return fmt.Errorf("%w: missing row for state %s", ErrInvalidTransitionTable, from)
		}
		sum := 0.0
		for _, to := range DiseaseStates {
			p, ok := row[to]
			if !ok {
				return fmt.Errorf("%w: state %s has no entry for target %s", ErrInvalidTransitionTable, from, to)
			}
			if p < 0 || p > 1 {
				return fmt.Errorf("%w: probability %s->%s = %f out of [0,1]", ErrInvalidTransitionTable, from, to, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > transitionRowTolerance {
			return fmt.Errorf("%w: row %s sums to %f, expected 1.0", ErrInvalidTransitionTable, from, sum)
		}
	}
	return nil
}

// TreatmentEffectParameters control how recent injections modify disease
// transitions. Efficacy decays exponentially with the configured half-life
// and is blended into the transition row through per-target multipliers.
type TreatmentEffectParameters struct {
	HalfLifeDays float64                                  `json:"half_life_days" mapstructure:"half_life_days"`
	Multipliers  map[DiseaseState]map[DiseaseState]float64 `json:"multipliers" mapstructure:"multipliers"`
}

// Validate checks the treatment effect configuration.
func (t TreatmentEffectParameters) Validate() error {
	if t.HalfLifeDays <= 0 {
		return fmt.Errorf("%w: treatment half-life must be positive, got %f", ErrInvalidProtocol, t.HalfLifeDays)
	}
	for from, row := range t.Multipliers {
		if !from.IsValid() {
			return fmt.Errorf("%w: multiplier row for unknown state %q", ErrInvalidProtocol, from)
		}
		for to, m := range row {
			if !to.IsValid() {
				return fmt.Errorf("%w: multiplier target %q unknown", ErrInvalidProtocol, to)
			}
			if m < 0 {
				return fmt.Errorf("%w: multiplier %s->%s is negative", ErrInvalidProtocol, from, to)
			}
		}
	}
	return nil
}

// VisionChangeParameters give, per disease state, the per-tick vision delta
// distributions with and without an effective treatment on board. The
// realized delta blends the two proportionally to treatment efficacy.
type VisionChangeParameters struct {
	UntreatedMean float64 `json:"untreated_mean" mapstructure:"untreated_mean"`
	UntreatedStd  float64 `json:"untreated_std" mapstructure:"untreated_std"`
	TreatedMean   float64 `json:"treated_mean" mapstructure:"treated_mean"`
	TreatedStd    float64 `json:"treated_std" mapstructure:"treated_std"`
}

// BaselineVisionDistribution configures how baseline acuity is sampled at
// patient creation. Supported types: normal, beta_with_threshold, uniform.
type BaselineVisionDistribution struct {
	Type string `json:"type" mapstructure:"type"`

	// Normal parameters.
	Mean float64 `json:"mean" mapstructure:"mean"`
	Std  float64 `json:"std" mapstructure:"std"`

	// Uniform and beta bounds.
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`

	// Beta-with-threshold parameters: a Beta(alpha, beta) sample scaled to
	// [min,max]; samples above Threshold are kept only with
	// ProbabilityAbove, otherwise redrawn.
	Alpha            float64 `json:"alpha" mapstructure:"alpha"`
	Beta             float64 `json:"beta" mapstructure:"beta"`
	Threshold        float64 `json:"threshold" mapstructure:"threshold"`
	ProbabilityAbove float64 `json:"probability_above" mapstructure:"probability_above"`
}

// Validate checks the baseline distribution configuration.
func (b BaselineVisionDistribution) Validate() error {
	switch b.Type {
	case "normal":
		if b.Std < 0 {
			return fmt.Errorf("%w: baseline normal std must be >= 0", ErrInvalidProtocol)
		}
	case "uniform":
		if b.Max <= b.Min {
			return fmt.Errorf("%w: baseline uniform requires max > min", ErrInvalidProtocol)
		}
	case "beta_with_threshold":
		if b.Alpha <= 0 || b.Beta <= 0 {
			return fmt.Errorf("%w: beta parameters must be positive", ErrInvalidProtocol)
		}
		if b.Max <= b.Min {
			return fmt.Errorf("%w: baseline beta requires max > min", ErrInvalidProtocol)
		}
		if b.ProbabilityAbove < 0 || b.ProbabilityAbove > 1 {
			return fmt.Errorf("%w: probability_above out of [0,1]", ErrInvalidProtocol)
		}
	default:
		return fmt.Errorf("%w: unknown baseline distribution type %q", ErrInvalidProtocol, b.Type)
	}
	return nil
}

// DiscontinuationParameters configure every stopping rule the policy
// evaluates, plus recurrence detection during monitoring.
type DiscontinuationParameters struct {
	// Stable at maximum interval: evaluated when the interval has reached
	// the protocol maximum with no disease activity.
	StableRequiredVisits int     `json:"stable_required_visits" mapstructure:"stable_required_visits"`
	StableProbability    float64 `json:"stable_probability" mapstructure:"stable_probability"`

	// Administrative loss to follow-up, expressed as an annual probability
	// and converted to a per-visit probability from the visit interval.
	AdministrativeAnnualProbability float64 `json:"administrative_annual_probability" mapstructure:"administrative_annual_probability"`

	// Course complete: treatment duration threshold in years.
	CourseDurationYears       float64 `json:"course_duration_years" mapstructure:"course_duration_years"`
	CourseCompleteProbability float64 `json:"course_complete_probability" mapstructure:"course_complete_probability"`

	// Premature discontinuation per visit.
	PrematureProbability float64 `json:"premature_probability" mapstructure:"premature_probability"`

	// Poor vision: evaluated when measured vision drops below the
	// threshold (ETDRS letters).
	PoorVisionThreshold   float64 `json:"poor_vision_threshold" mapstructure:"poor_vision_threshold"`
	PoorVisionProbability float64 `json:"poor_vision_probability" mapstructure:"poor_vision_probability"`

	// Recurrence detection at monitoring visits.
	RecurrenceBaseAnnualRisk float64 `json:"recurrence_base_annual_risk" mapstructure:"recurrence_base_annual_risk"`
	RecurrenceRiskMultiplier float64 `json:"recurrence_risk_multiplier" mapstructure:"recurrence_risk_multiplier"`
}

// Validate checks the discontinuation configuration.
func (d DiscontinuationParameters) Validate() error {
	probs := map[string]float64{
		"stable_probability":                d.StableProbability,
		"administrative_annual_probability": d.AdministrativeAnnualProbability,
		"course_complete_probability":       d.CourseCompleteProbability,
		"premature_probability":             d.PrematureProbability,
		"poor_vision_probability":           d.PoorVisionProbability,
	}
	for name, p := range probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s = %f out of [0,1]", ErrInvalidProtocol, name, p)
		}
	}
	if d.RecurrenceBaseAnnualRisk < 0 || d.RecurrenceRiskMultiplier < 0 {
		return fmt.Errorf("%w: recurrence parameters must be >= 0", ErrInvalidProtocol)
	}
	return nil
}

// EnrollmentMode selects how patients enter the simulation.
type EnrollmentMode string

const (
	// ENROLL_ALL_AT_START enrolls every patient on day zero.
	ENROLL_ALL_AT_START EnrollmentMode = "ALL_AT_START"
	// ENROLL_POISSON staggers arrivals as a Poisson process over the
	// configured window.
	ENROLL_POISSON EnrollmentMode = "POISSON"
)

// ProtocolSpec is the full, pre-validated protocol configuration the
// simulation core consumes. Loading and schema validation of the YAML file
// itself live in the config package.
type ProtocolSpec struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`

	// Loading phase.
	LoadingDoseCount    int `json:"loading_dose_count" mapstructure:"loading_dose_count"`
	LoadingIntervalDays int `json:"loading_interval_days" mapstructure:"loading_interval_days"`

	// Maintenance treat-and-extend bounds.
	MinIntervalDays   int `json:"min_interval_days" mapstructure:"min_interval_days"`
	MaxIntervalDays   int `json:"max_interval_days" mapstructure:"max_interval_days"`
	ExtensionDays     int `json:"extension_days" mapstructure:"extension_days"`
	ShorteningDays    int `json:"shortening_days" mapstructure:"shortening_days"`

	// Fortnightly disease-state cadence. Fixed at 14 for the time-based
	// model; kept configurable for sensitivity analyses.
	UpdateIntervalDays int `json:"update_interval_days" mapstructure:"update_interval_days"`

	BaselineVision  BaselineVisionDistribution                `json:"baseline_vision" mapstructure:"baseline_vision"`
	Transitions     TransitionTable                           `json:"disease_transitions" mapstructure:"disease_transitions"`
	TreatmentEffect TreatmentEffectParameters                 `json:"treatment_effect" mapstructure:"treatment_effect"`
	VisionChange    map[DiseaseState]VisionChangeParameters   `json:"vision_change" mapstructure:"vision_change"`
	Discontinuation DiscontinuationParameters                 `json:"discontinuation" mapstructure:"discontinuation"`

	// Vision ceiling sampling: ceiling = clamp(baseline + N(gain, std), baseline, 85).
	CeilingMeanGain float64 `json:"ceiling_mean_gain" mapstructure:"ceiling_mean_gain"`
	CeilingStd      float64 `json:"ceiling_std" mapstructure:"ceiling_std"`

	// Measurement noise applied to observed vision at visits.
	MeasurementNoiseStd float64 `json:"measurement_noise_std" mapstructure:"measurement_noise_std"`

	// Enrollment.
	Enrollment           EnrollmentMode `json:"enrollment_mode" mapstructure:"enrollment_mode"`
	EnrollmentWindowDays int            `json:"enrollment_window_days" mapstructure:"enrollment_window_days"`
}

// MaxVisionLetters is the clinical ceiling on the ETDRS letter score used
// throughout the model.
const MaxVisionLetters = 85.0

// Validate checks every structural invariant of the protocol. Construction
// of the engine fails fast on any violation.
func (p *ProtocolSpec) Validate() error {
	if p.LoadingDoseCount <= 0 {
		return fmt.Errorf("%w: loading_dose_count must be positive", ErrInvalidProtocol)
	}
	if p.LoadingIntervalDays <= 0 {
		return fmt.Errorf("%w: loading_interval_days must be positive", ErrInvalidProtocol)
	}
	if p.MinIntervalDays <= 0 || p.MaxIntervalDays < p.MinIntervalDays {
		return fmt.Errorf("%w: maintenance interval bounds [%d,%d] invalid",
			ErrInvalidProtocol, p.MinIntervalDays, p.MaxIntervalDays)
	}
	if p.ExtensionDays <= 0 || p.ShorteningDays <= 0 {
		return fmt.Errorf("%w: extension_days and shortening_days must be positive", ErrInvalidProtocol)
	}
	if p.UpdateIntervalDays <= 0 {
		return fmt.Errorf("%w: update_interval_days must be positive", ErrInvalidProtocol)
	}
	if err := p.BaselineVision.Validate(); err != nil {
		return err
	}
	if err := p.Transitions.Validate(); err != nil {
		return err
	}
	if err := p.TreatmentEffect.Validate(); err != nil {
		return err
	}
	if err := p.Discontinuation.Validate(); err != nil {
		return err
	}
	if p.MeasurementNoiseStd < 0 {
		return fmt.Errorf("%w: measurement_noise_std must be >= 0", ErrInvalidProtocol)
	}
	if p.Enrollment == "" {
		p.Enrollment = ENROLL_ALL_AT_START
	}
	if p.Enrollment == ENROLL_POISSON && p.EnrollmentWindowDays <= 0 {
		return fmt.Errorf("%w: poisson enrollment requires enrollment_window_days > 0", ErrInvalidProtocol)
	}
	return nil
}

// Checksum returns the SHA-256 hex digest of the canonical JSON encoding of
// the protocol. Recorded in the audit log so a results row can always be
// traced back to the exact configuration that produced it.
func (p *ProtocolSpec) Checksum() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
