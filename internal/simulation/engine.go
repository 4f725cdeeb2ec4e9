package simulation

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// EngineType selects the simulation variant. Only the time-based engine,
// with its fortnightly disease cadence decoupled from visit timing, is
// supported.
type EngineType string

// TimeBasedEngine is the canonical engine type.
const TimeBasedEngine EngineType = "TIME_BASED"

// VisitObserver receives every visit as it is recorded. The resource
// tracker implements this to accumulate workload and costs; observers must
// treat the stream as read-only.
type VisitObserver interface {
	ObserveVisit(patientID string, visit domain.Visit)
}

// event is one entry in the simulation's time-ordered queue.
type event struct {
	at         time.Time
	patientID  string
	visitType  domain.VisitType
	generation int
	seq        int
}

// eventQueue is a min-heap ordered by (time, patient id, insertion
// sequence). The deterministic tie-break is what makes identical seeds
// reproduce identical runs.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	if q[i].patientID != q[j].patientID {
		return q[i].patientID < q[j].patientID
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Options tune a single engine instance.
type Options struct {
	// StartDate anchors day zero of the simulation. Defaults to
	// 2024-01-01 UTC when zero.
	StartDate time.Time
	// Observers receive each recorded visit in order.
	Observers []VisitObserver
}

// Engine drives N patient agents through the disease, vision, protocol and
// discontinuation models over a multi-year horizon. It is single-threaded
// and deterministic: every stochastic draw comes from per-patient
// substreams derived from the run seed.
type Engine struct {
	spec     *domain.ProtocolSpec
	protocol *TreatAndExtend
	policy   *DiscontinuationPolicy
	vision   VisionModel
	decay    TreatmentDecay
	opts     Options
	audit    *AuditLog
	log      *logrus.Logger
}

// NewEngine validates the protocol and constructs the engine. Configuration
// errors surface here, before any simulation work starts.
func NewEngine(spec *domain.ProtocolSpec, logger *logrus.Logger, opts Options) (*Engine, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: protocol spec is required", domain.ErrInvalidProtocol)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if opts.StartDate.IsZero() {
		opts.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	audit := NewAuditLog(logger)
	audit.Append(AuditProtocolLoaded, map[string]any{
		"protocol":          spec.Name,
		"protocol_checksum": spec.Checksum(),
	})

	return &Engine{
		spec:     spec,
		protocol: NewTreatAndExtend(spec, logger),
		policy:   NewDiscontinuationPolicy(spec.Discontinuation, logger),
		vision:   NewVisionModel(spec, logger),
		decay:    NewTreatmentDecay(spec.TreatmentEffect.HalfLifeDays),
		opts:     opts,
		audit:    audit,
		log:      logger,
	}, nil
}

// Audit returns the audit trail accumulated so far.
func (e *Engine) Audit() []AuditEvent {
	return e.audit.Events()
}

// Run executes a complete simulation and returns fully populated results,
// or an error before any results exist. Identical (protocol, nPatients,
// durationYears, seed) inputs produce bit-identical outputs.
func (e *Engine) Run(engineType EngineType, nPatients int, durationYears float64, seed int64) (*domain.SimulationResults, error) {
	if engineType != TimeBasedEngine {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedEngineType, engineType)
	}
	if nPatients <= 0 {
		return nil, fmt.Errorf("%w: n_patients must be positive, got %d", domain.ErrInvalidRunParameters, nPatients)
	}
	if durationYears <= 0 {
		return nil, fmt.Errorf("%w: duration_years must be positive, got %f", domain.ErrInvalidRunParameters, durationYears)
	}

	// A fresh disease model per run keeps the per-patient tick map
	// isolated between runs sharing one engine.
	disease, err := NewDiseaseModel(e.spec, e.log)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	start := e.opts.StartDate
	end := start.Add(time.Duration(durationYears * 365.25 * 24 * float64(time.Hour)))

	e.audit.Append(AuditSimulationStarted, map[string]any{
		"run_id":         runID,
		"n_patients":     nPatients,
		"duration_years": durationYears,
		"seed":           seed,
	})

	master := NewMasterRNG(seed)
	patients := make(map[string]*domain.PatientAgent, nPatients)
	rngs := make(map[string]*rand.Rand, nPatients)
	queue := &eventQueue{}
	heap.Init(queue)
	seq := 0
	schedule := func(at time.Time, patientID string, vt domain.VisitType, generation int) {
		if at.After(end) {
			return
		}
		heap.Push(queue, &event{at: at, patientID: patientID, visitType: vt, generation: generation, seq: seq})
		seq++
	}

	// Patient initialization draws come from the master generator in
	// fixed index order; everything after enrollment uses the patient's
	// own substream.
	for i := 0; i < nPatients; i++ {
		id := fmt.Sprintf("P%05d", i+1)
		baseline := e.sampleBaseline(master)
		ceiling := e.sampleCeiling(master, baseline)
		enrollment := start
		if e.spec.Enrollment == domain.ENROLL_POISSON {
			offset := master.Float64() * float64(e.spec.EnrollmentWindowDays)
			enrollment = start.Add(time.Duration(offset * 24 * float64(time.Hour)))
		}
		p := domain.NewPatientAgent(id, enrollment, baseline, ceiling)
		p.IntervalDays = e.spec.LoadingIntervalDays
		patients[id] = p
		rngs[id] = NewPatientRNG(seed, i)
		schedule(enrollment, id, domain.TREATMENT_VISIT, p.CourseGeneration)
	}

	discontinuations := make(map[domain.DiscontinuationReason]int)
	totalVisits := 0

	for queue.Len() > 0 {
		ev := heap.Pop(queue).(*event)
		p := patients[ev.patientID]
		if ev.generation != p.CourseGeneration {
			// Stale event from a previous treatment course.
			continue
		}
		rng := rngs[ev.patientID]

		e.catchUpDiseaseTicks(disease, p, ev.at, rng)

		measured := e.measureVision(p, rng)

		switch ev.visitType {
		case domain.TREATMENT_VISIT:
			e.processTreatmentVisit(p, ev.at, measured, rng, discontinuations, schedule)
		case domain.MONITORING_VISIT:
			e.processMonitoringVisit(disease, p, ev.at, measured, rng, schedule)
		}
		totalVisits++
	}

	results := e.aggregate(runID, seed, nPatients, durationYears, start, end, patients, discontinuations, totalVisits)

	e.audit.Append(AuditSimulationComplete, map[string]any{
		"run_id":               runID,
		"total_injections":     results.TotalInjections,
		"final_vision_mean":    results.FinalVisionMean,
		"discontinuation_rate": results.DiscontinuationRate,
	})

	return results, nil
}

// catchUpDiseaseTicks advances the disease state and underlying vision for
// every fortnight elapsed since the patient's last tick. Treatment recency
// is evaluated at each tick date, not at the visit date.
func (e *Engine) catchUpDiseaseTicks(disease *DiseaseModel, p *domain.PatientAgent, now time.Time, rng *rand.Rand) {
	for disease.ShouldUpdate(p.ID, now) {
		tick := disease.NextTickTime(p.ID, now)
		days, treated := p.DaysSinceLastInjection(tick)
		efficacy := 0.0
		if treated {
			efficacy = e.decay.Efficacy(days)
		}
		p.DiseaseState = disease.UpdateState(p.ID, p.DiseaseState, tick, days, treated, rng)
		delta := e.vision.Delta(p.DiseaseState, efficacy, rng)
		p.ActualVision = ApplyVisionDelta(p.ActualVision, delta, p.VisionCeiling)
	}
}

// measureVision observes the underlying acuity with measurement noise,
// clamped to the clinical letter range.
func (e *Engine) measureVision(p *domain.PatientAgent, rng *rand.Rand) float64 {
	measured := p.ActualVision
	if e.spec.MeasurementNoiseStd > 0 {
		measured += rng.NormFloat64() * e.spec.MeasurementNoiseStd
	}
	if measured < 0 {
		measured = 0
	}
	if measured > domain.MaxVisionLetters {
		measured = domain.MaxVisionLetters
	}
	return measured
}

// processTreatmentVisit handles one active-treatment visit: inject, apply
// the treat-and-extend decision, evaluate discontinuation, and schedule
// either the next treatment visit or the monitoring sequence.
func (e *Engine) processTreatmentVisit(
	p *domain.PatientAgent,
	at time.Time,
	measured float64,
	rng *rand.Rand,
	discontinuations map[domain.DiscontinuationReason]int,
	schedule func(time.Time, string, domain.VisitType, int),
) {
	phaseAtVisit := p.Phase
	fluid := p.DiseaseState.HasFluid()
	decision := e.protocol.Decide(p, fluid)

	visit := domain.Visit{
		Date:           at,
		Type:           domain.TREATMENT_VISIT,
		Phase:          phaseAtVisit,
		DiseaseState:   p.DiseaseState,
		MeasuredVision: measured,
		ActualVision:   p.ActualVision,
		TreatmentGiven: decision.Inject,
		IntervalDays:   decision.NextIntervalDays,
	}

	if decision.Inject {
		p.RecordInjection(at)
	}

	stopped := false
	if phaseAtVisit == domain.MAINTENANCE {
		reason, stop := e.policy.Evaluate(EvaluationInput{
			MeasuredVision:   measured,
			IntervalDays:     p.IntervalDays,
			StableAtMax:      decision.EligibleForDiscontinuation,
			YearsOnTreatment: p.YearsOnTreatment(at),
		}, rng)
		if stop {
			stopped = true
			r := reason
			visit.IsDiscontinuation = true
			visit.DiscontinuationReason = &r
			// No follow-up treatment visit is scheduled, so the visit
			// carries no next interval.
			visit.IntervalDays = 0
			p.Discontinue(reason, at)
			discontinuations[reason]++
			for _, date := range e.policy.MonitoringSchedule(reason, at) {
				schedule(date, p.ID, domain.MONITORING_VISIT, p.CourseGeneration)
			}
			e.log.WithFields(logrus.Fields{
				"patient_id": p.ID,
				"reason":     reason,
				"date":       at.Format("2006-01-02"),
			}).Debug("Treatment discontinued")
		}
	}

	if !stopped {
		p.Phase = decision.PhaseAfterVisit
		p.IntervalDays = decision.NextIntervalDays
		schedule(at.AddDate(0, 0, decision.NextIntervalDays), p.ID, domain.TREATMENT_VISIT, p.CourseGeneration)
	}

	p.RecordVisit(visit)
	e.notify(p.ID, visit)
}

// processMonitoringVisit handles one post-cessation check: no injection
// unless recurrence is detected, in which case treatment resumes with a
// fresh loading course starting at this visit.
func (e *Engine) processMonitoringVisit(
	disease *DiseaseModel,
	p *domain.PatientAgent,
	at time.Time,
	measured float64,
	rng *rand.Rand,
	schedule func(time.Time, string, domain.VisitType, int),
) {
	sinceLastCheck := e.monitoringGap(p, at)
	p.Treatment.MonitoringVisitsSince++

	visit := domain.Visit{
		Date:           at,
		Type:           domain.MONITORING_VISIT,
		Phase:          p.Phase,
		DiseaseState:   p.DiseaseState,
		MeasuredVision: measured,
		ActualVision:   p.ActualVision,
	}

	if e.policy.EvaluateRecurrence(p.DiseaseState, sinceLastCheck, rng) {
		visit.IsRetreatment = true
		visit.TreatmentGiven = true
		p.Retreat(at)
		// Retreatment restarts the fortnightly cadence with the new
		// loading course.
		disease.ResetPatient(p.ID)
		p.RecordInjection(at)
		p.IntervalDays = e.spec.LoadingIntervalDays
		visit.IntervalDays = e.spec.LoadingIntervalDays
		schedule(at.AddDate(0, 0, e.spec.LoadingIntervalDays), p.ID, domain.TREATMENT_VISIT, p.CourseGeneration)
		e.log.WithFields(logrus.Fields{
			"patient_id": p.ID,
			"date":       at.Format("2006-01-02"),
		}).Debug("Recurrence detected, retreatment started")
	}

	p.RecordVisit(visit)
	e.notify(p.ID, visit)
}

// monitoringGap returns the time since the previous contact (last recorded
// visit, falling back to the discontinuation date).
func (e *Engine) monitoringGap(p *domain.PatientAgent, at time.Time) time.Duration {
	if v, ok := p.LastVisit(); ok {
		return at.Sub(v.Date)
	}
	if p.Treatment.DiscontinuationDate != nil {
		return at.Sub(*p.Treatment.DiscontinuationDate)
	}
	return 0
}

func (e *Engine) notify(patientID string, visit domain.Visit) {
	for _, obs := range e.opts.Observers {
		obs.ObserveVisit(patientID, visit)
	}
}

// aggregate folds the finished patient set into SimulationResults,
// iterating in sorted patient-id order for reproducibility.
func (e *Engine) aggregate(
	runID string,
	seed int64,
	nPatients int,
	durationYears float64,
	start, end time.Time,
	patients map[string]*domain.PatientAgent,
	discontinuations map[domain.DiscontinuationReason]int,
	totalVisits int,
) *domain.SimulationResults {
	ids := make([]string, 0, len(patients))
	for id := range patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	totalInjections := 0
	retreatments := 0
	discontinued := 0
	finalVisions := make([]float64, 0, len(ids))
	for _, id := range ids {
		p := patients[id]
		totalInjections += p.InjectionCount
		retreatments += p.Treatment.RetreatmentCount
		if !p.Treatment.Active {
			discontinued++
		}
		finalVisions = append(finalVisions, p.FinalMeasuredVision())
	}

	mean, std := meanStd(finalVisions)

	byReason := make(map[domain.DiscontinuationReason]int, len(discontinuations))
	for _, r := range domain.DiscontinuationReasons {
		if n, ok := discontinuations[r]; ok {
			byReason[r] = n
		}
	}

	return &domain.SimulationResults{
		RunID:                    runID,
		ProtocolName:             e.spec.Name,
		Seed:                     seed,
		PatientCount:             nPatients,
		DurationYears:            durationYears,
		StartDate:                start,
		EndDate:                  end,
		TotalInjections:          totalInjections,
		TotalVisits:              totalVisits,
		FinalVisionMean:          mean,
		FinalVisionStd:           std,
		DiscontinuationRate:      float64(discontinued) / float64(nPatients),
		RetreatmentCount:         retreatments,
		DiscontinuationsByReason: byReason,
		Patients:                 patients,
	}
}

// sampleBaseline draws baseline vision from the configured distribution,
// clamped to the clinical letter range.
func (e *Engine) sampleBaseline(rng *rand.Rand) float64 {
	b := e.spec.BaselineVision
	var v float64
	switch b.Type {
	case "uniform":
		v = b.Min + rng.Float64()*(b.Max-b.Min)
	case "beta_with_threshold":
		// Redraw samples above the threshold that fail the keep
		// probability, with a bounded retry count.
		for attempt := 0; attempt < 16; attempt++ {
			v = b.Min + sampleBeta(rng, b.Alpha, b.Beta)*(b.Max-b.Min)
			if v <= b.Threshold || rng.Float64() < b.ProbabilityAbove {
				break
			}
		}
	default: // "normal"
		v = sampleNormal(rng, b.Mean, b.Std)
	}
	if v < 0 {
		v = 0
	}
	if v > domain.MaxVisionLetters {
		v = domain.MaxVisionLetters
	}
	return v
}

// sampleCeiling draws the per-patient vision ceiling: the baseline plus a
// normally distributed headroom, never below baseline or above 85 letters.
func (e *Engine) sampleCeiling(rng *rand.Rand, baseline float64) float64 {
	gain := sampleNormal(rng, e.spec.CeilingMeanGain, e.spec.CeilingStd)
	ceiling := baseline + gain
	if ceiling < baseline {
		ceiling = baseline
	}
	if ceiling > domain.MaxVisionLetters {
		ceiling = domain.MaxVisionLetters
	}
	return ceiling
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}
