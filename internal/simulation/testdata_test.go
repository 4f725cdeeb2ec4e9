package simulation

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amd-treatment-sim/internal/domain"
)

// testStartDate is the anchor date shared by the scheduling tests.
func testStartDate() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// testLogger returns a silenced logger for tests.
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// deterministicRow builds a transition row concentrating all probability
// mass on one target state.
func deterministicRow(target domain.DiseaseState) map[domain.DiseaseState]float64 {
	row := make(map[domain.DiseaseState]float64, len(domain.DiseaseStates))
	for _, s := range domain.DiseaseStates {
		row[s] = 0
	}
	row[target] = 1
	return row
}

// stableTransitions keeps every patient pinned to STABLE after the first
// tick, removing disease stochasticity from scheduling tests.
func stableTransitions() domain.TransitionTable {
	return domain.TransitionTable{
		domain.NAIVE:         deterministicRow(domain.STABLE),
		domain.STABLE:        deterministicRow(domain.STABLE),
		domain.ACTIVE:        deterministicRow(domain.STABLE),
		domain.HIGHLY_ACTIVE: deterministicRow(domain.STABLE),
	}
}

// realisticTransitions mirrors the shipped Eylea protocol table.
func realisticTransitions() domain.TransitionTable {
	return domain.TransitionTable{
		domain.NAIVE: {
			domain.NAIVE: 0.0, domain.STABLE: 0.45, domain.ACTIVE: 0.45, domain.HIGHLY_ACTIVE: 0.10,
		},
		domain.STABLE: {
			domain.NAIVE: 0.0, domain.STABLE: 0.88, domain.ACTIVE: 0.10, domain.HIGHLY_ACTIVE: 0.02,
		},
		domain.ACTIVE: {
			domain.NAIVE: 0.0, domain.STABLE: 0.20, domain.ACTIVE: 0.70, domain.HIGHLY_ACTIVE: 0.10,
		},
		domain.HIGHLY_ACTIVE: {
			domain.NAIVE: 0.0, domain.STABLE: 0.05, domain.ACTIVE: 0.25, domain.HIGHLY_ACTIVE: 0.70,
		},
	}
}

func fullVisionChange() map[domain.DiseaseState]domain.VisionChangeParameters {
	return map[domain.DiseaseState]domain.VisionChangeParameters{
		domain.NAIVE:         {UntreatedMean: -1.2, UntreatedStd: 1.0, TreatedMean: 1.5, TreatedStd: 1.2},
		domain.STABLE:        {UntreatedMean: -0.3, UntreatedStd: 0.8, TreatedMean: 0.6, TreatedStd: 0.8},
		domain.ACTIVE:        {UntreatedMean: -1.8, UntreatedStd: 1.2, TreatedMean: 0.2, TreatedStd: 1.0},
		domain.HIGHLY_ACTIVE: {UntreatedMean: -3.5, UntreatedStd: 1.5, TreatedMean: -0.5, TreatedStd: 1.2},
	}
}

// testProtocol returns a valid treat-and-extend protocol with all
// stochastic stopping rules disabled; individual tests switch on the rules
// they exercise.
func testProtocol() *domain.ProtocolSpec {
	return &domain.ProtocolSpec{
		Name:                "test-protocol",
		LoadingDoseCount:    3,
		LoadingIntervalDays: 28,
		MinIntervalDays:     56,
		MaxIntervalDays:     112,
		ExtensionDays:       14,
		ShorteningDays:      14,
		UpdateIntervalDays:  14,
		BaselineVision: domain.BaselineVisionDistribution{
			Type: "normal",
			Mean: 58,
			Std:  12,
		},
		Transitions: stableTransitions(),
		TreatmentEffect: domain.TreatmentEffectParameters{
			HalfLifeDays: 56,
		},
		VisionChange:        fullVisionChange(),
		CeilingMeanGain:     10,
		CeilingStd:          3,
		MeasurementNoiseStd: 0,
	}
}

// realisticProtocol enables the discontinuation and recurrence machinery
// with the shipped parameter values.
func realisticProtocol() *domain.ProtocolSpec {
	spec := testProtocol()
	spec.Transitions = realisticTransitions()
	spec.TreatmentEffect.Multipliers = map[domain.DiseaseState]map[domain.DiseaseState]float64{
		domain.ACTIVE: {
			domain.STABLE: 1.8, domain.ACTIVE: 0.8, domain.HIGHLY_ACTIVE: 0.5,
		},
		domain.HIGHLY_ACTIVE: {
			domain.STABLE: 1.5, domain.ACTIVE: 1.5, domain.HIGHLY_ACTIVE: 0.7,
		},
	}
	spec.MeasurementNoiseStd = 2
	spec.Discontinuation = domain.DiscontinuationParameters{
		StableRequiredVisits:            3,
		StableProbability:               0.2,
		AdministrativeAnnualProbability: 0.05,
		CourseDurationYears:             10,
		CourseCompleteProbability:       1,
		PrematureProbability:            0.005,
		PoorVisionThreshold:             15,
		PoorVisionProbability:           0.1,
		RecurrenceBaseAnnualRisk:        0.2,
		RecurrenceRiskMultiplier:        1,
	}
	return spec
}
