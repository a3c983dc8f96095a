package service

import (
	"fmt"

	"github.com/onco-review-server/internal/domain"
)

// Staging trajectory: the second comparator instance. Observations are the
// patient's staging values in documentation order (clinical staging precedes
// pathological staging), compared with the ordinal stage-rank rule.

// StageObservation is one staging value at a point in the diagnostic
// workflow.
type StageObservation struct {
	Label string `json:"label"`
	Date  string `json:"date"`
	Stage string `json:"stage"`
}

var stagingRules = []FieldRule[StageObservation]{
	{Marker: "Stage", Kind: FieldOrdinal, Extract: func(o StageObservation) string { return o.Stage }, Rank: StageRank},
}

// StagingObservations builds the patient's stage trajectory, oldest-first:
// clinical TNM, then pathological TNM, then the overall stage group when it
// adds a value the TNM fields lack.
func StagingObservations(patient *domain.Patient) []StageObservation {
	observations := make([]StageObservation, 0, 3)
	if patient.TNMStageClinical != nil {
		observations = append(observations, StageObservation{Label: "Clinical TNM", Stage: *patient.TNMStageClinical})
	}
	if patient.TNMStagePath != nil {
		observations = append(observations, StageObservation{Label: "Pathological TNM", Stage: *patient.TNMStagePath})
	}
	if patient.StageGroup != nil && len(observations) == 0 {
		observations = append(observations, StageObservation{Label: "Stage Group", Stage: *patient.StageGroup})
	}
	return observations
}

// CompareStagingTrajectory compares the most recent staging value against
// the prior one. Observations arrive oldest-first from StagingObservations
// and are reversed here so index 0 is the latest.
func CompareStagingTrajectory(observations []StageObservation) domain.ComparisonResult {
	switch len(observations) {
	case 0:
		return domain.ComparisonResult{
			Narrative: "No staging information is documented.",
			Deltas:    nil,
		}
	case 1:
		return domain.ComparisonResult{
			Narrative: fmt.Sprintf("%s documented as %s; no prior staging for comparison.",
				observations[0].Label, observations[0].Stage),
			Deltas: []domain.Delta{},
		}
	}

	newestFirst := make([]StageObservation, 0, len(observations))
	for i := len(observations) - 1; i >= 0; i-- {
		newestFirst = append(newestFirst, observations[i])
	}

	deltas := CompareLatest(newestFirst, stagingRules)
	latest, previous := newestFirst[0], newestFirst[1]
	if len(deltas) == 0 {
		return domain.ComparisonResult{
			Narrative: fmt.Sprintf("Staging unchanged between %s (%s) and %s (%s).",
				previous.Label, previous.Stage, latest.Label, latest.Stage),
			Deltas: []domain.Delta{},
		}
	}
	return domain.ComparisonResult{
		Narrative: fmt.Sprintf("Staging evolved from %s (%s) to %s (%s): %s.",
			previous.Label, previous.Stage, latest.Label, latest.Stage, deltas[0].Trend),
		Deltas: deltas,
	}
}
