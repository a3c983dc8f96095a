package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-review-server/internal/domain"
)

func TestBuildClinicalSummary(t *testing.T) {
	patient := &domain.Patient{
		PatientID:          "PT-200",
		RecurrenceStatus:   strPtr("local recurrence confirmed"),
		ClinicalTrialReady: boolPtr(true),
		PerformanceStatus:  strPtr("ECOG 2"),
	}
	insights := BuildFallbackInsights(patient)

	summary := BuildClinicalSummary(patient, insights)

	assert.Equal(t, insights.SidebarSummary, summary.StatusOneLiner)
	assert.Contains(t, summary.ClinicalNarrative, insights.Narratives.Overview)
	assert.Contains(t, summary.ClinicalNarrative, insights.Narratives.Treatment)

	require.NotEmpty(t, summary.KeyRisks)
	assert.Contains(t, summary.KeyRisks, "Documented disease recurrence")

	// Recurrence drives high priority, and the trial and performance flags
	// each contribute a recommendation.
	assert.Contains(t, summary.Recommendations, "Review at the next multidisciplinary tumor board.")
	assert.Contains(t, summary.Recommendations, "Screen against open clinical trials.")
	assert.Contains(t, summary.Recommendations, "Reassess performance status before the next treatment decision.")
}

func TestBuildClinicalSummaryQuietPatient(t *testing.T) {
	patient := &domain.Patient{
		PatientID:        "PT-201",
		RenalDysfunction: boolPtr(false),
	}
	insights := BuildFallbackInsights(patient)

	summary := BuildClinicalSummary(patient, insights)

	assert.Empty(t, summary.KeyRisks, "a Safe flag is not a risk")
	assert.Equal(t, []string{"Continue current management and routine surveillance."}, summary.Recommendations)
}

func TestDeriveKeyRisksFromFlagsAndDeltas(t *testing.T) {
	patient := &domain.Patient{}
	insights := &domain.MasterAIResponse{
		SafetyFlags: domain.SafetyFlags{
			Renal: domain.SafetyFlag{Status: domain.StatusCaution, Detail: "Creatinine rising."},
			Liver: domain.SafetyFlag{Status: domain.StatusSafe, Detail: "Normal."},
		},
		Investigations: domain.Investigations{
			PathologyDeltas: []domain.Delta{
				{Marker: "Grade", Old: "2", New: "3", Trend: domain.TrendWorsening},
				{Marker: "Margins", Old: "positive", New: "negative", Trend: domain.TrendImproving},
			},
		},
	}

	risks := deriveKeyRisks(patient, insights)

	require.Len(t, risks, 2)
	assert.Equal(t, "Renal: Creatinine rising.", risks[0])
	assert.Equal(t, "Pathology Grade changed 2 -> 3", risks[1])
}
