package service

import (
	"fmt"
	"strings"

	"github.com/onco-review-server/internal/domain"
)

// ClinicalSummary assembly: the data contract the PDF export consumes.
// Layout is the exporter's concern; this builder only supplies the value.

// BuildClinicalSummary derives the export value object from a patient and
// an insight response (model-backed or deterministic).
func BuildClinicalSummary(patient *domain.Patient, insights *domain.MasterAIResponse) domain.ClinicalSummary {
	risks := deriveKeyRisks(patient, insights)
	recommendations := deriveRecommendations(patient, insights)

	narrative := strings.TrimSpace(strings.Join([]string{
		insights.Narratives.Overview,
		insights.Narratives.Treatment,
		insights.Investigations.PathologyComparisonText,
	}, " "))

	return domain.ClinicalSummary{
		ClinicalNarrative: narrative,
		StatusOneLiner:    insights.SidebarSummary,
		KeyRisks:          risks,
		Recommendations:   recommendations,
	}
}

func deriveKeyRisks(patient *domain.Patient, insights *domain.MasterAIResponse) []string {
	risks := make([]string, 0, 4)
	for _, flag := range []struct {
		name string
		flag domain.SafetyFlag
	}{
		{"Renal", insights.SafetyFlags.Renal},
		{"Liver", insights.SafetyFlags.Liver},
		{"Hematology", insights.SafetyFlags.Hematology},
	} {
		if flag.flag.Status == domain.StatusCaution || flag.flag.Status == domain.StatusDanger {
			risks = append(risks, fmt.Sprintf("%s: %s", flag.name, flag.flag.Detail))
		}
	}
	for _, delta := range insights.Investigations.PathologyDeltas {
		if delta.Trend == domain.TrendWorsening {
			risks = append(risks, fmt.Sprintf("Pathology %s changed %s -> %s", delta.Marker, delta.Old, delta.New))
		}
	}
	if ClassifyRecurrence(patient.RecurrenceStatus) == domain.RecurrenceDocumented {
		risks = append(risks, "Documented disease recurrence")
	}
	return risks
}

func deriveRecommendations(patient *domain.Patient, insights *domain.MasterAIResponse) []string {
	recommendations := make([]string, 0, 3)
	if insights.Priority == domain.PriorityHigh {
		recommendations = append(recommendations, "Review at the next multidisciplinary tumor board.")
	}
	if flagged(patient.ClinicalTrialReady) {
		recommendations = append(recommendations, "Screen against open clinical trials.")
	}
	if badge := ClassifyPerformanceStatus(patient.PerformanceStatus); badge != nil && badge.Impaired {
		recommendations = append(recommendations, "Reassess performance status before the next treatment decision.")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Continue current management and routine surveillance.")
	}
	return recommendations
}
