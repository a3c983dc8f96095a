package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/onco-review-server/internal/domain"
)

// Deterministic insight construction. This is the total fallback behind the
// external model: for any valid Patient, including one with every field nil,
// it produces a fully-shaped MasterAIResponse with "not documented"
// placeholders. No randomness and no wall-clock dependence beyond the
// explicit GeneratedAt stamp, so repeated calls agree.

// BuildFallbackInsights derives a complete MasterAIResponse from local
// computation only.
func BuildFallbackInsights(patient *domain.Patient) *domain.MasterAIResponse {
	sortedPathology := SortByDateDesc(patient.Pathology, func(r domain.PathologyDetail) string { return r.Date })
	pathologyComparison := ComparePathologyReports(sortedPathology)
	stagingComparison := CompareStagingTrajectory(StagingObservations(patient))
	series := BiomarkerSeriesSummaries(patient.Biomarkers)

	return &domain.MasterAIResponse{
		PatientID:      patient.PatientID,
		SidebarSummary: SidebarSummary(patient),
		Priority:       derivePriority(patient, pathologyComparison.Deltas),
		SafetyFlags:    DeriveSafetyFlags(patient),
		Charts:         chartDirectives(patient, series),
		Narratives: domain.TabNarratives{
			Overview:     overviewNarrative(patient, stagingComparison),
			Treatment:    TreatmentNarrative(patient),
			Genomics:     genomicsNarrative(patient),
			Radiology:    radiologyNarrative(patient),
			Surveillance: surveillanceNarrative(patient),
		},
		Investigations: domain.Investigations{
			PathologyComparisonText: pathologyComparison.Narrative,
			PathologyDeltas:         pathologyComparison.Deltas,
			LabsSummary:             LabsSummaryLine(series),
		},
		Source:      domain.SourceDeterministic,
		GeneratedAt: time.Now().UTC(),
	}
}

// DeriveSafetyFlags computes the renal/liver/hematology triad from the lab
// flags. A nil flag yields Not Documented, never Safe.
func DeriveSafetyFlags(patient *domain.Patient) domain.SafetyFlags {
	return domain.SafetyFlags{
		Renal:      safetyFromFlag(patient.RenalDysfunction, "renal function"),
		Liver:      safetyFromFlag(patient.LiverDysfunction, "liver function"),
		Hematology: safetyFromFlag(patient.Myelosuppression, "blood counts"),
	}
}

func safetyFromFlag(flag *bool, concern string) domain.SafetyFlag {
	switch {
	case flag == nil:
		return domain.SafetyFlag{
			Status: domain.StatusNotDocumented,
			Detail: fmt.Sprintf("No %s data documented.", concern),
		}
	case *flag:
		return domain.SafetyFlag{
			Status: domain.StatusCaution,
			Detail: fmt.Sprintf("Impaired %s documented; verify dosing adjustments.", concern),
		}
	default:
		return domain.SafetyFlag{
			Status: domain.StatusSafe,
			Detail: fmt.Sprintf("No documented impairment of %s.", concern),
		}
	}
}

// SidebarSummary renders the short patient header line.
func SidebarSummary(patient *domain.Patient) string {
	fragments := make([]string, 0, 4)
	if patient.Age != nil && patient.Sex != nil {
		fragments = append(fragments, fmt.Sprintf("%d-year-old %s", *patient.Age, strings.ToLower(*patient.Sex)))
	}
	fragments = append(fragments, ResolveDiagnosisText(patient))
	if stage := ResolveStageText(patient); stage != NotDocumented {
		fragments = append(fragments, "stage "+stage)
	}
	if badge := ClassifyPerformanceStatus(patient.PerformanceStatus); badge != nil {
		fragments = append(fragments, badge.Display)
	}
	return strings.Join(fragments, ", ")
}

// TreatmentNarrative synthesizes the treatment history: current regimen,
// prior lines and stop reasons.
func TreatmentNarrative(patient *domain.Patient) string {
	if len(patient.Treatments) == 0 {
		return "No treatment history documented."
	}
	sorted := SortByDateDesc(patient.Treatments, func(e domain.TreatmentEvent) string { return e.StartDate })
	current := sorted[0]

	var sb strings.Builder
	if current.EndDate == "" {
		sb.WriteString("Currently on " + displayOr(current.Regimen, "an undocumented regimen"))
	} else {
		sb.WriteString("Most recent regimen: " + displayOr(current.Regimen, NotDocumented))
	}
	if current.Response != "" {
		sb.WriteString(", best response " + current.Response)
	}
	sb.WriteString(".")

	if len(sorted) > 1 {
		sb.WriteString(fmt.Sprintf(" %d prior line(s):", len(sorted)-1))
		for _, event := range sorted[1:] {
			sb.WriteString(" " + displayOr(event.Regimen, "undocumented regimen"))
			if event.ReasonStopped != "" {
				sb.WriteString(" (stopped: " + event.ReasonStopped + ")")
			}
			sb.WriteString(";")
		}
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func overviewNarrative(patient *domain.Patient, staging domain.ComparisonResult) string {
	parts := []string{
		"Diagnosis: " + ResolveDiagnosisText(patient) + ".",
		staging.Narrative,
	}
	if comorbidities := TokenizeComorbidities(patient.Comorbidities); len(comorbidities) > 0 {
		parts = append(parts, "Comorbidities: "+strings.Join(comorbidities, ", ")+".")
	}
	tier := ClassifyRecurrence(patient.RecurrenceStatus)
	parts = append(parts, string(tier)+".")
	return strings.Join(parts, " ")
}

func genomicsNarrative(patient *domain.Patient) string {
	parts := []string{"Driver alteration: " + ResolveDriverMutation(patient) + "."}
	if patient.PDL1Percent != nil {
		parts = append(parts, fmt.Sprintf("PD-L1 expression %s%%.", trimFloat(*patient.PDL1Percent)))
	}
	if patient.TMB != nil {
		parts = append(parts, fmt.Sprintf("TMB %s mut/Mb.", trimFloat(*patient.TMB)))
	}
	if patient.MSIStatus != nil {
		parts = append(parts, "MSI: "+*patient.MSIStatus+".")
	}
	if len(parts) == 1 && ResolveDriverMutation(patient) == NotDocumented {
		return "No molecular profile documented."
	}
	return strings.Join(parts, " ")
}

func radiologyNarrative(patient *domain.Patient) string {
	if len(patient.Radiology) == 0 {
		return "No imaging studies documented."
	}
	sorted := SortByDateDesc(patient.Radiology, func(d domain.RadiologyDocument) string { return d.Date })
	latest := sorted[0]
	text := fmt.Sprintf("%d imaging stud(ies) on file; latest %s %s",
		len(sorted), displayOr(latest.Date, "undated"), displayOr(latest.Modality, "study"))
	if latest.Summary != "" {
		text += ": " + latest.Summary
	}
	return text + "."
}

func surveillanceNarrative(patient *domain.Patient) string {
	tier := ClassifyRecurrence(patient.RecurrenceStatus)
	switch tier {
	case domain.RecurrenceDocumented:
		return "Documented recurrence; surveillance interval should follow the active-disease pathway."
	case domain.RecurrenceSuspected:
		return "Possible recurrence flagged in the record; confirmatory imaging is outstanding."
	default:
		return "No documented recurrence; routine surveillance applies."
	}
}

func derivePriority(patient *domain.Patient, deltas []domain.Delta) domain.Priority {
	worsening := 0
	for _, delta := range deltas {
		if delta.Trend == domain.TrendWorsening {
			worsening++
		}
	}
	switch {
	case worsening >= 2 || ClassifyRecurrence(patient.RecurrenceStatus) == domain.RecurrenceDocumented:
		return domain.PriorityHigh
	case worsening == 1 || flagged(patient.RenalDysfunction) || flagged(patient.LiverDysfunction) || flagged(patient.Myelosuppression):
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func chartDirectives(patient *domain.Patient, series []BiomarkerSeries) []domain.ChartDirective {
	directives := make([]domain.ChartDirective, 0, 1+len(series))
	if len(patient.TumorSizes) > 0 {
		directives = append(directives, domain.ChartDirective{
			ChartType: "line",
			Title:     "Tumor Size Trend",
			Emphasis:  "latest",
		})
	}
	for _, s := range series {
		directive := domain.ChartDirective{
			ChartType: "line",
			Title:     s.Marker + " Trend",
			Marker:    s.Marker,
		}
		if s.Trend == domain.TrendWorsening {
			directive.Emphasis = "alert"
		}
		directives = append(directives, directive)
	}
	return directives
}

func flagged(flag *bool) bool {
	return flag != nil && *flag
}

func displayOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
