package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/onco-review-server/internal/domain"
)

// Pathology-report comparison: the highest-priority comparator instance.
// Tracked fields, in delta priority order: grade, tumor size, margins,
// invasion (lymphovascular, then perineural), nodal status, then IHC
// markers up to a sub-cap.

// ihcSubCap limits IHC marker deltas so panel churn cannot crowd out the
// histology fields.
const ihcSubCap = 2

var pathologyRules = []FieldRule[domain.PathologyDetail]{
	{Marker: "Grade", Kind: FieldOrdinal, Extract: func(r domain.PathologyDetail) string { return r.Histology.Grade }},
	{Marker: "Tumor Size", Kind: FieldMagnitude, Extract: func(r domain.PathologyDetail) string { return r.Histology.TumorSize }},
	{Marker: "Margins", Kind: FieldPresence, Extract: func(r domain.PathologyDetail) string { return r.Histology.Margins }},
	{Marker: "Lymphovascular Invasion", Kind: FieldPresence, Extract: func(r domain.PathologyDetail) string { return r.Histology.LymphovascularInv }},
	{Marker: "Perineural Invasion", Kind: FieldPresence, Extract: func(r domain.PathologyDetail) string { return r.Histology.PerineuralInv }},
	{Marker: "Nodal Status", Kind: FieldText, Extract: func(r domain.PathologyDetail) string { return r.Histology.NodalStatus }},
	{Marker: "Diagnosis", Kind: FieldText, Extract: func(r domain.PathologyDetail) string { return r.Histology.Diagnosis }},
}

// ComparePathologyReports compares the latest report against the previous
// one. Input must be sorted newest-first.
func ComparePathologyReports(sorted []domain.PathologyDetail) domain.ComparisonResult {
	switch len(sorted) {
	case 0:
		return domain.ComparisonResult{
			Narrative: "No structured pathology reports are documented for this patient.",
			Deltas:    nil,
		}
	case 1:
		return domain.ComparisonResult{
			Narrative: singleReportNarrative(sorted[0]),
			Deltas:    []domain.Delta{},
		}
	}

	deltas := CompareLatest(sorted, pathologyRules)
	deltas = appendIHCDeltas(deltas, sorted[0], sorted[1])
	if len(deltas) > MaxDeltas {
		deltas = deltas[:MaxDeltas]
	}
	return domain.ComparisonResult{
		Narrative: multiReportNarrative(sorted[0], sorted[1], deltas),
		Deltas:    deltas,
	}
}

// appendIHCDeltas adds deltas for IHC markers present in either report,
// capped at ihcSubCap. Marker names are walked in sorted order so output is
// deterministic.
func appendIHCDeltas(deltas []domain.Delta, latest, previous domain.PathologyDetail) []domain.Delta {
	names := make(map[string]struct{}, len(latest.IHC)+len(previous.IHC))
	for name := range latest.IHC {
		names[name] = struct{}{}
	}
	for name := range previous.IHC {
		names[name] = struct{}{}
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	added := 0
	for _, name := range ordered {
		if added >= ihcSubCap {
			break
		}
		newValue := strings.TrimSpace(latest.IHC[name])
		oldValue := strings.TrimSpace(previous.IHC[name])
		switch {
		case newValue == "" && oldValue == "":
			continue
		case oldValue == "":
			deltas = append(deltas, domain.Delta{Marker: name, Old: NotDocumented, New: newValue, Trend: domain.TrendNew})
		case newValue == "":
			deltas = append(deltas, domain.Delta{Marker: name, Old: oldValue, New: NotDocumented, Trend: domain.TrendNew})
		case strings.EqualFold(newValue, oldValue):
			continue
		default:
			trend := domain.TrendStable
			if oldInv, newInv := presenceTruth(oldValue), presenceTruth(newValue); oldInv != nil && newInv != nil && *oldInv != *newInv {
				if *newInv {
					trend = domain.TrendWorsening
				} else {
					trend = domain.TrendImproving
				}
			}
			deltas = append(deltas, domain.Delta{Marker: name, Old: oldValue, New: newValue, Trend: trend})
		}
		added++
	}
	return deltas
}

// singleReportNarrative synthesizes a one-report summary from the populated
// fields only.
func singleReportNarrative(report domain.PathologyDetail) string {
	fragments := []string{"A single pathology report is available"}
	if report.Date != "" {
		fragments[0] += " dated " + report.Date
	}
	if report.Site != "" {
		fragments = append(fragments, "site: "+report.Site)
	}
	if report.Histology.Diagnosis != "" {
		fragments = append(fragments, "diagnosis: "+report.Histology.Diagnosis)
	}
	if report.Histology.Grade != "" {
		fragments = append(fragments, "grade "+report.Histology.Grade)
	}
	if report.Histology.Margins != "" {
		fragments = append(fragments, "margins "+report.Histology.Margins)
	}
	return strings.Join(fragments, "; ") + ". No prior report exists for comparison."
}

// multiReportNarrative synthesizes a latest-vs-previous summary that names
// every changed field.
func multiReportNarrative(latest, previous domain.PathologyDetail, deltas []domain.Delta) string {
	span := "the previous report"
	if latest.Date != "" && previous.Date != "" {
		span = fmt.Sprintf("the %s report compared with %s", latest.Date, previous.Date)
	}
	if len(deltas) == 0 {
		return fmt.Sprintf("No significant change between %s.", span)
	}

	changes := make([]string, 0, len(deltas))
	worsening := 0
	for _, delta := range deltas {
		changes = append(changes, fmt.Sprintf("%s %s (%s -> %s)", delta.Marker, delta.Trend, delta.Old, delta.New))
		if delta.Trend == domain.TrendWorsening {
			worsening++
		}
	}
	narrative := fmt.Sprintf("Between %s: %s.", span, strings.Join(changes, "; "))
	if worsening > 0 {
		narrative += fmt.Sprintf(" %d of %d changes classify as worsening.", worsening, len(deltas))
	}
	return narrative
}
