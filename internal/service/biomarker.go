package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/onco-review-server/internal/domain"
)

// Biomarker trend: the third comparator instance, applied per marker series,
// plus the peak/trough/current computation backing the labs summary.

var biomarkerRules = []FieldRule[domain.BiomarkerPoint]{
	{Marker: "Value", Kind: FieldMagnitude, Extract: func(p domain.BiomarkerPoint) string { return trimFloat(p.Value) }},
}

// BiomarkerSeries is one marker's time-ordered values with its extremes.
type BiomarkerSeries struct {
	Marker  string                `json:"marker"`
	Unit    string                `json:"unit"`
	Current domain.BiomarkerPoint `json:"current"`
	Peak    domain.BiomarkerPoint `json:"peak"`
	Trough  domain.BiomarkerPoint `json:"trough"`
	Trend   domain.TrendClass     `json:"trend"`
	Points  int                   `json:"points"`
}

// CompareBiomarkerTrend compares the two most recent points of one marker
// series. Input must be sorted newest-first and hold points of one marker.
func CompareBiomarkerTrend(sorted []domain.BiomarkerPoint) domain.ComparisonResult {
	switch len(sorted) {
	case 0:
		return domain.ComparisonResult{
			Narrative: "No biomarker measurements are documented.",
			Deltas:    nil,
		}
	case 1:
		point := sorted[0]
		return domain.ComparisonResult{
			Narrative: fmt.Sprintf("Single %s measurement of %s%s; no prior value for trend.",
				point.Marker, trimFloat(point.Value), unitSuffix(point.Unit)),
			Deltas: []domain.Delta{},
		}
	}

	deltas := CompareLatest(sorted, biomarkerRules)
	latest, previous := sorted[0], sorted[1]
	trend := domain.TrendStable
	for i := range deltas {
		deltas[i].Marker = latest.Marker
		trend = deltas[i].Trend
	}
	return domain.ComparisonResult{
		Narrative: fmt.Sprintf("%s %s from %s to %s%s.",
			latest.Marker, trendVerb(trend), trimFloat(previous.Value), trimFloat(latest.Value), unitSuffix(latest.Unit)),
		Deltas: deltas,
	}
}

// BiomarkerSeriesSummaries groups points by marker and computes each
// series' current value, peak, trough and latest-vs-previous trend. Output
// is ordered by marker name for determinism.
func BiomarkerSeriesSummaries(points []domain.BiomarkerPoint) []BiomarkerSeries {
	byMarker := make(map[string][]domain.BiomarkerPoint)
	for _, point := range points {
		if point.Marker == "" {
			continue
		}
		byMarker[point.Marker] = append(byMarker[point.Marker], point)
	}

	markers := make([]string, 0, len(byMarker))
	for marker := range byMarker {
		markers = append(markers, marker)
	}
	sort.Strings(markers)

	series := make([]BiomarkerSeries, 0, len(markers))
	for _, marker := range markers {
		sorted := SortByDateDesc(byMarker[marker], func(p domain.BiomarkerPoint) string { return p.Date })
		summary := BiomarkerSeries{
			Marker:  marker,
			Unit:    sorted[0].Unit,
			Current: sorted[0],
			Peak:    sorted[0],
			Trough:  sorted[0],
			Trend:   domain.TrendStable,
			Points:  len(sorted),
		}
		for _, point := range sorted {
			if point.Value > summary.Peak.Value {
				summary.Peak = point
			}
			if point.Value < summary.Trough.Value {
				summary.Trough = point
			}
		}
		if len(sorted) >= 2 {
			summary.Trend = ClassifyMagnitudeChange(sorted[1].Value, sorted[0].Value)
		}
		series = append(series, summary)
	}
	return series
}

// LabsSummaryLine renders the deterministic labs_summary text from the
// biomarker series. Total: an empty series yields a fixed placeholder.
func LabsSummaryLine(series []BiomarkerSeries) string {
	if len(series) == 0 {
		return "No laboratory biomarker trends documented."
	}
	fragments := make([]string, 0, len(series))
	for _, s := range series {
		fragments = append(fragments, fmt.Sprintf("%s %s at %s%s (peak %s, trough %s over %d values)",
			s.Marker, trendVerb(s.Trend), trimFloat(s.Current.Value), unitSuffix(s.Unit),
			trimFloat(s.Peak.Value), trimFloat(s.Trough.Value), s.Points))
	}
	return strings.Join(fragments, "; ") + "."
}

func trendVerb(trend domain.TrendClass) string {
	switch trend {
	case domain.TrendWorsening:
		return "rising"
	case domain.TrendImproving:
		return "falling"
	case domain.TrendNew:
		return "newly documented"
	default:
		return "stable"
	}
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " " + unit
}
