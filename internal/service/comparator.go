package service

import (
	"sort"
	"strings"
	"time"

	"github.com/onco-review-server/internal/domain"
)

// Longitudinal comparison. One generic comparator covers the three places
// the system compares time-ordered sub-records: pathology reports, staging
// trajectory, and biomarker trends. Instances differ only in their field
// rules and narrative synthesis, never in the comparison algorithm.
//
// Inputs must already be sorted newest-first; the service layer guarantees
// that by construction via SortByDateDesc.

// TrendThresholdPercent is the unified significant-change cutoff for
// magnitude fields. A relative change at or below the threshold classifies
// as stable. The same constant is quoted in the model prompt so the model
// and the deterministic path apply one rule.
const TrendThresholdPercent = 20.0

// MaxDeltas caps the delta list handed to callers.
const MaxDeltas = 5

// NotDocumented is the display sentinel for an absent side of a delta.
const NotDocumented = "not documented"

// FieldKind selects the trend-classification semantics for a tracked field.
type FieldKind int

const (
	// FieldOrdinal ranks values numerically; a higher rank is worsening.
	FieldOrdinal FieldKind = iota
	// FieldMagnitude compares numeric values against the percent threshold.
	FieldMagnitude
	// FieldPresence maps values to involved/clear; involvement appearing is
	// worsening, involvement resolving is improving.
	FieldPresence
	// FieldText has no ordinal or numeric semantics; a textual change
	// classifies conservatively as stable.
	FieldText
)

// FieldRule describes one tracked field of a record type: how to read its
// display value and how to classify a change. Extract returns "" when the
// field is absent. Rank overrides the default numeric ranking for ordinal
// fields (stage text, for example).
type FieldRule[T any] struct {
	Marker  string
	Kind    FieldKind
	Extract func(record T) string
	Rank    func(value string) *float64
}

// CompareLatest compares the latest record (index 0) against the previous
// one (index 1) field by field, in rule order. It is total over sequences of
// any length: zero and one records yield no deltas.
func CompareLatest[T any](sorted []T, rules []FieldRule[T]) []domain.Delta {
	if len(sorted) < 2 {
		return nil
	}
	latest, previous := sorted[0], sorted[1]

	deltas := make([]domain.Delta, 0, len(rules))
	for _, rule := range rules {
		newValue := strings.TrimSpace(rule.Extract(latest))
		oldValue := strings.TrimSpace(rule.Extract(previous))

		switch {
		case newValue == "" && oldValue == "":
			continue
		case oldValue == "":
			deltas = append(deltas, domain.Delta{
				Marker: rule.Marker, Old: NotDocumented, New: newValue, Trend: domain.TrendNew,
			})
		case newValue == "":
			// A value that is no longer documented is a documentation event,
			// not clinical improvement.
			deltas = append(deltas, domain.Delta{
				Marker: rule.Marker, Old: oldValue, New: NotDocumented, Trend: domain.TrendNew,
			})
		case strings.EqualFold(newValue, oldValue):
			continue
		default:
			deltas = append(deltas, domain.Delta{
				Marker: rule.Marker,
				Old:    oldValue,
				New:    newValue,
				Trend:  classifyChange(rule, oldValue, newValue),
			})
		}
	}
	if len(deltas) > MaxDeltas {
		deltas = deltas[:MaxDeltas]
	}
	return deltas
}

// classifyChange classifies a change where both sides are present and
// differ textually.
func classifyChange[T any](rule FieldRule[T], oldValue, newValue string) domain.TrendClass {
	switch rule.Kind {
	case FieldOrdinal:
		rank := rule.Rank
		if rank == nil {
			rank = func(value string) *float64 { return NormalizeNumber(value) }
		}
		oldRank, newRank := rank(oldValue), rank(newValue)
		if oldRank == nil || newRank == nil {
			return domain.TrendStable
		}
		switch {
		case *newRank > *oldRank:
			return domain.TrendWorsening
		case *newRank < *oldRank:
			return domain.TrendImproving
		default:
			return domain.TrendStable
		}

	case FieldMagnitude:
		oldNum, newNum := NormalizeNumber(oldValue), NormalizeNumber(newValue)
		if oldNum == nil || newNum == nil {
			return domain.TrendStable
		}
		return ClassifyMagnitudeChange(*oldNum, *newNum)

	case FieldPresence:
		oldInvolved, newInvolved := presenceTruth(oldValue), presenceTruth(newValue)
		if oldInvolved == nil || newInvolved == nil || *oldInvolved == *newInvolved {
			return domain.TrendStable
		}
		if *newInvolved {
			return domain.TrendWorsening
		}
		return domain.TrendImproving

	default:
		return domain.TrendStable
	}
}

// ClassifyMagnitudeChange applies the unified percent-threshold rule to a
// numeric pair. Changes within the threshold are noise, not trend.
func ClassifyMagnitudeChange(oldValue, newValue float64) domain.TrendClass {
	if oldValue == 0 {
		if newValue == 0 {
			return domain.TrendStable
		}
		return domain.TrendWorsening
	}
	percent := (newValue - oldValue) / oldValue * 100
	switch {
	case percent > TrendThresholdPercent:
		return domain.TrendWorsening
	case percent < -TrendThresholdPercent:
		return domain.TrendImproving
	default:
		return domain.TrendStable
	}
}

// presenceTruth maps a free-text finding to involved (true) or clear
// (false). Unrecognized phrasing yields nil and the change is treated
// conservatively.
var involvedTokens = map[string]bool{
	"positive": true, "involved": true, "present": true, "yes": true,
	"identified": true, "detected": true, "seen": true,
}

var clearTokens = map[string]bool{
	"negative": true, "clear": true, "absent": true, "no": true,
	"not identified": true, "not detected": true, "uninvolved": true,
	"free": true,
}

func presenceTruth(value string) *bool {
	token := strings.ToLower(strings.TrimSpace(value))
	if involvedTokens[token] {
		v := true
		return &v
	}
	if clearTokens[token] {
		v := false
		return &v
	}
	return nil
}

// dateLayouts are tried in order when sorting sub-records by date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"2006-01",
}

// parseRecordDate parses a sub-record date, returning the zero time when the
// value is missing or unparseable so those records sort last.
func parseRecordDate(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// SortByDateDesc returns a copy of records sorted newest-first by the
// extracted date field. Records with missing or unparseable dates sort last.
// The sort is stable so source order breaks ties.
func SortByDateDesc[T any](records []T, date func(record T) string) []T {
	sorted := make([]T, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return parseRecordDate(date(sorted[i])).After(parseRecordDate(date(sorted[j])))
	})
	return sorted
}
