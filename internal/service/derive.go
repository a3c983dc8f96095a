package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/onco-review-server/internal/domain"
)

// Derived display values. Small pure derivations shared by the comparator,
// the deterministic insight builder, and the UI layer. Each "first match
// wins" fallback chain from the original lives here once, under a name,
// instead of being inlined at call sites.

// PerformanceBadge is the classified functional-status display value.
type PerformanceBadge struct {
	Scale   domain.PerformanceScale `json:"scale"`
	Value   float64                 `json:"value"`
	Display string                  `json:"display"`
	// Impaired is true for ECOG >= 2 or Karnofsky < 70.
	Impaired bool `json:"impaired"`
}

var stagePattern = regexp.MustCompile(`(?i)\bstage\s+(IV|III|II|I|0|[0-4])\s*[ABC]?\b`)
var romanPattern = regexp.MustCompile(`(?i)^\s*(IV|III|II|I|0)\s*[ABC]?\s*$`)

var romanRanks = map[string]float64{
	"0": 0, "I": 1, "II": 2, "III": 3, "IV": 4,
}

// ClassifyPerformanceStatus classifies a raw performance value onto the
// ECOG or Karnofsky scale. A percent sign, or a magnitude above the ECOG
// range, marks Karnofsky; values 0-5 without a percent sign read as ECOG.
func ClassifyPerformanceStatus(raw *string) *PerformanceBadge {
	if raw == nil {
		return nil
	}
	value := NormalizeNumber(*raw)
	if value == nil {
		return nil
	}
	if strings.Contains(*raw, "%") || *value > 5 {
		return &PerformanceBadge{
			Scale:    domain.ScaleKarnofsky,
			Value:    *value,
			Display:  "KPS " + trimFloat(*value) + "%",
			Impaired: *value < 70,
		}
	}
	return &PerformanceBadge{
		Scale:    domain.ScaleECOG,
		Value:    *value,
		Display:  "ECOG " + trimFloat(*value),
		Impaired: *value >= 2,
	}
}

var comorbiditySplit = regexp.MustCompile(`[;,/]|\band\b`)

var negationPhrases = map[string]bool{
	"none": true, "no": true, "nil": true, "n/a": true, "na": true,
	"none documented": true, "none known": true, "nothing significant": true,
	"denies": true,
}

// TokenizeComorbidities splits a free-text comorbidity field on common
// delimiters and filters out negation phrases. A nil field or one that only
// negates yields an empty list.
func TokenizeComorbidities(raw *string) []string {
	if raw == nil {
		return nil
	}
	parts := comorbiditySplit.Split(*raw, -1)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(part)
		if token == "" || negationPhrases[strings.ToLower(token)] {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// StageRank maps Roman-numeral or "Stage N" text to an ordinal 0-4. Returns
// nil when no stage designation is recognizable.
func StageRank(raw string) *float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if match := stagePattern.FindStringSubmatch(trimmed); match != nil {
		if rank, ok := romanRanks[strings.ToUpper(match[1])]; ok {
			return &rank
		}
		if numeric := NormalizeNumber(match[1]); numeric != nil {
			return numeric
		}
	}
	if match := romanPattern.FindStringSubmatch(trimmed); match != nil {
		if rank, ok := romanRanks[strings.ToUpper(match[1])]; ok {
			return &rank
		}
	}
	// Bare numeric stage groups ("3", "3A") from older exports.
	if numeric := NormalizeNumber(trimmed); numeric != nil && *numeric >= 0 && *numeric <= 4 {
		return numeric
	}
	return nil
}

// ClassifyRecurrence selects a recurrence risk tier by keyword match.
func ClassifyRecurrence(status *string) domain.RecurrenceTier {
	if status == nil {
		return domain.RecurrenceNone
	}
	lowered := strings.ToLower(*status)
	switch {
	case strings.Contains(lowered, "recur") || strings.Contains(lowered, "relapse"):
		if strings.Contains(lowered, "suspect") || strings.Contains(lowered, "possible") || strings.Contains(lowered, "?") {
			return domain.RecurrenceSuspected
		}
		return domain.RecurrenceDocumented
	default:
		return domain.RecurrenceNone
	}
}

// ResolveDriverMutation is the named fallback chain for the displayable
// driver-alteration value: explicit driver field first, then positive
// molecular flags, then the genomics comment.
func ResolveDriverMutation(patient *domain.Patient) string {
	if patient.DriverMutation != nil {
		return *patient.DriverMutation
	}
	if patient.EGFRMutation != nil && *patient.EGFRMutation {
		return "EGFR mutation"
	}
	if patient.ALKRearranged != nil && *patient.ALKRearranged {
		return "ALK rearrangement"
	}
	if patient.GenomicsComment != nil {
		return *patient.GenomicsComment
	}
	return NotDocumented
}

// ResolveStageText is the named fallback chain for the displayable stage:
// pathological TNM outranks clinical TNM outranks the bare stage group.
func ResolveStageText(patient *domain.Patient) string {
	if patient.TNMStagePath != nil {
		return *patient.TNMStagePath
	}
	if patient.TNMStageClinical != nil {
		return *patient.TNMStageClinical
	}
	if patient.StageGroup != nil {
		return *patient.StageGroup
	}
	return NotDocumented
}

// ResolveDiagnosisText is the named fallback chain for the displayable
// diagnosis: primary diagnosis, then histologic type, then the latest
// pathology diagnosis.
func ResolveDiagnosisText(patient *domain.Patient) string {
	if patient.PrimaryDiagnosis != nil {
		return *patient.PrimaryDiagnosis
	}
	if patient.HistologicType != nil {
		return *patient.HistologicType
	}
	for _, report := range SortByDateDesc(patient.Pathology, func(r domain.PathologyDetail) string { return r.Date }) {
		if report.Histology.Diagnosis != "" {
			return report.Histology.Diagnosis
		}
	}
	return NotDocumented
}

func trimFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
