// Package domain contains core business entities and types for oncology
// patient review: the canonical patient record assembled from flattened CSV
// exports, longitudinal comparison results, and the structured insight
// objects consumed by the dashboard UI and the PDF export.
package domain

// TrendClass represents the clinical trend assigned to a single field change
// between two time-ordered sub-records.
type TrendClass string

const (
	TrendWorsening TrendClass = "worsening"
	TrendImproving TrendClass = "improving"
	TrendStable    TrendClass = "stable"
	TrendNew       TrendClass = "new"
)

// SafetyStatus represents the status of one organ-system safety flag.
// StatusNotDocumented is produced only by the deterministic path when the
// underlying source data is absent; absence of data must never be rendered
// as Safe.
type SafetyStatus string

const (
	StatusSafe          SafetyStatus = "Safe"
	StatusCaution       SafetyStatus = "Caution"
	StatusDanger        SafetyStatus = "Danger"
	StatusNotDocumented SafetyStatus = "Not Documented"
)

// Priority represents the urgency level attached to an insight item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// InsightSource records which path produced a MasterAIResponse.
type InsightSource string

const (
	SourceModel         InsightSource = "model"
	SourceDeterministic InsightSource = "deterministic"
)

// PerformanceScale identifies which functional-status scale a raw
// performance value was recorded on.
type PerformanceScale string

const (
	ScaleECOG      PerformanceScale = "ECOG"
	ScaleKarnofsky PerformanceScale = "Karnofsky"
	ScaleUnknown   PerformanceScale = "Unknown"
)

// RecurrenceTier classifies documented disease recurrence into a risk tier.
type RecurrenceTier string

const (
	RecurrenceDocumented RecurrenceTier = "Documented Recurrence"
	RecurrenceSuspected  RecurrenceTier = "Suspected Recurrence"
	RecurrenceNone       RecurrenceTier = "No Documented Recurrence"
)

// IsValid validates that the TrendClass is one of the enumerated trends.
// Trend values flow into clinical display and must never be free-form.
func (t TrendClass) IsValid() bool {
	switch t {
	case TrendWorsening, TrendImproving, TrendStable, TrendNew:
		return true
	default:
		return false
	}
}

func (t TrendClass) String() string {
	return string(t)
}

// IsValid validates that the SafetyStatus is one of the enumerated states.
func (s SafetyStatus) IsValid() bool {
	switch s {
	case StatusSafe, StatusCaution, StatusDanger, StatusNotDocumented:
		return true
	default:
		return false
	}
}

// IsModelAssignable reports whether the status may appear in a model
// response. The model contract enumerates only Safe/Caution/Danger;
// Not Documented is reserved for the deterministic path.
func (s SafetyStatus) IsModelAssignable() bool {
	switch s {
	case StatusSafe, StatusCaution, StatusDanger:
		return true
	default:
		return false
	}
}

func (s SafetyStatus) String() string {
	return string(s)
}

// IsValid validates that the Priority is one of the enumerated levels.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// LogFields returns structured logging fields for insight audit trails.
func (s InsightSource) LogFields() map[string]any {
	return map[string]any{
		"insight_source": string(s),
		"model_backed":   s == SourceModel,
	}
}
