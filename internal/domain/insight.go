package domain

import "time"

// Delta is a structured record of one field's value change between the two
// most recent sub-records, tagged with a clinical trend classification. A
// Delta is only ever constructed when the old and new values differ, or when
// one side is present and the other is not.
type Delta struct {
	Marker string     `json:"marker"`
	Old    string     `json:"old"`
	New    string     `json:"new"`
	Trend  TrendClass `json:"trend"`
}

// ComparisonResult is the output of the longitudinal comparator: a
// natural-language synthesis plus the structured deltas backing it.
type ComparisonResult struct {
	Narrative string  `json:"narrative"`
	Deltas    []Delta `json:"deltas"`
}

// SafetyFlag is one organ-system entry of the safety triad.
type SafetyFlag struct {
	Status SafetyStatus `json:"status"`
	Detail string       `json:"detail"`
}

// SafetyFlags is the renal/liver/hematology triad shown in the sidebar.
type SafetyFlags struct {
	Renal      SafetyFlag `json:"renal"`
	Liver      SafetyFlag `json:"liver"`
	Hematology SafetyFlag `json:"hematology"`
}

// ChartDirective tells the UI which trend chart to render and how.
type ChartDirective struct {
	ChartType string `json:"chart_type"`
	Title     string `json:"title"`
	Marker    string `json:"marker,omitempty"`
	Emphasis  string `json:"emphasis,omitempty"`
}

// TabNarratives holds the per-tab narrative text fields.
type TabNarratives struct {
	Overview     string `json:"overview"`
	Treatment    string `json:"treatment"`
	Genomics     string `json:"genomics"`
	Radiology    string `json:"radiology"`
	Surveillance string `json:"surveillance"`
}

// Investigations is the pathology/labs block of an insight response.
// PathologyDeltas is nil when zero structured pathology reports exist, an
// empty slice when exactly one exists, and a non-empty capped slice when two
// or more exist and differences were found.
type Investigations struct {
	PathologyComparisonText string  `json:"pathology_comparison_text"`
	PathologyDeltas         []Delta `json:"pathology_deltas"`
	LabsSummary             string  `json:"labs_summary"`
}

// MasterAIResponse is the structured insight aggregate: one per patient per
// insight-generation call. Callers may cache it keyed by patient id for a
// browsing session but must not assume it is stable across source changes.
type MasterAIResponse struct {
	PatientID      string           `json:"patient_id"`
	SidebarSummary string           `json:"sidebar_summary"`
	Priority       Priority         `json:"priority"`
	SafetyFlags    SafetyFlags      `json:"safety_flags"`
	Charts         []ChartDirective `json:"charts"`
	Narratives     TabNarratives    `json:"narratives"`
	Investigations Investigations   `json:"investigations"`
	Source         InsightSource    `json:"source"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// ClinicalSummary is the value object handed to the PDF export collaborator.
type ClinicalSummary struct {
	ClinicalNarrative string   `json:"clinical_narrative"`
	StatusOneLiner    string   `json:"status_one_liner,omitempty"`
	KeyRisks          []string `json:"key_risks"`
	Recommendations   []string `json:"recommendations"`
}
