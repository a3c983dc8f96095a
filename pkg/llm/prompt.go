package llm

import (
	"encoding/json"
	"fmt"

	"github.com/onco-review-server/internal/domain"
	"github.com/onco-review-server/internal/service"
)

// Prompt construction. The instruction enumerates the exact output schema,
// the allowed value sets, per-field word limits, and the three pathology
// scenario branches, so the model and the deterministic path apply one rule.

const responseSchema = `{
  "sidebar_summary": "string, at most 40 words",
  "priority": "one of: high | medium | low",
  "safety_flags": {
    "renal":      {"status": "one of: Safe | Caution | Danger", "detail": "string, at most 20 words"},
    "liver":      {"status": "one of: Safe | Caution | Danger", "detail": "string, at most 20 words"},
    "hematology": {"status": "one of: Safe | Caution | Danger", "detail": "string, at most 20 words"}
  },
  "charts": [{"chart_type": "line | bar", "title": "string", "marker": "optional string", "emphasis": "optional: latest | alert"}],
  "narratives": {
    "overview": "string, at most 120 words",
    "treatment": "string, at most 120 words",
    "genomics": "string, at most 80 words",
    "radiology": "string, at most 80 words",
    "surveillance": "string, at most 60 words"
  },
  "investigations": {
    "pathology_comparison_text": "string, at most 120 words",
    "pathology_deltas": [{"marker": "string", "old": "string", "new": "string", "trend": "one of: worsening | improving | stable | new"}],
    "labs_summary": "string, at most 60 words"
  }
}`

// BuildPrompt renders the model input for one patient: the full normalized
// record as JSON plus the fixed schema instruction.
func BuildPrompt(patient *domain.Patient) (string, error) {
	record, err := json.MarshalIndent(patient, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding patient record: %w", err)
	}

	return fmt.Sprintf(`Analyze the following oncology patient record and produce dashboard insights.

PATIENT RECORD (JSON):
%s

OUTPUT SCHEMA — respond with exactly one JSON object of this shape, no prose, no code fences:
%s

RULES:
1. A safety flag may only be Safe when the record explicitly documents normal function. Absent data is never Safe; describe it as not documented and choose Caution only when a documented finding warrants it.
2. For pathology_deltas, compare the newest report against the immediately previous one:
   - If the record holds two or more pathology reports, list each changed field as a delta (marker, old, new, trend), at most %d entries, ordered grade, tumor size, margins, invasion, nodal status, then IHC markers.
   - If exactly one report exists, pathology_deltas must be an empty list and pathology_comparison_text must summarize that single report only.
   - If no reports exist, pathology_deltas must be null and pathology_comparison_text must say no pathology is documented.
3. A numeric change of %.0f%% or less in either direction is stable, not a trend.
4. A field present now but absent previously, or absent now but present previously, takes trend "new" with the absent side written as "not documented".
5. Use only information present in the record.`, record, responseSchema, service.MaxDeltas, service.TrendThresholdPercent), nil
}
