package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/onco-review-server/internal/domain"
)

// Strict response parsing. The model reply must be one JSON object carrying
// every required top-level key with enumerated values inside their allowed
// sets; anything less is rejected so the caller falls back to deterministic
// analysis rather than displaying partial structured output. Unknown extra
// fields are ignored.

var requiredKeys = []string{"sidebar_summary", "safety_flags", "narratives", "investigations"}

// ParseResponse validates and decodes a raw model reply into a
// MasterAIResponse. PatientID, Source and GeneratedAt are left for the
// service layer to stamp.
func ParseResponse(raw string) (*domain.MasterAIResponse, error) {
	clean := stripCodeFences(raw)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &keys); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("missing required key %q", key)
		}
	}

	var response domain.MasterAIResponse
	if err := json.Unmarshal([]byte(clean), &response); err != nil {
		return nil, fmt.Errorf("schema mismatch: %w", err)
	}

	if err := validateEnums(&response); err != nil {
		return nil, err
	}
	return &response, nil
}

// validateEnums rejects values outside the enumerated sets. Priority is
// left to the service layer to default; trend and status values reach
// clinical display directly and are checked here.
func validateEnums(response *domain.MasterAIResponse) error {
	for _, flag := range []struct {
		name string
		flag domain.SafetyFlag
	}{
		{"renal", response.SafetyFlags.Renal},
		{"liver", response.SafetyFlags.Liver},
		{"hematology", response.SafetyFlags.Hematology},
	} {
		if !flag.flag.Status.IsModelAssignable() {
			return fmt.Errorf("safety flag %s has invalid status %q", flag.name, flag.flag.Status)
		}
	}
	for _, delta := range response.Investigations.PathologyDeltas {
		if !delta.Trend.IsValid() {
			return fmt.Errorf("pathology delta %s has invalid trend %q", delta.Marker, delta.Trend)
		}
	}
	return nil
}

// stripCodeFences removes a markdown code fence if the model wrapped its
// JSON in one despite the instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
