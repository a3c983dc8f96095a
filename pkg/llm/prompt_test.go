package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-review-server/internal/domain"
)

func TestBuildPrompt(t *testing.T) {
	age := 64
	diagnosis := "NSCLC"
	patient := &domain.Patient{
		PatientID:        "PT-400",
		Age:              &age,
		PrimaryDiagnosis: &diagnosis,
		Pathology: []domain.PathologyDetail{
			{Date: "2023-06-01", Histology: domain.HistologyFindings{Grade: "3"}},
		},
	}

	prompt, err := BuildPrompt(patient)
	require.NoError(t, err)

	// The full record rides along as JSON.
	assert.Contains(t, prompt, `"patient_id": "PT-400"`)
	assert.Contains(t, prompt, `"primary_diagnosis": "NSCLC"`)
	assert.Contains(t, prompt, `"grade": "3"`)

	// The schema and the shared constants are spelled out.
	assert.Contains(t, prompt, `"sidebar_summary"`)
	assert.Contains(t, prompt, "one of: Safe | Caution | Danger")
	assert.Contains(t, prompt, "worsening | improving | stable | new")
	assert.Contains(t, prompt, "at most 5 entries")
	assert.Contains(t, prompt, "20% or less in either direction is stable")

	// The three pathology scenario branches are all stated.
	assert.Contains(t, prompt, "two or more pathology reports")
	assert.Contains(t, prompt, "exactly one report exists")
	assert.Contains(t, prompt, "no reports exist")

	// Absent data rules.
	assert.Contains(t, prompt, "Absent data is never Safe")
	assert.Contains(t, prompt, `"not documented"`)
}

func TestBuildPromptNilFieldsSerializeAsNull(t *testing.T) {
	prompt, err := BuildPrompt(&domain.Patient{PatientID: "PT-401"})
	require.NoError(t, err)
	assert.Contains(t, prompt, `"age": null`)
	assert.Contains(t, prompt, `"egfr_mutation": null`)
}
