package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-review-server/internal/domain"
)

func TestComparePathologyReportsNoReports(t *testing.T) {
	result := ComparePathologyReports(nil)

	assert.Nil(t, result.Deltas)
	assert.Contains(t, result.Narrative, "No structured pathology reports")
}

func TestComparePathologyReportsSingleReport(t *testing.T) {
	result := ComparePathologyReports([]domain.PathologyDetail{
		{
			Date: "2023-01-01",
			Site: "left breast",
			Histology: domain.HistologyFindings{
				Diagnosis: "Invasive ductal carcinoma",
				Grade:     "2",
				Margins:   "negative",
			},
		},
	})

	require.NotNil(t, result.Deltas)
	assert.Empty(t, result.Deltas, "one report yields an empty delta list, not nil")
	assert.Contains(t, result.Narrative, "single pathology report")
	assert.Contains(t, result.Narrative, "2023-01-01")
	assert.Contains(t, result.Narrative, "Invasive ductal carcinoma")
	assert.Contains(t, result.Narrative, "No prior report")
}

func TestComparePathologyReportsLatestVersusPrevious(t *testing.T) {
	reports := []domain.PathologyDetail{
		{
			Date: "2023-06-01",
			Histology: domain.HistologyFindings{
				Grade:   "3",
				Margins: "positive",
			},
		},
		{
			Date: "2023-01-01",
			Histology: domain.HistologyFindings{
				Grade:   "2",
				Margins: "negative",
			},
		},
	}

	result := ComparePathologyReports(reports)

	require.Len(t, result.Deltas, 2)

	assert.Equal(t, "Grade", result.Deltas[0].Marker)
	assert.Equal(t, "2", result.Deltas[0].Old)
	assert.Equal(t, "3", result.Deltas[0].New)
	assert.Equal(t, domain.TrendWorsening, result.Deltas[0].Trend)

	assert.Equal(t, "Margins", result.Deltas[1].Marker)
	assert.Equal(t, domain.TrendWorsening, result.Deltas[1].Trend)

	assert.Contains(t, result.Narrative, "2023-06-01")
	assert.Contains(t, result.Narrative, "2023-01-01")
	assert.Contains(t, result.Narrative, "Grade")
	assert.Contains(t, result.Narrative, "Margins")
	assert.Contains(t, result.Narrative, "2 of 2 changes classify as worsening")
}

func TestComparePathologyReportsIgnoresOlderHistory(t *testing.T) {
	// Only the two newest reports participate; the oldest one must not
	// influence the deltas.
	reports := []domain.PathologyDetail{
		{Date: "2023-06-01", Histology: domain.HistologyFindings{Grade: "2"}},
		{Date: "2023-01-01", Histology: domain.HistologyFindings{Grade: "2"}},
		{Date: "2021-01-01", Histology: domain.HistologyFindings{Grade: "1"}},
	}

	result := ComparePathologyReports(reports)
	assert.Empty(t, result.Deltas)
	assert.Contains(t, result.Narrative, "No significant change")
}

func TestComparePathologyReportsMarginResolutionImproves(t *testing.T) {
	reports := []domain.PathologyDetail{
		{Date: "2023-06-01", Histology: domain.HistologyFindings{Margins: "negative"}},
		{Date: "2023-01-01", Histology: domain.HistologyFindings{Margins: "positive"}},
	}

	result := ComparePathologyReports(reports)
	require.Len(t, result.Deltas, 1)
	assert.Equal(t, "Margins", result.Deltas[0].Marker)
	assert.Equal(t, domain.TrendImproving, result.Deltas[0].Trend)
}

func TestComparePathologyReportsIHCSubCap(t *testing.T) {
	reports := []domain.PathologyDetail{
		{
			Date: "2023-06-01",
			IHC:  map[string]string{"ER": "positive", "HER2": "positive", "Ki-67": "40%", "PR": "negative"},
		},
		{
			Date: "2023-01-01",
			IHC:  map[string]string{"ER": "negative", "HER2": "negative", "Ki-67": "10%", "PR": "positive"},
		},
	}

	result := ComparePathologyReports(reports)

	// All histology fields match (both empty); only IHC contributes, capped
	// at its sub-cap and walked in sorted marker order.
	require.Len(t, result.Deltas, ihcSubCap)
	assert.Equal(t, "ER", result.Deltas[0].Marker)
	assert.Equal(t, domain.TrendWorsening, result.Deltas[0].Trend)
	assert.Equal(t, "HER2", result.Deltas[1].Marker)
}

func TestComparePathologyReportsIHCMarkerAppears(t *testing.T) {
	reports := []domain.PathologyDetail{
		{Date: "2023-06-01", IHC: map[string]string{"PD-L1": "CPS 20"}},
		{Date: "2023-01-01", IHC: map[string]string{}},
	}

	result := ComparePathologyReports(reports)
	require.Len(t, result.Deltas, 1)
	assert.Equal(t, "PD-L1", result.Deltas[0].Marker)
	assert.Equal(t, NotDocumented, result.Deltas[0].Old)
	assert.Equal(t, "CPS 20", result.Deltas[0].New)
	assert.Equal(t, domain.TrendNew, result.Deltas[0].Trend)
}

func TestComparePathologyReportsTotalCapHolds(t *testing.T) {
	reports := []domain.PathologyDetail{
		{
			Date: "2023-06-01",
			Histology: domain.HistologyFindings{
				Grade:             "3",
				TumorSize:         "4.5 cm",
				Margins:           "positive",
				LymphovascularInv: "present",
				PerineuralInv:     "present",
				NodalStatus:       "3/12 positive",
			},
			IHC: map[string]string{"ER": "positive", "HER2": "positive"},
		},
		{
			Date: "2023-01-01",
			Histology: domain.HistologyFindings{
				Grade:             "2",
				TumorSize:         "2.0 cm",
				Margins:           "negative",
				LymphovascularInv: "absent",
				PerineuralInv:     "absent",
				NodalStatus:       "0/10 positive",
			},
			IHC: map[string]string{"ER": "negative", "HER2": "negative"},
		},
	}

	result := ComparePathologyReports(reports)

	assert.Len(t, result.Deltas, MaxDeltas)
	// Histology fields outrank IHC markers under the cap.
	assert.Equal(t, "Grade", result.Deltas[0].Marker)
	assert.Equal(t, "Tumor Size", result.Deltas[1].Marker)
}
