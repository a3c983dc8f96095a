package service

import (
	"strings"

	"github.com/onco-review-server/internal/domain"
)

// Patient record assembly. One raw CSV row becomes one Patient; the function
// is pure and total. Historical exports renamed several headers over time,
// so every semantic field resolves through an explicit alias table evaluated
// in fixed priority order: canonical name first, then each alias; the first
// non-empty cell wins. This replaces the original's ad-hoc duck-typed column
// access with a single tagged lookup.

// fieldAliases maps each canonical header to its known historical spellings,
// in resolution priority order.
var fieldAliases = map[string][]string{
	"Patient ID":         {"PatientID", "MRN", "Record ID"},
	"Name":               {"Patient Name", "Full Name"},
	"Age":                {"Age (years)"},
	"Sex":                {"Gender"},
	"Primary Diagnosis":  {"Diagnosis", "Primary Dx"},
	"Histologic Type":    {"Histology", "Histological Type"},
	"TNM Clinical":       {"Clinical TNM", "cTNM"},
	"TNM Pathological":   {"Pathological TNM", "pTNM"},
	"Stage Group":        {"Stage", "Overall Stage"},
	"Recurrence Status":  {"Recurrence", "Disease Status"},
	"Performance Status": {"ECOG/KPS", "ECOG", "KPS"},
	"BSA":                {"Body Surface Area (BSA)", "Body Surface Area"},
	"Comorbidities":      {"Comorbid Conditions", "Past Medical History"},
	"Driver Mutation":    {"Driver Alteration", "Oncogenic Driver"},
	"EGFR Mutation":      {"EGFR", "EGFR Status"},
	"ALK Rearrangement":  {"ALK", "ALK Status"},
	"PD-L1 %":            {"PD-L1", "PD-L1 Expression", "PDL1 TPS"},
	"TMB":                {"Tumor Mutational Burden", "TMB (mut/Mb)"},
	"MSI Status":         {"MSI", "Microsatellite Status"},
	"Genomics Comment":   {"Molecular Comment", "Genomics Notes"},
	"Renal Dysfunction":  {"Renal Impairment", "CKD Flag"},
	"Liver Dysfunction":  {"Hepatic Impairment", "Liver Impairment"},
	"Myelosuppression":   {"Cytopenia", "Marrow Suppression"},
	"Measurable Disease": {"RECIST Measurable", "Measurable Lesions"},
	"Prior Systemic Tx":  {"Prior Therapy", "Previously Treated"},
	"Trial Candidate":    {"Clinical Trial Candidate", "Trial Eligible"},
	"Treatments_JSON":    {"Treatment Timeline_JSON", "TreatmentHistory_JSON"},
	"TumorSizes_JSON":    {"Tumor Size Trend_JSON", "TumorTrend_JSON"},
	"Biomarkers_JSON":    {"Biomarker Trend_JSON", "BiomarkerTrend_JSON"},
	"Pathology_JSON":     {"Pathology Reports_JSON", "PathologyDocs_JSON"},
	"Radiology_JSON":     {"Radiology Reports_JSON", "RadiologyDocs_JSON"},
	"Genomics_JSON":      {"Genomic Reports_JSON", "GenomicsDocs_JSON"},
	"Notes_JSON":         {"Clinical Notes_JSON", "NotesDocs_JSON"},
}

// resolveCell returns the first non-empty cell for the canonical header or
// any of its aliases.
func resolveCell(row domain.RawRow, canonical string) string {
	if value := strings.TrimSpace(row[canonical]); value != "" {
		return value
	}
	for _, alias := range fieldAliases[canonical] {
		if value := strings.TrimSpace(row[alias]); value != "" {
			return value
		}
	}
	return ""
}

// Assemble composes one canonical Patient from one raw CSV row. Every
// declared Patient field is assigned; scalar fields degrade to nil and
// collection fields degrade to empty slices, never aborting the row.
func Assemble(row domain.RawRow) domain.Patient {
	return domain.Patient{
		PatientID: strings.TrimSpace(resolveCell(row, "Patient ID")),
		Name:      NormalizeString(resolveCell(row, "Name")),
		Age:       NormalizeInt(resolveCell(row, "Age")),
		Sex:       NormalizeString(resolveCell(row, "Sex")),

		PrimaryDiagnosis: NormalizeString(resolveCell(row, "Primary Diagnosis")),
		HistologicType:   NormalizeString(resolveCell(row, "Histologic Type")),
		TNMStageClinical: NormalizeString(resolveCell(row, "TNM Clinical")),
		TNMStagePath:     NormalizeString(resolveCell(row, "TNM Pathological")),
		StageGroup:       NormalizeString(resolveCell(row, "Stage Group")),
		RecurrenceStatus: NormalizeString(resolveCell(row, "Recurrence Status")),

		PerformanceStatus: NormalizeString(resolveCell(row, "Performance Status")),
		BodySurfaceArea:   NormalizeNumber(resolveCell(row, "BSA")),
		Comorbidities:     NormalizeString(resolveCell(row, "Comorbidities")),

		DriverMutation:  NormalizeString(resolveCell(row, "Driver Mutation")),
		EGFRMutation:    NormalizeBool(resolveCell(row, "EGFR Mutation")),
		ALKRearranged:   NormalizeBool(resolveCell(row, "ALK Rearrangement")),
		PDL1Percent:     NormalizePercent(resolveCell(row, "PD-L1 %")),
		TMB:             NormalizeNumber(resolveCell(row, "TMB")),
		MSIStatus:       NormalizeString(resolveCell(row, "MSI Status")),
		GenomicsComment: NormalizeString(resolveCell(row, "Genomics Comment")),

		RenalDysfunction:   NormalizeBool(resolveCell(row, "Renal Dysfunction")),
		LiverDysfunction:   NormalizeBool(resolveCell(row, "Liver Dysfunction")),
		Myelosuppression:   NormalizeBool(resolveCell(row, "Myelosuppression")),
		MeasurableDisease:  NormalizeBool(resolveCell(row, "Measurable Disease")),
		PriorSystemicTx:    NormalizeBool(resolveCell(row, "Prior Systemic Tx")),
		ClinicalTrialReady: NormalizeBool(resolveCell(row, "Trial Candidate")),

		Treatments: ParseTreatmentEvents(resolveCell(row, "Treatments_JSON")),
		TumorSizes: ParseTumorSizePoints(resolveCell(row, "TumorSizes_JSON")),
		Biomarkers: ParseBiomarkerPoints(resolveCell(row, "Biomarkers_JSON")),
		Pathology:  ParsePathologyDetails(resolveCell(row, "Pathology_JSON")),
		Radiology:  ParseRadiologyDocuments(resolveCell(row, "Radiology_JSON")),
		Genomics:   ParseDocumentLinks(resolveCell(row, "Genomics_JSON")),
		Notes:      ParseDocumentLinks(resolveCell(row, "Notes_JSON")),
	}
}

// IsBlankRow reports whether every cell in the row is empty after trimming.
// Blank rows are skipped during load.
func IsBlankRow(row domain.RawRow) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
