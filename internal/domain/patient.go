package domain

// RawRow is one CSV row as read from the source export: a header-name to
// cell-text mapping. Cell values are raw and untrimmed; `_JSON` suffixed
// columns hold stringified JSON arrays of sub-records.
type RawRow map[string]string

// Patient is the root aggregate: one instance per unique patient identifier,
// rebuilt fresh from the CSV source on every load. Scalar clinical fields are
// pointers so that "not documented" (nil) stays distinct from an empty but
// present value. Every field is assigned during assembly; consumers never
// need existence checks.
type Patient struct {
	PatientID string  `json:"patient_id"`
	Name      *string `json:"name"`
	Age       *int    `json:"age"`
	Sex       *string `json:"sex"`

	// Diagnostic fields
	PrimaryDiagnosis *string `json:"primary_diagnosis"`
	HistologicType   *string `json:"histologic_type"`
	TNMStageClinical *string `json:"tnm_stage_clinical"`
	TNMStagePath     *string `json:"tnm_stage_pathological"`
	StageGroup       *string `json:"stage_group"`
	RecurrenceStatus *string `json:"recurrence_status"`

	// Functional status and body metrics
	PerformanceStatus *string  `json:"performance_status"`
	BodySurfaceArea   *float64 `json:"body_surface_area"`
	Comorbidities     *string  `json:"comorbidities"`

	// Molecular profile
	DriverMutation  *string  `json:"driver_mutation"`
	EGFRMutation    *bool    `json:"egfr_mutation"`
	ALKRearranged   *bool    `json:"alk_rearranged"`
	PDL1Percent     *float64 `json:"pdl1_percent"`
	TMB             *float64 `json:"tmb"`
	MSIStatus       *string  `json:"msi_status"`
	GenomicsComment *string  `json:"genomics_comment"`

	// Lab flags
	RenalDysfunction   *bool `json:"renal_dysfunction"`
	LiverDysfunction   *bool `json:"liver_dysfunction"`
	Myelosuppression   *bool `json:"myelosuppression"`
	MeasurableDisease  *bool `json:"measurable_disease"`
	PriorSystemicTx    *bool `json:"prior_systemic_therapy"`
	ClinicalTrialReady *bool `json:"clinical_trial_candidate"`

	// Longitudinal sequences, ordered as they appear in the source. Callers
	// that need latest-vs-previous comparison must sort newest-first via the
	// comparator's sort helpers.
	Treatments []TreatmentEvent    `json:"treatments"`
	TumorSizes []TumorSizePoint    `json:"tumor_sizes"`
	Biomarkers []BiomarkerPoint    `json:"biomarkers"`
	Pathology  []PathologyDetail   `json:"pathology_reports"`
	Radiology  []RadiologyDocument `json:"radiology_documents"`
	Genomics   []DocumentLink      `json:"genomic_documents"`
	Notes      []DocumentLink      `json:"clinical_notes"`
}

// TreatmentEvent is one line of the treatment timeline.
type TreatmentEvent struct {
	Regimen       string   `json:"regimen"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	Response      string   `json:"response"` // RECIST category or free text
	ReasonStopped string   `json:"reason_stopped"`
	Toxicities    []string `json:"toxicities"`
}

// TumorSizePoint is one timestamped tumor measurement in millimeters.
type TumorSizePoint struct {
	Date   string  `json:"date"`
	SizeMM float64 `json:"size_mm"`
}

// BiomarkerPoint is one timestamped biomarker measurement.
type BiomarkerPoint struct {
	Date   string  `json:"date"`
	Marker string  `json:"marker"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
}

// PathologyDetail is one structured pathology report.
type PathologyDetail struct {
	Date      string            `json:"date"`
	Procedure string            `json:"procedure"`
	Site      string            `json:"site"`
	Histology HistologyFindings `json:"histology"`
	IHC       map[string]string `json:"ihc"`
	Summary   string            `json:"summary"`
}

// HistologyFindings is the histology sub-object of a pathology report.
type HistologyFindings struct {
	Diagnosis         string `json:"diagnosis"`
	Grade             string `json:"grade"`
	TumorSize         string `json:"tumor_size"`
	Margins           string `json:"margins"`
	LymphovascularInv string `json:"lymphovascular_invasion"`
	PerineuralInv     string `json:"perineural_invasion"`
	NodalStatus       string `json:"nodal_status"`
}

// RadiologyDocument is one imaging study reference with its narrative.
type RadiologyDocument struct {
	Date     string `json:"date"`
	Modality string `json:"modality"`
	Region   string `json:"region"`
	Summary  string `json:"summary"`
	Link     string `json:"link"`
}

// DocumentLink is an external document reference (genomic report, note).
type DocumentLink struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
}

// HasIdentifier reports whether the row carries a usable patient identifier.
// Rows without one cannot be addressed and are excluded from the loaded set.
func (p *Patient) HasIdentifier() bool {
	return p != nil && p.PatientID != ""
}
