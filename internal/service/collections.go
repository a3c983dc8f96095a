package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/onco-review-server/internal/domain"
)

// Embedded-collection parsing. Designated CSV columns (named with a `_JSON`
// suffix) hold stringified JSON arrays of sub-records. Malformed JSON, or a
// payload that is not an array, degrades to an empty slice; a parse failure
// in one column never aborts the row.
//
// Each element is decoded through a loose intermediate form first so that a
// field of a foreign type (a number where a string belongs, an object where
// a list belongs) is dropped rather than included verbatim.

// parseRawArray decodes the column into loose per-element maps. Returns nil
// on any malformation.
func parseRawArray(raw string) []map[string]json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	var elements []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &elements); err != nil {
		return nil
	}
	return elements
}

// fieldString decodes a single element field as a string, tolerating bare
// numbers (a size recorded as 14 instead of "14"). Foreign types yield "".
func fieldString(element map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		rawValue, ok := element[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(rawValue, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var n float64
		if err := json.Unmarshal(rawValue, &n); err == nil {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	return ""
}

// fieldNumber decodes a single element field as a number, tolerating numeric
// strings ("14.2"). Foreign types yield 0 with ok=false.
func fieldNumber(element map[string]json.RawMessage, keys ...string) (float64, bool) {
	for _, key := range keys {
		rawValue, ok := element[key]
		if !ok {
			continue
		}
		var n float64
		if err := json.Unmarshal(rawValue, &n); err == nil {
			return n, true
		}
		var s string
		if err := json.Unmarshal(rawValue, &s); err == nil {
			if parsed := NormalizeNumber(s); parsed != nil {
				return *parsed, true
			}
		}
	}
	return 0, false
}

// fieldStringSlice decodes a field holding a list of strings. Elements of
// foreign types are skipped.
func fieldStringSlice(element map[string]json.RawMessage, keys ...string) []string {
	for _, key := range keys {
		rawValue, ok := element[key]
		if !ok {
			continue
		}
		var loose []json.RawMessage
		if err := json.Unmarshal(rawValue, &loose); err != nil {
			continue
		}
		out := make([]string, 0, len(loose))
		for _, item := range loose {
			var s string
			if err := json.Unmarshal(item, &s); err == nil && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// fieldStringMap decodes a field holding a string-to-string map (IHC panel).
// Values of foreign types are skipped.
func fieldStringMap(element map[string]json.RawMessage, keys ...string) map[string]string {
	for _, key := range keys {
		rawValue, ok := element[key]
		if !ok {
			continue
		}
		var loose map[string]json.RawMessage
		if err := json.Unmarshal(rawValue, &loose); err != nil {
			continue
		}
		out := make(map[string]string, len(loose))
		for k, item := range loose {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				out[k] = strings.TrimSpace(s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// ParseTreatmentEvents parses the treatment timeline column.
func ParseTreatmentEvents(raw string) []domain.TreatmentEvent {
	elements := parseRawArray(raw)
	events := make([]domain.TreatmentEvent, 0, len(elements))
	for _, element := range elements {
		events = append(events, domain.TreatmentEvent{
			Regimen:       fieldString(element, "regimen", "treatment", "name"),
			StartDate:     fieldString(element, "start_date", "startDate", "start"),
			EndDate:       fieldString(element, "end_date", "endDate", "end"),
			Response:      fieldString(element, "response", "best_response"),
			ReasonStopped: fieldString(element, "reason_stopped", "reasonStopped", "discontinuation_reason"),
			Toxicities:    fieldStringSlice(element, "toxicities", "adverse_events"),
		})
	}
	return events
}

// ParseTumorSizePoints parses the tumor-size trend column. Points without a
// usable measurement are dropped.
func ParseTumorSizePoints(raw string) []domain.TumorSizePoint {
	elements := parseRawArray(raw)
	points := make([]domain.TumorSizePoint, 0, len(elements))
	for _, element := range elements {
		size, ok := fieldNumber(element, "size_mm", "size", "measurement")
		if !ok {
			continue
		}
		points = append(points, domain.TumorSizePoint{
			Date:   fieldString(element, "date", "scan_date"),
			SizeMM: size,
		})
	}
	return points
}

// ParseBiomarkerPoints parses the biomarker trend column. Points without a
// usable value are dropped.
func ParseBiomarkerPoints(raw string) []domain.BiomarkerPoint {
	elements := parseRawArray(raw)
	points := make([]domain.BiomarkerPoint, 0, len(elements))
	for _, element := range elements {
		value, ok := fieldNumber(element, "value", "result")
		if !ok {
			continue
		}
		points = append(points, domain.BiomarkerPoint{
			Date:   fieldString(element, "date", "collected"),
			Marker: fieldString(element, "marker", "name", "test"),
			Value:  value,
			Unit:   fieldString(element, "unit", "units"),
		})
	}
	return points
}

// ParsePathologyDetails parses the pathology documents column, including the
// nested histology sub-object and the IHC marker map.
func ParsePathologyDetails(raw string) []domain.PathologyDetail {
	elements := parseRawArray(raw)
	reports := make([]domain.PathologyDetail, 0, len(elements))
	for _, element := range elements {
		report := domain.PathologyDetail{
			Date:      fieldString(element, "date", "report_date"),
			Procedure: fieldString(element, "procedure", "specimen"),
			Site:      fieldString(element, "site", "location"),
			IHC:       fieldStringMap(element, "ihc", "ihc_markers", "immunohistochemistry"),
			Summary:   fieldString(element, "summary", "impression"),
		}
		if rawHistology, ok := element["histology"]; ok {
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(rawHistology, &nested); err == nil {
				report.Histology = domain.HistologyFindings{
					Diagnosis:         fieldString(nested, "diagnosis"),
					Grade:             fieldString(nested, "grade"),
					TumorSize:         fieldString(nested, "tumor_size", "size"),
					Margins:           fieldString(nested, "margins", "margin_status"),
					LymphovascularInv: fieldString(nested, "lymphovascular_invasion", "lvi"),
					PerineuralInv:     fieldString(nested, "perineural_invasion", "pni"),
					NodalStatus:       fieldString(nested, "nodal_status", "nodes"),
				}
			}
		}
		reports = append(reports, report)
	}
	return reports
}

// ParseRadiologyDocuments parses the radiology documents column.
func ParseRadiologyDocuments(raw string) []domain.RadiologyDocument {
	elements := parseRawArray(raw)
	docs := make([]domain.RadiologyDocument, 0, len(elements))
	for _, element := range elements {
		docs = append(docs, domain.RadiologyDocument{
			Date:     fieldString(element, "date", "study_date"),
			Modality: fieldString(element, "modality", "type"),
			Region:   fieldString(element, "region", "body_part"),
			Summary:  fieldString(element, "summary", "impression"),
			Link:     fieldString(element, "link", "url"),
		})
	}
	return docs
}

// ParseDocumentLinks parses a generic documents column (genomic reports,
// clinical notes).
func ParseDocumentLinks(raw string) []domain.DocumentLink {
	elements := parseRawArray(raw)
	docs := make([]domain.DocumentLink, 0, len(elements))
	for _, element := range elements {
		docs = append(docs, domain.DocumentLink{
			Date:    fieldString(element, "date"),
			Title:   fieldString(element, "title", "name"),
			Summary: fieldString(element, "summary", "description"),
			Link:    fieldString(element, "link", "url"),
		})
	}
	return docs
}
