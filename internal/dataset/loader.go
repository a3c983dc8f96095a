// Package dataset loads the flattened oncology CSV export and serves the
// assembled Patient records. There is no persistence: records are rebuilt
// fresh from the source on every load.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/onco-review-server/internal/domain"
	"github.com/onco-review-server/internal/service"
)

// Loader reads a UTF-8 CSV byte stream with a header row into Patient
// records. Blank rows are skipped; rows without a usable patient identifier
// are excluded from the loaded set; duplicated identifiers keep the first
// occurrence.
type Loader struct {
	log *logrus.Logger
}

// NewLoader creates a new CSV loader
func NewLoader(logger *logrus.Logger) *Loader {
	return &Loader{log: logger}
}

// Load reads every row from the source and assembles patients in source
// order. A malformed cell degrades within its row; only an unreadable
// stream or header fails the load.
func (l *Loader) Load(source io.Reader) ([]domain.Patient, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	patients := make([]domain.Patient, 0, 64)
	seen := make(map[string]struct{})
	rowNumber := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNumber++
		if err != nil {
			l.log.WithFields(logrus.Fields{
				"row":   rowNumber,
				"error": err,
			}).Warn("Skipping unreadable CSV row")
			continue
		}

		row := rowToRawRow(header, record)
		if service.IsBlankRow(row) {
			continue
		}

		patient := service.Assemble(row)
		if !patient.HasIdentifier() {
			l.log.WithField("row", rowNumber).Warn("Skipping row without a usable patient identifier")
			continue
		}
		if _, duplicate := seen[patient.PatientID]; duplicate {
			l.log.WithFields(logrus.Fields{
				"row":        rowNumber,
				"patient_id": patient.PatientID,
			}).Warn("Skipping duplicate patient identifier")
			continue
		}
		seen[patient.PatientID] = struct{}{}
		patients = append(patients, patient)
	}

	l.log.WithField("patients", len(patients)).Info("Loaded patient dataset")
	return patients, nil
}

// rowToRawRow zips header names with cells. Short rows leave trailing
// columns absent; extra cells beyond the header are dropped.
func rowToRawRow(header, record []string) domain.RawRow {
	row := make(domain.RawRow, len(header))
	for i, name := range header {
		if i < len(record) {
			row[name] = record[i]
		}
	}
	return row
}
