package dataset

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/onco-review-server/internal/domain"
)

// Store holds the loaded patient set in memory with O(1) lookup by id.
// Reload swaps the whole set atomically; individual records are immutable
// value objects for the lifetime of a load.
type Store struct {
	loader  *Loader
	csvPath string
	log     *logrus.Logger

	mu       sync.RWMutex
	patients []domain.Patient
	byID     map[string]int
}

// NewStore creates a patient store backed by the configured CSV path.
func NewStore(loader *Loader, csvPath string, logger *logrus.Logger) *Store {
	return &Store{
		loader:  loader,
		csvPath: csvPath,
		log:     logger,
		byID:    make(map[string]int),
	}
}

// Reload re-reads the CSV source and replaces the loaded set. The previous
// set stays served until the new one is ready.
func (s *Store) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(s.csvPath)
	if err != nil {
		return fmt.Errorf("opening dataset %s: %w", s.csvPath, err)
	}
	defer file.Close()

	patients, err := s.loader.Load(file)
	if err != nil {
		return fmt.Errorf("loading dataset %s: %w", s.csvPath, err)
	}

	byID := make(map[string]int, len(patients))
	for i, patient := range patients {
		byID[patient.PatientID] = i
	}

	s.mu.Lock()
	s.patients = patients
	s.byID = byID
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"path":     s.csvPath,
		"patients": len(patients),
	}).Info("Patient store reloaded")
	return nil
}

// LoadPatients returns the full loaded set in source order.
func (s *Store) LoadPatients() []domain.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Patient, len(s.patients))
	copy(out, s.patients)
	return out
}

// GetPatientByID returns the patient for the id, or domain.ErrNotFound.
func (s *Store) GetPatientByID(id string) (*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, domain.ErrNotFound)
	}
	patient := s.patients[index]
	return &patient, nil
}

// Len returns the number of loaded patients.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients)
}
