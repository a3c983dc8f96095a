package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onco-review-server/internal/domain"
	"github.com/onco-review-server/internal/service"
)

// PatientListing is the compact row the patient roster endpoint returns.
type PatientListing struct {
	PatientID         string `json:"patient_id"`
	Name              string `json:"name"`
	PrimaryDiagnosis  string `json:"primary_diagnosis"`
	Stage             string `json:"stage"`
	RecurrenceStatus  string `json:"recurrence_status"`
	PerformanceStatus string `json:"performance_status"`
}

// comparePathologyRequest is the body of the standalone comparison endpoint.
type comparePathologyRequest struct {
	Reports []domain.PathologyDetail `json:"reports" binding:"required"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"patients":  len(s.store.LoadPatients()),
		"version":   "1.0.0",
	})
}

// handleListPatients returns the compact roster of all loaded patients.
func (s *Server) handleListPatients(c *gin.Context) {
	patients := s.store.LoadPatients()
	listings := make([]PatientListing, 0, len(patients))
	for i := range patients {
		p := &patients[i]
		listings = append(listings, PatientListing{
			PatientID:         p.PatientID,
			Name:              derefOr(p.Name, ""),
			PrimaryDiagnosis:  service.ResolveDiagnosisText(p),
			Stage:             service.ResolveStageText(p),
			RecurrenceStatus:  derefOr(p.RecurrenceStatus, ""),
			PerformanceStatus: derefOr(p.PerformanceStatus, ""),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"patients": listings,
		"count":    len(listings),
	})
}

// handleGetPatient returns the full assembled record for one patient.
func (s *Server) handleGetPatient(c *gin.Context) {
	patient, ok := s.lookupPatient(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, patient)
}

// handleGetInsights returns the structured insight object for one patient,
// degrading to the deterministic path when the model is unavailable.
func (s *Server) handleGetInsights(c *gin.Context) {
	patient, ok := s.lookupPatient(c)
	if !ok {
		return
	}

	insights, err := s.insights.GetInsights(c.Request.Context(), patient)
	if err != nil {
		s.logger.WithError(err).WithField("patient_id", patient.PatientID).Error("Insight generation failed")
		s.writeError(c, http.StatusInternalServerError, domain.ErrExternalModel, "failed to generate insights", err.Error())
		return
	}
	c.JSON(http.StatusOK, insights)
}

// handleGetSummary returns the clinician-facing summary for one patient.
func (s *Server) handleGetSummary(c *gin.Context) {
	patient, ok := s.lookupPatient(c)
	if !ok {
		return
	}

	insights, err := s.insights.GetInsights(c.Request.Context(), patient)
	if err != nil {
		s.logger.WithError(err).WithField("patient_id", patient.PatientID).Error("Insight generation failed")
		s.writeError(c, http.StatusInternalServerError, domain.ErrExternalModel, "failed to generate insights", err.Error())
		return
	}
	c.JSON(http.StatusOK, service.BuildClinicalSummary(patient, insights))
}

// handleComparePathology compares an ad-hoc list of pathology reports without
// loading a patient. Reports may arrive in any order.
func (s *Server) handleComparePathology(c *gin.Context) {
	var req comparePathologyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request body", err.Error())
		return
	}

	sorted := service.SortByDateDesc(req.Reports, func(r domain.PathologyDetail) string { return r.Date })
	c.JSON(http.StatusOK, service.ComparePathologyReports(sorted))
}

// handleReload re-reads the CSV source and atomically swaps the patient set.
func (s *Server) handleReload(c *gin.Context) {
	if err := s.store.Reload(c.Request.Context()); err != nil {
		s.logger.WithError(err).Error("Patient dataset reload failed")
		s.writeError(c, http.StatusInternalServerError, domain.ErrSourceData, "failed to reload patient dataset", err.Error())
		return
	}

	count := len(s.store.LoadPatients())
	s.logger.WithField("patients", count).Info("Patient dataset reloaded")
	c.JSON(http.StatusOK, gin.H{
		"status":   "reloaded",
		"patients": count,
	})
}

// lookupPatient resolves the :id path parameter, writing the error response
// itself when the patient cannot be served.
func (s *Server) lookupPatient(c *gin.Context) (*domain.Patient, bool) {
	id := c.Param("id")
	if id == "" {
		s.writeError(c, http.StatusBadRequest, domain.ErrInvalidInput, "patient id is required", "")
		return nil, false
	}

	patient, err := s.store.GetPatientByID(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(c, http.StatusNotFound, domain.ErrInvalidInput, "patient not found", id)
			return nil, false
		}
		s.logger.WithError(err).WithField("patient_id", id).Error("Patient lookup failed")
		s.writeError(c, http.StatusInternalServerError, domain.ErrInternalServer, "failed to load patient", err.Error())
		return nil, false
	}
	return patient, true
}

func (s *Server) writeError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, domain.NewServiceError(code, message, details, c.GetString("correlation_id")))
}

func derefOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
