package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/onco-review-server/internal/domain"
)

// Insight reconciliation. The external model is asked first; its structured
// response is validated and repaired against the expected shape, and the
// deterministic local derivation backs every failure mode: transport error,
// timeout, malformed JSON, schema violation, open circuit. The UI always
// gets a complete MasterAIResponse; only its Source differs.
//
// Results are memoized per patient id behind the injected cache. Concurrent
// callers for the same id share one in-flight generation; only model-backed
// responses are stored, so a deterministic fallback never pins the cache and
// the next request retries the model.

// InsightModel is the external capability that turns a patient record into
// a structured insight response. Implementations return an error for any
// transport or contract failure; partial output is not trusted.
type InsightModel interface {
	GenerateInsights(ctx context.Context, patient *domain.Patient) (*domain.MasterAIResponse, error)
}

// InsightService reconciles model output with local derivation.
type InsightService struct {
	model   InsightModel
	cache   domain.InsightCache
	timeout time.Duration
	logger  *logrus.Logger
	group   singleflight.Group
}

// NewInsightService creates an insight service. A nil model is allowed and
// routes every request straight to the deterministic path.
func NewInsightService(model InsightModel, cache domain.InsightCache, timeout time.Duration, logger *logrus.Logger) *InsightService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InsightService{
		model:   model,
		cache:   cache,
		timeout: timeout,
		logger:  logger,
	}
}

// GetInsights returns the insight response for the patient. It never fails:
// any model-path error degrades to the deterministic fallback.
func (s *InsightService) GetInsights(ctx context.Context, patient *domain.Patient) (*domain.MasterAIResponse, error) {
	if patient == nil {
		return nil, domain.NewValidationError("patient", "patient must not be nil", nil)
	}

	if cached, ok := s.cache.Get(ctx, patient.PatientID); ok {
		s.logger.WithField("patient_id", patient.PatientID).Debug("Insight cache hit")
		return cached, nil
	}

	result, err, shared := s.group.Do(patient.PatientID, func() (interface{}, error) {
		// A concurrent caller may have populated the cache while this call
		// waited on the flight group.
		if cached, ok := s.cache.Get(ctx, patient.PatientID); ok {
			return cached, nil
		}
		return s.generate(ctx, patient), nil
	})
	if err != nil {
		// The flight function never returns an error; keep the fallback
		// total anyway.
		s.logger.WithError(err).WithField("patient_id", patient.PatientID).Warn("Insight flight failed, using deterministic analysis")
		return BuildFallbackInsights(patient), nil
	}
	if shared {
		s.logger.WithField("patient_id", patient.PatientID).Debug("Insight request coalesced with in-flight call")
	}
	return result.(*domain.MasterAIResponse), nil
}

// generate runs the model path with a bounded timeout and reconciles the
// outcome. A cancelled call's late result is discarded with its context.
func (s *InsightService) generate(ctx context.Context, patient *domain.Patient) *domain.MasterAIResponse {
	if s.model == nil {
		return BuildFallbackInsights(patient)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	response, err := s.model.GenerateInsights(callCtx, patient)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"patient_id": patient.PatientID,
			"elapsed":    time.Since(start).String(),
		}).Warn("Model insight generation failed, using deterministic analysis")
		return BuildFallbackInsights(patient)
	}

	repaired := s.repair(patient, response)
	s.cache.Set(ctx, patient.PatientID, repaired)

	s.logger.WithFields(logrus.Fields{
		"patient_id": patient.PatientID,
		"elapsed":    time.Since(start).String(),
	}).Info("Model insight generation succeeded")
	return repaired
}

// repair backfills missing optional sub-fields from the local derivation and
// enforces the pathology-delta shape invariant against the actual report
// count. Required-key violations were already rejected by the model client.
func (s *InsightService) repair(patient *domain.Patient, response *domain.MasterAIResponse) *domain.MasterAIResponse {
	response.PatientID = patient.PatientID
	response.Source = domain.SourceModel
	if response.GeneratedAt.IsZero() {
		response.GeneratedAt = time.Now().UTC()
	}

	if response.Investigations.LabsSummary == "" {
		response.Investigations.LabsSummary = LabsSummaryLine(BiomarkerSeriesSummaries(patient.Biomarkers))
	}

	switch len(patient.Pathology) {
	case 0:
		response.Investigations.PathologyDeltas = nil
	case 1:
		response.Investigations.PathologyDeltas = []domain.Delta{}
	default:
		if len(response.Investigations.PathologyDeltas) > MaxDeltas {
			response.Investigations.PathologyDeltas = response.Investigations.PathologyDeltas[:MaxDeltas]
		}
	}
	if response.Investigations.PathologyComparisonText == "" {
		sorted := SortByDateDesc(patient.Pathology, func(r domain.PathologyDetail) string { return r.Date })
		response.Investigations.PathologyComparisonText = ComparePathologyReports(sorted).Narrative
	}

	if response.SidebarSummary == "" {
		response.SidebarSummary = SidebarSummary(patient)
	}
	if !response.Priority.IsValid() {
		response.Priority = domain.PriorityLow
	}
	for _, flag := range []*domain.SafetyFlag{
		&response.SafetyFlags.Renal, &response.SafetyFlags.Liver, &response.SafetyFlags.Hematology,
	} {
		if !flag.Status.IsModelAssignable() {
			local := DeriveSafetyFlags(patient)
			response.SafetyFlags = local
			break
		}
	}
	return response
}

// InvalidateInsights drops the memoized response for a patient, used when
// the source dataset reloads.
func (s *InsightService) InvalidateInsights(ctx context.Context, patientID string) {
	s.cache.Invalidate(ctx, patientID)
}
