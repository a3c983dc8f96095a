package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-review-server/internal/domain"
	"github.com/onco-review-server/internal/service"
)

// stubConfig satisfies domain.ConfigManager with fixed test values.
type stubConfig struct {
	config domain.Config
}

func newStubConfig() *stubConfig {
	return &stubConfig{
		config: domain.Config{
			Server: domain.ServerConfig{
				Host:         "127.0.0.1",
				Port:         0,
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 5 * time.Second,
			},
			Logging: domain.LoggingConfig{Level: "error"},
		},
	}
}

func (s *stubConfig) GetConfig() *domain.Config               { return &s.config }
func (s *stubConfig) GetServerConfig() *domain.ServerConfig   { return &s.config.Server }
func (s *stubConfig) GetDatasetConfig() *domain.DatasetConfig { return &s.config.Dataset }
func (s *stubConfig) GetLLMConfig() *domain.LLMConfig         { return &s.config.LLM }
func (s *stubConfig) GetCacheConfig() *domain.CacheConfig     { return &s.config.Cache }
func (s *stubConfig) Validate() error                         { return nil }

// stubStore serves a fixed patient set.
type stubStore struct {
	patients  []domain.Patient
	reloadErr error
	reloads   int
}

func (s *stubStore) LoadPatients() []domain.Patient {
	return s.patients
}

func (s *stubStore) GetPatientByID(id string) (*domain.Patient, error) {
	for i := range s.patients {
		if s.patients[i].PatientID == id {
			return &s.patients[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubStore) Reload(_ context.Context) error {
	s.reloads++
	return s.reloadErr
}

// stubInsights returns the deterministic analysis for any patient.
type stubInsights struct {
	err error
}

func (s *stubInsights) GetInsights(_ context.Context, patient *domain.Patient) (*domain.MasterAIResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return service.BuildFallbackInsights(patient), nil
}

func testServer(store *stubStore, insights *stubInsights) *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewServer(newStubConfig(), store, insights, logger)
}

func testPatients() []domain.Patient {
	name := "Jordan Reyes"
	diagnosis := "NSCLC"
	return []domain.Patient{
		{PatientID: "PT-001", Name: &name, PrimaryDiagnosis: &diagnosis},
		{PatientID: "PT-002"},
	}
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestHandleHealth(t *testing.T) {
	server := testServer(&stubStore{patients: testPatients()}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["patients"])
}

func TestHandleListPatients(t *testing.T) {
	server := testServer(&stubStore{patients: testPatients()}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodGet, "/api/v1/patients", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var body struct {
		Patients []PatientListing `json:"patients"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "PT-001", body.Patients[0].PatientID)
	assert.Equal(t, "Jordan Reyes", body.Patients[0].Name)
	assert.Equal(t, "NSCLC", body.Patients[0].PrimaryDiagnosis)
	assert.Equal(t, "not documented", body.Patients[1].PrimaryDiagnosis)
}

func TestHandleGetPatient(t *testing.T) {
	server := testServer(&stubStore{patients: testPatients()}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodGet, "/api/v1/patients/PT-001", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var patient domain.Patient
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &patient))
	assert.Equal(t, "PT-001", patient.PatientID)
}

func TestHandleGetPatientNotFound(t *testing.T) {
	server := testServer(&stubStore{patients: testPatients()}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodGet, "/api/v1/patients/PT-999", "")

	require.Equal(t, http.StatusNotFound, recorder.Code)
	var serviceErr domain.ServiceError
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &serviceErr))
	assert.Equal(t, domain.ErrInvalidInput, serviceErr.Code)
	assert.NotEmpty(t, serviceErr.RequestID, "correlation id rides along on errors")
}

func TestHandleGetInsights(t *testing.T) {
	server := testServer(&stubStore{patients: testPatients()}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodGet, "/api/v1/patients/PT-001/insights", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var insights domain.MasterAIResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &insights))
	assert.Equal(t, "PT-001", insights.PatientID)
	assert.Equal(t, domain.SourceDeterministic, insights.Source)
	assert.Equal(t, domain.StatusNotDocumented, insights.SafetyFlags.Renal.Status)
}

func TestHandleGetSummary(t *testing.T) {
	server := testServer(&stubStore{patients: testPatients()}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodGet, "/api/v1/patients/PT-001/summary", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var summary domain.ClinicalSummary
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &summary))
	assert.NotEmpty(t, summary.ClinicalNarrative)
	assert.NotEmpty(t, summary.Recommendations)
}

func TestHandleComparePathology(t *testing.T) {
	server := testServer(&stubStore{}, &stubInsights{})

	body := `{"reports": [
		{"date": "2023-01-01", "histology": {"grade": "2", "margins": "negative"}},
		{"date": "2023-06-01", "histology": {"grade": "3", "margins": "positive"}}
	]}`

	recorder := doRequest(t, server, http.MethodPost, "/api/v1/pathology/compare", body)

	require.Equal(t, http.StatusOK, recorder.Code)
	var result domain.ComparisonResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.Len(t, result.Deltas, 2, "reports are sorted newest-first before comparison")
	assert.Equal(t, "Grade", result.Deltas[0].Marker)
	assert.Equal(t, domain.TrendWorsening, result.Deltas[0].Trend)
}

func TestHandleComparePathologyBadBody(t *testing.T) {
	server := testServer(&stubStore{}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodPost, "/api/v1/pathology/compare", `{"reports": "oops"}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleReload(t *testing.T) {
	store := &stubStore{patients: testPatients()}
	server := testServer(store, &stubInsights{})

	recorder := doRequest(t, server, http.MethodPost, "/api/v1/patients/reload", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, store.reloads)
}

func TestHandleReloadFailure(t *testing.T) {
	store := &stubStore{reloadErr: assert.AnError}
	server := testServer(store, &stubInsights{})

	recorder := doRequest(t, server, http.MethodPost, "/api/v1/patients/reload", "")

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	var serviceErr domain.ServiceError
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &serviceErr))
	assert.Equal(t, domain.ErrSourceData, serviceErr.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	server := testServer(&stubStore{}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodGet, "/health", "")

	assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, recorder.Header().Get("X-Correlation-ID"))
}

func TestCORSPreflight(t *testing.T) {
	server := testServer(&stubStore{}, &stubInsights{})

	recorder := doRequest(t, server, http.MethodOptions, "/api/v1/patients", "")

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}
