package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-review-server/internal/domain"
)

// fakeModel scripts the model side of the reconciliation.
type fakeModel struct {
	mu       sync.Mutex
	calls    int32
	delay    time.Duration
	err      error
	response func(patient *domain.Patient) *domain.MasterAIResponse
}

func (f *fakeModel) GenerateInsights(ctx context.Context, patient *domain.Patient) (*domain.MasterAIResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response(patient), nil
}

func (f *fakeModel) callCount() int32 {
	return atomic.LoadInt32(&f.calls)
}

// mapCache is a plain map-backed InsightCache for tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]*domain.MasterAIResponse
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*domain.MasterAIResponse)}
}

func (c *mapCache) Get(_ context.Context, patientID string) (*domain.MasterAIResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.entries[patientID]
	return cached, ok
}

func (c *mapCache) Set(_ context.Context, patientID string, response *domain.MasterAIResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[patientID] = response
	c.sets++
}

func (c *mapCache) Invalidate(_ context.Context, patientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, patientID)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func modelResponse(patient *domain.Patient) *domain.MasterAIResponse {
	return &domain.MasterAIResponse{
		PatientID:      patient.PatientID,
		SidebarSummary: "model summary",
		Priority:       domain.PriorityMedium,
		SafetyFlags: domain.SafetyFlags{
			Renal:      domain.SafetyFlag{Status: domain.StatusSafe, Detail: "ok"},
			Liver:      domain.SafetyFlag{Status: domain.StatusSafe, Detail: "ok"},
			Hematology: domain.SafetyFlag{Status: domain.StatusCaution, Detail: "counts low"},
		},
		Narratives: domain.TabNarratives{Overview: "model overview"},
		Investigations: domain.Investigations{
			PathologyComparisonText: "model comparison",
			LabsSummary:             "model labs",
		},
	}
}

func TestGetInsightsModelPath(t *testing.T) {
	model := &fakeModel{response: modelResponse}
	cache := newMapCache()
	svc := NewInsightService(model, cache, time.Second, quietLogger())

	patient := &domain.Patient{PatientID: "PT-300"}
	response, err := svc.GetInsights(context.Background(), patient)

	require.NoError(t, err)
	assert.Equal(t, domain.SourceModel, response.Source)
	assert.Equal(t, "model summary", response.SidebarSummary)
	assert.False(t, response.GeneratedAt.IsZero())

	// Model-backed responses are memoized.
	cached, ok := cache.Get(context.Background(), "PT-300")
	require.True(t, ok)
	assert.Same(t, response, cached)

	// Second call serves from cache without touching the model.
	again, err := svc.GetInsights(context.Background(), patient)
	require.NoError(t, err)
	assert.Same(t, response, again)
	assert.Equal(t, int32(1), model.callCount())
}

func TestGetInsightsFallbackOnModelError(t *testing.T) {
	model := &fakeModel{err: errors.New("upstream unavailable")}
	cache := newMapCache()
	svc := NewInsightService(model, cache, time.Second, quietLogger())

	patient := &domain.Patient{PatientID: "PT-301"}
	response, err := svc.GetInsights(context.Background(), patient)

	require.NoError(t, err, "model failure must not surface to callers")
	assert.Equal(t, domain.SourceDeterministic, response.Source)

	// Failed generations are never cached, so the next call retries the model.
	_, ok := cache.Get(context.Background(), "PT-301")
	assert.False(t, ok)

	_, err = svc.GetInsights(context.Background(), patient)
	require.NoError(t, err)
	assert.Equal(t, int32(2), model.callCount())
}

func TestGetInsightsFallbackOnTimeout(t *testing.T) {
	model := &fakeModel{delay: 200 * time.Millisecond, response: modelResponse}
	svc := NewInsightService(model, newMapCache(), 20*time.Millisecond, quietLogger())

	response, err := svc.GetInsights(context.Background(), &domain.Patient{PatientID: "PT-302"})

	require.NoError(t, err)
	assert.Equal(t, domain.SourceDeterministic, response.Source)
}

func TestGetInsightsNilModelUsesDeterministicPath(t *testing.T) {
	svc := NewInsightService(nil, newMapCache(), time.Second, quietLogger())

	response, err := svc.GetInsights(context.Background(), &domain.Patient{PatientID: "PT-303"})

	require.NoError(t, err)
	assert.Equal(t, domain.SourceDeterministic, response.Source)
}

func TestGetInsightsNilPatient(t *testing.T) {
	svc := NewInsightService(nil, newMapCache(), time.Second, quietLogger())

	_, err := svc.GetInsights(context.Background(), nil)
	assert.Error(t, err)
}

func TestGetInsightsCoalescesConcurrentCalls(t *testing.T) {
	model := &fakeModel{delay: 50 * time.Millisecond, response: modelResponse}
	svc := NewInsightService(model, newMapCache(), time.Second, quietLogger())
	patient := &domain.Patient{PatientID: "PT-304"}

	const callers = 8
	var wg sync.WaitGroup
	responses := make([]*domain.MasterAIResponse, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			response, err := svc.GetInsights(context.Background(), patient)
			assert.NoError(t, err)
			responses[i] = response
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), model.callCount(), "concurrent callers share one generation")
	for _, response := range responses {
		assert.Same(t, responses[0], response)
	}
}

func TestRepairBackfillsOptionalFields(t *testing.T) {
	patient := &domain.Patient{
		PatientID: "PT-305",
		Biomarkers: []domain.BiomarkerPoint{
			{Date: "2023-01-01", Marker: "CEA", Value: 5, Unit: "ng/mL"},
		},
		Pathology: []domain.PathologyDetail{
			{Date: "2023-01-01", Histology: domain.HistologyFindings{Grade: "2"}},
		},
	}
	model := &fakeModel{response: func(p *domain.Patient) *domain.MasterAIResponse {
		return &domain.MasterAIResponse{
			SafetyFlags: domain.SafetyFlags{
				Renal:      domain.SafetyFlag{Status: domain.StatusSafe},
				Liver:      domain.SafetyFlag{Status: domain.StatusSafe},
				Hematology: domain.SafetyFlag{Status: domain.StatusSafe},
			},
			Priority: domain.Priority("urgent"),
			Investigations: domain.Investigations{
				PathologyDeltas: []domain.Delta{{Marker: "Grade", Trend: domain.TrendWorsening}},
			},
		}
	}}
	svc := NewInsightService(model, newMapCache(), time.Second, quietLogger())

	response, err := svc.GetInsights(context.Background(), patient)
	require.NoError(t, err)

	assert.Equal(t, "PT-305", response.PatientID)
	assert.Equal(t, domain.SourceModel, response.Source)
	assert.Equal(t, domain.PriorityLow, response.Priority, "an out-of-contract priority defaults low")
	assert.NotEmpty(t, response.SidebarSummary)
	assert.Contains(t, response.Investigations.LabsSummary, "CEA")
	assert.Contains(t, response.Investigations.PathologyComparisonText, "single pathology report")

	// One report on file: the delta list is forced to empty regardless of
	// what the model claimed.
	require.NotNil(t, response.Investigations.PathologyDeltas)
	assert.Empty(t, response.Investigations.PathologyDeltas)
}

func TestRepairReplacesNonAssignableSafetyStatus(t *testing.T) {
	patient := &domain.Patient{
		PatientID:        "PT-306",
		RenalDysfunction: boolPtr(true),
	}
	model := &fakeModel{response: func(p *domain.Patient) *domain.MasterAIResponse {
		r := modelResponse(p)
		r.SafetyFlags.Liver = domain.SafetyFlag{Status: domain.SafetyStatus("Unknown")}
		return r
	}}
	svc := NewInsightService(model, newMapCache(), time.Second, quietLogger())

	response, err := svc.GetInsights(context.Background(), patient)
	require.NoError(t, err)

	// The whole triad is rebuilt from source data when any status breaks the
	// model contract.
	assert.Equal(t, domain.StatusCaution, response.SafetyFlags.Renal.Status)
	assert.Equal(t, domain.StatusNotDocumented, response.SafetyFlags.Liver.Status)
}

func TestInvalidateInsights(t *testing.T) {
	model := &fakeModel{response: modelResponse}
	cache := newMapCache()
	svc := NewInsightService(model, cache, time.Second, quietLogger())
	patient := &domain.Patient{PatientID: "PT-307"}

	_, err := svc.GetInsights(context.Background(), patient)
	require.NoError(t, err)
	_, ok := cache.Get(context.Background(), "PT-307")
	require.True(t, ok)

	svc.InvalidateInsights(context.Background(), "PT-307")
	_, ok = cache.Get(context.Background(), "PT-307")
	assert.False(t, ok)

	// Regeneration after invalidation calls the model again.
	_, err = svc.GetInsights(context.Background(), patient)
	require.NoError(t, err)
	assert.Equal(t, int32(2), model.callCount())
}
