package domain

import "context"

// PatientStore is the query surface the core exposes to the UI layer.
// Lookups by id are O(1) after the initial load.
type PatientStore interface {
	LoadPatients() []Patient
	GetPatientByID(id string) (*Patient, error)
	Reload(ctx context.Context) error
}

// InsightGenerator produces a structured insight object for a patient.
// Implementations must be total: they return a usable MasterAIResponse for
// any valid Patient, degrading to the deterministic path on model failure.
type InsightGenerator interface {
	GetInsights(ctx context.Context, patient *Patient) (*MasterAIResponse, error)
}

// InsightCache is the injected memoization capability for insight results,
// keyed by patient id. Failed generations are never stored; callers evict
// nothing themselves.
type InsightCache interface {
	Get(ctx context.Context, patientID string) (*MasterAIResponse, bool)
	Set(ctx context.Context, patientID string, response *MasterAIResponse)
	Invalidate(ctx context.Context, patientID string)
}

// ConfigManager provides access to application configuration
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatasetConfig() *DatasetConfig
	GetLLMConfig() *LLMConfig
	GetCacheConfig() *CacheConfig
	Validate() error
}
