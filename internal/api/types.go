package api

import (
	"time"

	"github.com/ahrav/go-rubric/internal/domain"
)

// Version is reported by /health and in response provenance.
const Version = "0.1.0"

// EvaluateRequest is the body of POST /evaluate.
type EvaluateRequest struct {
	Text             string             `json:"text" binding:"required,min=10,max=50000"`
	Schemes          []string           `json:"schemes" binding:"required,min=1,max=10,dive,required"`
	IncludeReasoning *bool              `json:"include_reasoning"`
	ContextType      domain.ContextType `json:"context_type" binding:"omitempty,oneof=content platform both"`
	Model            string             `json:"model,omitempty"`
}

// includeReasoning defaults to true when the field is absent.
func (r EvaluateRequest) includeReasoning() bool {
	return r.IncludeReasoning == nil || *r.IncludeReasoning
}

// Metadata describes how a response was produced.
type Metadata struct {
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	ModelUsed        string `json:"model_used"`
	IncludeReasoning bool   `json:"include_reasoning"`
	RequestID        string `json:"request_id"`
}

// Provenance is the audit trail of a response.
type Provenance struct {
	Timestamp    time.Time `json:"timestamp"`
	APIVersion   string    `json:"api_version"`
	TextLength   int       `json:"text_length"`
	SchemesCount int       `json:"schemes_count"`
}

// EvaluateResponse is the body returned by POST /evaluate.
type EvaluateResponse struct {
	Results      []domain.EvaluationResult `json:"results"`
	GatesPassed  bool                      `json:"gates_passed"`
	OverallScore *float64                  `json:"overall_score"`
	OverallLabel *string                   `json:"overall_label"`
	Metadata     Metadata                  `json:"metadata"`
	Provenance   Provenance                `json:"provenance"`
}

// SchemesResponse is the body returned by GET /schemes.
type SchemesResponse struct {
	Schemes []domain.SchemeInfo `json:"schemes"`
	Total   int                 `json:"total"`
	Status  string              `json:"status"`
}

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	SchemesLoaded int    `json:"schemes_loaded"`
}

// ErrorResponse carries a client-facing error message.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
