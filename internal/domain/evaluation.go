package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ContextType selects which gate rules apply to an evaluation.
type ContextType string

const (
	// ContextContent checks the text only; platform rules are left out.
	ContextContent ContextType = "content"

	// ContextPlatform checks platform metadata; all rules are included.
	ContextPlatform ContextType = "platform"

	// ContextBoth runs the full check.
	ContextBoth ContextType = "both"
)

// Normalize maps the empty context to ContextBoth.
func (c ContextType) Normalize() ContextType {
	if c == "" {
		return ContextBoth
	}
	return c
}

// Includes reports whether a rule with scope s is evaluated in context c.
func (c ContextType) Includes(s Scope) bool {
	if c.Normalize() != ContextContent {
		return true
	}
	switch s {
	case ScopeContent, ScopeBoth, "":
		return true
	default:
		return false
	}
}

// Request limits enforced at the request boundaries: HTTP binding, CLI and
// the Temporal entry points. The engine itself only needs a text and at
// least one scheme.
const (
	MinTextLength   = 10
	MaxTextLength   = 50000
	MaxSchemesPerRq = 10
)

// EvaluationRequest asks for text to be scored against schemes.
type EvaluationRequest struct {
	RequestID   string      `json:"request_id,omitempty"`
	Text        string      `json:"text" validate:"required"`
	SchemeIDs   []string    `json:"schemes" validate:"required,min=1,dive,required"`
	Model       string      `json:"model,omitempty"`
	ContextType ContextType `json:"context_type,omitempty" validate:"omitempty,oneof=content platform both"`
}

// NewEvaluationRequest builds a request with a fresh ID.
func NewEvaluationRequest(text string, schemeIDs []string, ctxType ContextType) EvaluationRequest {
	return EvaluationRequest{
		RequestID:   uuid.NewString(),
		Text:        text,
		SchemeIDs:   schemeIDs,
		ContextType: ctxType,
	}
}

// Validate checks the fields evaluation cannot run without: a non-empty
// text, at least one non-empty scheme ID and a known context type.
func (r *EvaluationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// ValidateLimits runs Validate and then applies the request size limits.
// Text length is counted in characters, not bytes.
func (r *EvaluationRequest) ValidateLimits() error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := validate.Var(r.Text, "min=10,max=50000"); err != nil {
		return fmt.Errorf("%w: text: %w", ErrInvalidRequest, err)
	}
	if err := validate.Var(r.SchemeIDs, "max=10"); err != nil {
		return fmt.Errorf("%w: schemes: %w", ErrInvalidRequest, err)
	}
	return nil
}

// OverallRejected labels an outcome stopped by a failing gate.
const OverallRejected = "REJECTED"

// EvaluationOutcome is the result of one evaluation request.
type EvaluationOutcome struct {
	RequestID    string             `json:"request_id,omitempty"`
	Results      []EvaluationResult `json:"results"`
	GatesPassed  bool               `json:"gates_passed"`
	OverallScore *float64           `json:"overall_score"`
	OverallLabel *string            `json:"overall_label"`
}
