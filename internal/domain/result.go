package domain

import "math"

// MatchOutcome records which parsing tier produced a criterion's value.
type MatchOutcome string

const (
	// OutcomeMatched came from the structured answer format.
	OutcomeMatched MatchOutcome = "matched"

	// OutcomeInferred came from a fallback heuristic.
	OutcomeInferred MatchOutcome = "inferred"

	// OutcomeUnclear means nothing usable was found and a default applied.
	OutcomeUnclear MatchOutcome = "unclear"
)

// Criterion is one entry of a result's per-criterion breakdown.
// Fields are populated according to the producing scale kind.
type Criterion struct {
	Name            string               `json:"name,omitempty"`
	Dimension       string               `json:"dimension,omitempty"`
	Response        string               `json:"response,omitempty"`
	Value           *Value               `json:"value,omitempty"`
	Label           *string              `json:"label,omitempty"`
	Confidence      *float64             `json:"confidence,omitempty"`
	NormalizedScore *float64             `json:"normalized_score,omitempty"`
	Weight          *float64             `json:"weight,omitempty"`
	Passed          *bool                `json:"passed,omitempty"`
	Rule            string               `json:"rule,omitempty"`
	Severity        string               `json:"severity,omitempty"`
	LegalBasis      string               `json:"legal_basis,omitempty"`
	Reasoning       string               `json:"reasoning,omitempty"`
	Outcome         MatchOutcome         `json:"outcome,omitempty"`
	Criteria        map[string]Criterion `json:"criteria,omitempty"`
}

// LegalViolation is reported for each failed aspect of a gate.
type LegalViolation struct {
	SchemeID    string `json:"scheme_id"`
	RuleID      string `json:"rule_id,omitempty"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	LegalBasis  string `json:"legal_basis,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// EvaluationResult is the outcome of one scheme for one request.
// It is never mutated after construction; UnavailableReason is set exactly
// when Value is nil.
type EvaluationResult struct {
	SchemeID          string               `json:"scheme_id"`
	Dimension         string               `json:"dimension"`
	Value             *Value               `json:"value"`
	Label             *string              `json:"label"`
	Confidence        *float64             `json:"confidence"`
	Reasoning         string               `json:"reasoning,omitempty"`
	Criteria          map[string]Criterion `json:"criteria,omitempty"`
	ScaleInfo         map[string]any       `json:"scale_info,omitempty"`
	Violations        []LegalViolation     `json:"violations,omitempty"`
	UnavailableReason *string              `json:"na_reason,omitempty"`
}

// Unavailable builds the null-valued variant for a scheme that could not be judged.
func Unavailable(s *SchemeDefinition, reason string) EvaluationResult {
	return EvaluationResult{
		SchemeID:          s.ID,
		Dimension:         s.Dimension,
		ScaleInfo:         map[string]any{"type": string(s.Kind)},
		UnavailableReason: &reason,
	}
}

// IsUnavailable reports whether the result carries no value.
func (r EvaluationResult) IsUnavailable() bool { return r.Value == nil }

// Number returns the numeric value, if any.
func (r EvaluationResult) Number() (float64, bool) {
	if r.Value == nil {
		return 0, false
	}
	return r.Value.Number()
}

// IsRejection reports whether the result is an explicit boolean false.
// Null values never reject.
func (r EvaluationResult) IsRejection() bool {
	if r.Value == nil {
		return false
	}
	b, ok := r.Value.Bool()
	return ok && !b
}

// WithoutDetails returns a copy stripped of reasoning and criteria.
func (r EvaluationResult) WithoutDetails() EvaluationResult {
	r.Reasoning = ""
	r.Criteria = nil
	return r
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Round2 rounds half away from zero to two decimals.
func Round2(f float64) float64 { return math.Round(f*100) / 100 }
