package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rubric/internal/domain"
)

func numberResult(id, dim string, v float64, label string) domain.EvaluationResult {
	return domain.EvaluationResult{
		SchemeID:   id,
		Dimension:  dim,
		Value:      domain.Ptr(domain.NumberValue(v)),
		Label:      domain.Ptr(label),
		Confidence: domain.Ptr(0.8),
		Reasoning:  "erste Zeile\nzweite Zeile",
	}
}

func gateResult(id, dim string, passed bool) domain.EvaluationResult {
	label := "PASS"
	if !passed {
		label = "FAIL"
	}
	return domain.EvaluationResult{
		SchemeID:  id,
		Dimension: dim,
		Value:     domain.Ptr(domain.BoolValue(passed)),
		Label:     domain.Ptr(label),
	}
}

func TestWeightedAverage(t *testing.T) {
	deps := []domain.EvaluationResult{
		numberResult("a", "A", 4, ""),
		numberResult("b", "B", 2, ""),
	}

	t.Run("weights by dimension", func(t *testing.T) {
		assert.InDelta(t, 2.5, WeightedAverage(deps, map[string]float64{"A": 1, "B": 3}), 1e-9)
	})

	t.Run("missing weights default to one", func(t *testing.T) {
		assert.InDelta(t, 3.0, WeightedAverage(deps, nil), 1e-9)
	})

	t.Run("zero total weight", func(t *testing.T) {
		assert.InDelta(t, 0.0, WeightedAverage(deps, map[string]float64{"A": 0, "B": 0}), 1e-9)
	})

	t.Run("non numeric values are skipped", func(t *testing.T) {
		withGate := append([]domain.EvaluationResult{gateResult("g", "G", true)}, deps...)
		withGate = append(withGate, domain.Unavailable(&domain.SchemeDefinition{ID: "x", Dimension: "X"}, "down"))
		assert.InDelta(t, 3.0, WeightedAverage(withGate, nil), 1e-9)
		assert.InDelta(t, 6.0, Sum(withGate), 1e-9)
	})
}

func TestMatches(t *testing.T) {
	deps := []domain.EvaluationResult{
		numberResult("acc", "accuracy", 3, ""),
		gateResult("gate", "youth", true),
		domain.Unavailable(&domain.SchemeDefinition{ID: "na", Dimension: "missing"}, "down"),
	}

	tests := []struct {
		name  string
		conds []domain.Condition
		want  bool
	}{
		{name: "no conditions", want: true},
		{name: "default operator is gte", conds: []domain.Condition{{Dimension: "accuracy", Threshold: 3}}, want: true},
		{name: "strict greater", conds: []domain.Condition{{Dimension: "accuracy", Operator: domain.OpGT, Threshold: 3}}, want: false},
		{name: "gate compares as one", conds: []domain.Condition{{Dimension: "youth", Operator: domain.OpEQ, Threshold: 1}}, want: true},
		{name: "unknown dimension", conds: []domain.Condition{{Dimension: "style", Threshold: 0}}, want: false},
		{name: "null value", conds: []domain.Condition{{Dimension: "missing", Operator: domain.OpLT, Threshold: 100}}, want: false},
		{
			name: "all must hold",
			conds: []domain.Condition{
				{Dimension: "accuracy", Operator: domain.OpLTE, Threshold: 3},
				{Dimension: "youth", Operator: domain.OpEQ, Threshold: 0},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(tt.conds, deps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown operator", func(t *testing.T) {
		_, err := Matches([]domain.Condition{{Dimension: "accuracy", Operator: "~="}}, deps)
		require.ErrorIs(t, err, domain.ErrUnknownOperator)
	})
}

func qualityScheme() *domain.SchemeDefinition {
	return &domain.SchemeDefinition{
		ID:           "overall_quality",
		Kind:         domain.KindDerived,
		Dimension:    "quality",
		Dependencies: []string{"a", "b"},
		Labels:       domain.NewLabelThresholds(map[float64]string{0: "poor", 2: "fair", 4: "good"}),
		Rules: []domain.DerivedRule{
			{
				Conditions: []domain.Condition{{Dimension: "A", Operator: domain.OpGTE, Threshold: 5}},
				Value:      domain.RuleValue{Method: domain.MethodLiteral, Literal: domain.NumberValue(5)},
				Label:      "perfect",
			},
			{
				Value:     domain.RuleValue{Method: domain.MethodWeightedAverage},
				Weights:   map[string]float64{"A": 1, "B": 3},
				Reasoning: "Gewichtet",
			},
		},
	}
}

func TestAggregateFirstMatch(t *testing.T) {
	s := qualityScheme()

	t.Run("first rule wins when it matches", func(t *testing.T) {
		res := Aggregate(s, []domain.EvaluationResult{numberResult("a", "A", 5, "x"), numberResult("b", "B", 1, "y")})

		n, ok := res.Number()
		require.True(t, ok)
		assert.InDelta(t, 5.0, n, 1e-9)
		assert.Equal(t, "perfect", *res.Label)
		assert.InDelta(t, domain.DefaultRuleConfidence, *res.Confidence, 1e-9)
	})

	t.Run("later rule applies otherwise", func(t *testing.T) {
		res := Aggregate(s, []domain.EvaluationResult{numberResult("a", "A", 4, "x"), numberResult("b", "B", 2, "y")})

		n, ok := res.Number()
		require.True(t, ok)
		assert.InDelta(t, 2.5, n, 1e-9)
		assert.Equal(t, "fair", *res.Label)
		assert.Contains(t, res.Reasoning, "Gewichtet")

		require.Contains(t, res.Criteria, "b")
		assert.InDelta(t, 3.0, *res.Criteria["b"].Weight, 1e-9)
		assert.Equal(t, "erste Zeile", res.Criteria["b"].Reasoning)
		assert.Equal(t, "weighted_average", res.ScaleInfo["method"])
	})
}

func TestAggregateCompliance(t *testing.T) {
	s := &domain.SchemeDefinition{
		ID:           "rechtliche_compliance",
		Kind:         domain.KindDerived,
		Dimension:    "legal_compliance",
		Dependencies: []string{"g1", "g2"},
		Rules: []domain.DerivedRule{{
			Conditions: []domain.Condition{
				{Dimension: "youth", Operator: domain.OpEQ, Threshold: 1},
				{Dimension: "criminal", Operator: domain.OpEQ, Threshold: 1},
			},
			Value:      domain.RuleValue{Method: domain.MethodLiteral, Literal: domain.NumberValue(1)},
			Label:      "COMPLIANT",
			Confidence: domain.Ptr(0.95),
		}},
		Default: &domain.DefaultRule{Value: domain.NumberValue(0), Label: "NON_COMPLIANT", Confidence: 0.9},
	}

	t.Run("all gates pass", func(t *testing.T) {
		res := Aggregate(s, []domain.EvaluationResult{gateResult("g1", "youth", true), gateResult("g2", "criminal", true)})
		assert.Equal(t, "COMPLIANT", *res.Label)
		assert.InDelta(t, 0.95, *res.Confidence, 1e-9)
		assert.Contains(t, res.Reasoning, "COMPLIANCE - Alle 2")
		assert.True(t, *res.Criteria["g1"].Passed)
	})

	t.Run("default when a gate fails", func(t *testing.T) {
		res := Aggregate(s, []domain.EvaluationResult{gateResult("g1", "youth", true), gateResult("g2", "criminal", false)})
		n, ok := res.Number()
		require.True(t, ok)
		assert.InDelta(t, 0.0, n, 1e-9)
		assert.Equal(t, "NON_COMPLIANT", *res.Label)
		assert.InDelta(t, 0.9, *res.Confidence, 1e-9)
		assert.Contains(t, res.Reasoning, "Fehlgeschlagene Gates: g2")
		assert.Equal(t, "default_fallback", res.ScaleInfo["conditions"])
	})
}

func TestAggregateDefaults(t *testing.T) {
	s := &domain.SchemeDefinition{ID: "d", Kind: domain.KindDerived, Dimension: "d"}
	res := Aggregate(s, nil)

	n, ok := res.Number()
	require.True(t, ok)
	assert.InDelta(t, 0.0, n, 1e-9)
	assert.Equal(t, domain.DefaultDerivedLabel, *res.Label)
	assert.InDelta(t, 0.0, *res.Confidence, 1e-9)
}

func TestAggregateDerivationError(t *testing.T) {
	deps := []domain.EvaluationResult{numberResult("a", "A", 4, "")}

	t.Run("unknown operator", func(t *testing.T) {
		s := &domain.SchemeDefinition{
			ID: "d", Kind: domain.KindDerived, Dimension: "d",
			Rules: []domain.DerivedRule{{
				Conditions: []domain.Condition{{Dimension: "A", Operator: "=>"}},
				Value:      domain.RuleValue{Method: domain.MethodSum},
			}},
		}
		res := Aggregate(s, deps)
		require.True(t, res.IsUnavailable())
		assert.Contains(t, *res.UnavailableReason, "derivation error: rule 1")
	})

	t.Run("unknown method", func(t *testing.T) {
		s := &domain.SchemeDefinition{
			ID: "d", Kind: domain.KindDerived, Dimension: "d",
			Rules: []domain.DerivedRule{{Value: domain.RuleValue{Method: "median"}}},
		}
		res := Aggregate(s, deps)
		require.True(t, res.IsUnavailable())
		assert.Contains(t, *res.UnavailableReason, `unknown rule method: "median"`)
	})

	t.Run("sum", func(t *testing.T) {
		s := &domain.SchemeDefinition{
			ID: "d", Kind: domain.KindDerived, Dimension: "d",
			Rules: []domain.DerivedRule{{Value: domain.RuleValue{Method: domain.MethodSum}}},
		}
		res := Aggregate(s, append(deps, numberResult("b", "B", 1.5, "")))
		n, ok := res.Number()
		require.True(t, ok)
		assert.InDelta(t, 5.5, n, 1e-9)
		assert.Nil(t, res.Label)
	})
}
