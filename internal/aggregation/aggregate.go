// Package aggregation derives the result of a derived scheme from the results
// of its dependencies. Aggregate is pure: it performs no I/O and never
// evaluates dependencies itself.
package aggregation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ahrav/go-rubric/internal/domain"
)

// ErrUnknownMethod is returned for a rule value that is neither a known
// method nor a literal.
var ErrUnknownMethod = errors.New("unknown rule method")

const noReasoning = "Keine Begründung verfügbar"

// Aggregate applies the first matching rule of scheme to deps, falling back to
// the scheme default. A malformed rule yields an unavailable result.
func Aggregate(scheme *domain.SchemeDefinition, deps []domain.EvaluationResult) domain.EvaluationResult {
	res, err := aggregate(scheme, deps)
	if err != nil {
		return domain.Unavailable(scheme, "derivation error: "+err.Error())
	}
	return res
}

func aggregate(scheme *domain.SchemeDefinition, deps []domain.EvaluationResult) (domain.EvaluationResult, error) {
	for i, rule := range scheme.Rules {
		ok, err := Matches(rule.Conditions, deps)
		if err != nil {
			return domain.EvaluationResult{}, fmt.Errorf("rule %d: %w", i+1, err)
		}
		if !ok {
			continue
		}
		res, err := applyRule(scheme, rule, deps)
		if err != nil {
			return domain.EvaluationResult{}, fmt.Errorf("rule %d: %w", i+1, err)
		}
		return res, nil
	}
	return applyDefault(scheme, deps), nil
}

// Matches reports whether every condition holds against deps. A condition
// holds when the first dependency carrying its dimension has a comparable
// value satisfying the operator. An empty condition list always holds.
func Matches(conds []domain.Condition, deps []domain.EvaluationResult) (bool, error) {
	for _, c := range conds {
		dep, ok := byDimension(deps, c.Dimension)
		if !ok || dep.Value == nil {
			return false, nil
		}
		v, ok := dep.Value.Comparable()
		if !ok {
			return false, nil
		}
		holds, err := c.Operator.Apply(v, c.Threshold)
		if err != nil {
			return false, err
		}
		if !holds {
			return false, nil
		}
	}
	return true, nil
}

func byDimension(deps []domain.EvaluationResult, dim string) (domain.EvaluationResult, bool) {
	for _, d := range deps {
		if d.Dimension == dim {
			return d, true
		}
	}
	return domain.EvaluationResult{}, false
}

// WeightedAverage computes Σ(value·w)/Σw over numeric dependency values,
// with w looked up by dimension and defaulting to 1. A zero total weight
// yields 0.
func WeightedAverage(deps []domain.EvaluationResult, weights map[string]float64) float64 {
	var sum, total float64
	for _, d := range deps {
		v, ok := d.Number()
		if !ok {
			continue
		}
		w := weightFor(weights, d.Dimension)
		sum += v * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// Sum adds numeric dependency values.
func Sum(deps []domain.EvaluationResult) float64 {
	var sum float64
	for _, d := range deps {
		if v, ok := d.Number(); ok {
			sum += v
		}
	}
	return sum
}

func weightFor(weights map[string]float64, dim string) float64 {
	if w, ok := weights[dim]; ok {
		return w
	}
	return 1
}

func applyRule(scheme *domain.SchemeDefinition, rule domain.DerivedRule, deps []domain.EvaluationResult) (domain.EvaluationResult, error) {
	confidence := domain.DefaultRuleConfidence
	if rule.Confidence != nil {
		confidence = *rule.Confidence
	}

	res := domain.EvaluationResult{
		SchemeID:   scheme.ID,
		Dimension:  scheme.Dimension,
		Confidence: domain.Ptr(confidence),
	}

	switch rule.Value.Method {
	case domain.MethodWeightedAverage, domain.MethodSum:
		var score float64
		if rule.Value.Method == domain.MethodSum {
			score = Sum(deps)
		} else {
			score = WeightedAverage(deps, rule.Weights)
		}
		score = domain.Round2(score)

		res.Value = domain.Ptr(domain.NumberValue(score))
		if l, ok := scheme.Labels.Lookup(score); ok {
			res.Label = domain.Ptr(l)
		}
		res.Reasoning = scoreReasoning(rule, score, deps)
		res.Criteria = criteria(deps, rule.Weights, true)
		res.ScaleInfo = map[string]any{
			"type":         string(domain.KindDerived),
			"method":       string(rule.Value.Method),
			"dependencies": len(deps),
			"weights":      rule.Weights,
		}

	case domain.MethodLiteral:
		if !rule.Value.Literal.IsValid() {
			return domain.EvaluationResult{}, fmt.Errorf("%w: literal rule without value", ErrUnknownMethod)
		}
		res.Value = domain.Ptr(rule.Value.Literal)
		res.Label = domain.Ptr(rule.Label)
		res.Reasoning = complianceReasoning(rule.Reasoning, deps)
		res.Criteria = criteria(deps, nil, false)
		res.ScaleInfo = map[string]any{
			"type":         string(domain.KindDerived),
			"method":       "rule_based",
			"dependencies": len(deps),
			"conditions":   rule.Conditions,
		}

	default:
		return domain.EvaluationResult{}, fmt.Errorf("%w: %q", ErrUnknownMethod, string(rule.Value.Method))
	}
	return res, nil
}

func applyDefault(scheme *domain.SchemeDefinition, deps []domain.EvaluationResult) domain.EvaluationResult {
	def := scheme.EffectiveDefault()
	return domain.EvaluationResult{
		SchemeID:   scheme.ID,
		Dimension:  scheme.Dimension,
		Value:      domain.Ptr(def.Value),
		Label:      domain.Ptr(def.Label),
		Confidence: domain.Ptr(def.Confidence),
		Reasoning:  complianceReasoning(def.Reasoning, deps),
		Criteria:   criteria(deps, nil, false),
		ScaleInfo: map[string]any{
			"type":         string(domain.KindDerived),
			"method":       "rule_based",
			"dependencies": len(deps),
			"conditions":   "default_fallback",
		},
	}
}

// criteria mirrors each available dependency result by scheme ID.
func criteria(deps []domain.EvaluationResult, weights map[string]float64, weighted bool) map[string]domain.Criterion {
	out := make(map[string]domain.Criterion, len(deps))
	for _, d := range deps {
		if d.IsUnavailable() {
			continue
		}
		c := domain.Criterion{
			Dimension:  d.Dimension,
			Value:      d.Value,
			Label:      d.Label,
			Confidence: d.Confidence,
			Reasoning:  firstLine(d.Reasoning),
			Criteria:   d.Criteria,
		}
		if weighted {
			c.Weight = domain.Ptr(weightFor(weights, d.Dimension))
		}
		if b, ok := d.Value.Bool(); ok {
			c.Passed = domain.Ptr(b)
		}
		out[d.SchemeID] = c
	}
	return out
}

func firstLine(s string) string {
	if s == "" {
		return noReasoning
	}
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func scoreReasoning(rule domain.DerivedRule, score float64, deps []domain.EvaluationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gewichteter Durchschnitt: %.2f\n\nEinzelbewertungen:\n", score)
	for _, d := range deps {
		if d.IsUnavailable() {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%s) × Gewicht %g\n", d.Dimension, d.Value, deref(d.Label), weightFor(rule.Weights, d.Dimension))
	}
	summary := rule.Reasoning
	if summary == "" {
		summary = "Berechnung abgeschlossen"
	}
	fmt.Fprintf(&b, "\nGesamtbewertung: %s", summary)
	return b.String()
}

func complianceReasoning(summary string, deps []domain.EvaluationResult) string {
	var (
		b      strings.Builder
		failed []string
	)
	b.WriteString("Rechtliche Compliance-Prüfung:\n\n")
	for _, d := range deps {
		if passed(d) {
			fmt.Fprintf(&b, "✅ %s: BESTANDEN (%s)\n", d.SchemeID, deref(d.Label))
			continue
		}
		failed = append(failed, d.SchemeID)
		fmt.Fprintf(&b, "❌ %s: NICHT BESTANDEN (%s)\n", d.SchemeID, deref(d.Label))
	}

	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nErgebnis: NON_COMPLIANCE - %d von %d Prüfungen nicht bestanden\n", len(failed), len(deps))
		fmt.Fprintf(&b, "Fehlgeschlagene Gates: %s\n", strings.Join(failed, ", "))
	} else {
		fmt.Fprintf(&b, "\nErgebnis: COMPLIANCE - Alle %d rechtlichen Prüfungen bestanden\n", len(deps))
	}

	if summary == "" {
		summary = "Compliance-Prüfung abgeschlossen"
	}
	fmt.Fprintf(&b, "\nFazit: %s", summary)
	return b.String()
}

// passed treats a dependency as passing when its comparable value is 1.
func passed(d domain.EvaluationResult) bool {
	if d.Value == nil {
		return false
	}
	v, ok := d.Value.Comparable()
	return ok && v == 1
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
