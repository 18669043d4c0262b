// Package domain defines the scheme catalog model, evaluation results and the
// request/outcome types shared by the evaluator, the HTTP API and the Temporal
// activities. Types here carry no I/O.
package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ScaleKind identifies how a scheme is judged and parsed.
type ScaleKind string

const (
	// KindOrdinalRubric scores text against ordered anchors.
	KindOrdinalRubric ScaleKind = "ordinal_rubric"

	// KindChecklistAdditive sums weighted per-item levels.
	KindChecklistAdditive ScaleKind = "checklist_additive"

	// KindBinaryGate is a pass/fail legal gate.
	KindBinaryGate ScaleKind = "binary_gate"

	// KindDerived is computed from other schemes' results.
	KindDerived ScaleKind = "derived"
)

// Valid reports whether k is a known kind.
func (k ScaleKind) Valid() bool {
	switch k {
	case KindOrdinalRubric, KindChecklistAdditive, KindBinaryGate, KindDerived:
		return true
	default:
		return false
	}
}

// SelectionStrategy picks the anchor-matching fallback for ordinal rubrics.
type SelectionStrategy string

const (
	// SelectFirstMatch takes the first anchor in declaration order mentioned by the answer.
	SelectFirstMatch SelectionStrategy = "first_match"

	// SelectBestFit takes the anchor mentioned last in the answer.
	SelectBestFit SelectionStrategy = "best_fit"
)

// MissingPolicy controls how unresolved checklist items affect the mean.
type MissingPolicy string

const (
	// MissingIgnore drops unresolved items from the weighted mean.
	MissingIgnore MissingPolicy = "ignore"

	// MissingZero counts unresolved items with a score of zero.
	MissingZero MissingPolicy = "zero"
)

// Scope tags a gate rule with the surface it applies to.
type Scope string

const (
	// ScopeContent rules judge the text itself.
	ScopeContent Scope = "content"

	// ScopePlatform rules judge platform metadata and technical measures.
	ScopePlatform Scope = "platform"

	// ScopeBoth rules apply in every context.
	ScopeBoth Scope = "both"
)

// Anchor is one labeled point on an ordinal rubric.
type Anchor struct {
	Level       int    `json:"level"`
	Label       string `json:"label" validate:"required"`
	Description string `json:"description,omitempty"`
}

// LevelValue maps a checklist level to its raw score.
type LevelValue struct {
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// ChecklistItem is one weighted criterion of an additive checklist.
type ChecklistItem struct {
	ID     string       `json:"id" validate:"required"`
	Prompt string       `json:"prompt" validate:"required"`
	Weight float64      `json:"weight" validate:"gte=0"`
	Levels []LevelValue `json:"levels" validate:"required,min=1,dive"`

	// Missing is the sentinel score used when the answer gives no usable level.
	// Nil leaves the item unresolved for the scheme's missing policy.
	Missing *float64 `json:"missing,omitempty"`
}

// Level returns the score for an exact level.
func (c ChecklistItem) Level(level int) (LevelValue, bool) {
	for _, lv := range c.Levels {
		if lv.Level == level {
			return lv, true
		}
	}
	return LevelValue{}, false
}

// Closest returns the declared level nearest to level, preferring the lower on ties.
func (c ChecklistItem) Closest(level int) (LevelValue, bool) {
	if len(c.Levels) == 0 {
		return LevelValue{}, false
	}
	best := c.Levels[0]
	for _, lv := range c.Levels[1:] {
		d, bd := abs(lv.Level-level), abs(best.Level-level)
		if d < bd || (d == bd && lv.Level < best.Level) {
			best = lv
		}
	}
	return best, true
}

// Min returns the lowest declared level.
func (c ChecklistItem) Min() (LevelValue, bool) {
	if len(c.Levels) == 0 {
		return LevelValue{}, false
	}
	lo := c.Levels[0]
	for _, lv := range c.Levels[1:] {
		if lv.Level < lo.Level {
			lo = lv
		}
	}
	return lo, true
}

// Max returns the highest declared level.
func (c ChecklistItem) Max() (LevelValue, bool) {
	if len(c.Levels) == 0 {
		return LevelValue{}, false
	}
	hi := c.Levels[0]
	for _, lv := range c.Levels[1:] {
		if lv.Level > hi.Level {
			hi = lv
		}
	}
	return hi, true
}

// GateRule is one aspect checked by a binary gate.
type GateRule struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description" validate:"required"`
	Severity    string `json:"severity,omitempty"`
	LegalBasis  string `json:"legal_basis,omitempty"`
	Scope       Scope  `json:"scope,omitempty" validate:"omitempty,oneof=content platform both"`
}

// EffectiveScope treats an untagged rule as applying everywhere.
func (g GateRule) EffectiveScope() Scope {
	if g.Scope == "" {
		return ScopeBoth
	}
	return g.Scope
}

// Operator compares a dependency value against a threshold.
type Operator string

// Supported condition operators.
const (
	OpGTE Operator = ">="
	OpGT  Operator = ">"
	OpLTE Operator = "<="
	OpLT  Operator = "<"
	OpEQ  Operator = "=="
)

// ErrUnknownOperator is returned when a condition names an unsupported operator.
var ErrUnknownOperator = errors.New("unknown condition operator")

// Apply evaluates value <op> threshold.
func (o Operator) Apply(value, threshold float64) (bool, error) {
	switch o {
	case OpGTE, "":
		return value >= threshold, nil
	case OpGT:
		return value > threshold, nil
	case OpLTE:
		return value <= threshold, nil
	case OpLT:
		return value < threshold, nil
	case OpEQ:
		return value == threshold, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, string(o))
	}
}

// Condition tests the dependency result carrying Dimension.
type Condition struct {
	Dimension string   `json:"dimension" validate:"required"`
	Operator  Operator `json:"operator,omitempty"`
	Threshold float64  `json:"value"`
}

// RuleMethod selects how a derived rule computes its value.
type RuleMethod string

const (
	// MethodWeightedAverage averages numeric dependency values by dimension weight.
	MethodWeightedAverage RuleMethod = "weighted_average"

	// MethodSum adds numeric dependency values.
	MethodSum RuleMethod = "sum"

	// MethodLiteral returns the rule's literal value verbatim.
	MethodLiteral RuleMethod = "literal"
)

// RuleValue is either a computation method or a literal value.
type RuleValue struct {
	Method  RuleMethod `json:"method"`
	Literal Value      `json:"literal,omitempty"`
}

// ParseRuleValue interprets a decoded rule value. The strings
// "weighted_average" and "sum" select methods; anything else is a literal.
func ParseRuleValue(v any) (RuleValue, error) {
	if s, ok := v.(string); ok {
		switch RuleMethod(s) {
		case MethodWeightedAverage, MethodSum:
			return RuleValue{Method: RuleMethod(s)}, nil
		}
	}
	lit, err := ValueFromAny(v)
	if err != nil {
		return RuleValue{}, err
	}
	return RuleValue{Method: MethodLiteral, Literal: lit}, nil
}

// DerivedRule is one ordered rule of a derived scheme.
type DerivedRule struct {
	Conditions []Condition        `json:"conditions,omitempty" validate:"dive"`
	Value      RuleValue          `json:"value"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	Label      string             `json:"label,omitempty"`
	Confidence *float64           `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Reasoning  string             `json:"reasoning,omitempty"`
}

// DefaultRule is the derived fallback when no rule matches.
type DefaultRule struct {
	Value      Value   `json:"value"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Derived fallback values used when a scheme omits its default.
const (
	DefaultDerivedLabel   = "Unbewertet"
	DefaultRuleConfidence = 0.9
)

// SchemeDefinition is an immutable rubric or gate loaded once at startup.
type SchemeDefinition struct {
	ID          string          `json:"id" validate:"required"`
	Kind        ScaleKind       `json:"type" validate:"required"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Dimension   string          `json:"dimension" validate:"required"`
	Version     string          `json:"version,omitempty"`
	OutputRange map[string]any  `json:"output_range,omitempty"`
	Labels      LabelThresholds `json:"labels,omitempty" validate:"dive"`

	// ordinal_rubric
	Anchors   []Anchor          `json:"anchors,omitempty" validate:"dive"`
	Selection SelectionStrategy `json:"selection_strategy,omitempty"`

	// checklist_additive
	Items         []ChecklistItem `json:"items,omitempty" validate:"dive"`
	ScaleFactor   float64         `json:"scale_factor,omitempty"`
	MissingPolicy MissingPolicy   `json:"missing,omitempty"`

	// binary_gate
	GateRules []GateRule `json:"gate_rules,omitempty" validate:"dive"`
	Criteria  string     `json:"criteria,omitempty"`

	// derived
	Dependencies []string      `json:"dependencies,omitempty"`
	Rules        []DerivedRule `json:"rules,omitempty" validate:"dive"`
	Default      *DefaultRule  `json:"default,omitempty"`
}

// Validate checks struct tags and the kind-specific payload.
func (s *SchemeDefinition) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidScheme, s.ID, err)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidScheme, s.ID, s.Kind)
	}

	switch s.Kind {
	case KindOrdinalRubric:
		if len(s.Anchors) == 0 {
			return fmt.Errorf("%w: %s: ordinal rubric without anchors", ErrInvalidScheme, s.ID)
		}
		switch s.Selection {
		case "", SelectFirstMatch, SelectBestFit:
		default:
			return fmt.Errorf("%w: %s: unknown selection strategy %q", ErrInvalidScheme, s.ID, s.Selection)
		}
	case KindChecklistAdditive:
		if len(s.Items) == 0 {
			return fmt.Errorf("%w: %s: checklist without items", ErrInvalidScheme, s.ID)
		}
		switch s.MissingPolicy {
		case "", MissingIgnore, MissingZero:
		default:
			return fmt.Errorf("%w: %s: unknown missing policy %q", ErrInvalidScheme, s.ID, s.MissingPolicy)
		}
		if s.ScaleFactor < 0 {
			return fmt.Errorf("%w: %s: negative scale factor", ErrInvalidScheme, s.ID)
		}
	case KindDerived:
		for i, r := range s.Rules {
			for _, c := range r.Conditions {
				if _, err := c.Operator.Apply(0, 0); err != nil {
					return fmt.Errorf("%w: %s: rule %d: %w", ErrInvalidScheme, s.ID, i+1, err)
				}
			}
			if r.Value.Method == MethodLiteral && !r.Value.Literal.IsValid() {
				return fmt.Errorf("%w: %s: rule %d has no value", ErrInvalidScheme, s.ID, i+1)
			}
		}
	}
	return nil
}

// EffectiveScaleFactor defaults an unset checklist scale factor to 1.
func (s *SchemeDefinition) EffectiveScaleFactor() float64 {
	if s.ScaleFactor == 0 {
		return 1
	}
	return s.ScaleFactor
}

// EffectiveMissingPolicy defaults to ignoring unresolved items.
func (s *SchemeDefinition) EffectiveMissingPolicy() MissingPolicy {
	if s.MissingPolicy == "" {
		return MissingIgnore
	}
	return s.MissingPolicy
}

// EffectiveSelection defaults to first-match anchor selection.
func (s *SchemeDefinition) EffectiveSelection() SelectionStrategy {
	if s.Selection == "" {
		return SelectFirstMatch
	}
	return s.Selection
}

// EffectiveDefault returns the declared fallback or the built-in one.
func (s *SchemeDefinition) EffectiveDefault() DefaultRule {
	if s.Default != nil {
		d := *s.Default
		if !d.Value.IsValid() {
			d.Value = NumberValue(0)
		}
		if d.Label == "" {
			d.Label = DefaultDerivedLabel
		}
		return d
	}
	return DefaultRule{Value: NumberValue(0), Label: DefaultDerivedLabel}
}

// AnchorForLevel returns the anchor declared for level.
func (s *SchemeDefinition) AnchorForLevel(level int) (Anchor, bool) {
	for _, a := range s.Anchors {
		if a.Level == level {
			return a, true
		}
	}
	return Anchor{}, false
}

// SchemeInfo is the public listing view of a scheme.
type SchemeInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Dimension   string         `json:"dimension"`
	ScaleType   ScaleKind      `json:"scale_type"`
	OutputRange map[string]any `json:"output_range"`
	Version     string         `json:"version"`
}

// Info projects the definition onto its listing view.
func (s *SchemeDefinition) Info() SchemeInfo {
	version := s.Version
	if version == "" {
		version = "1.0"
	}
	out := s.OutputRange
	if out == nil {
		out = map[string]any{}
	}
	return SchemeInfo{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Dimension:   s.Dimension,
		ScaleType:   s.Kind,
		OutputRange: out,
		Version:     version,
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
