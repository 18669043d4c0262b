package scoring

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ahrav/go-rubric/internal/domain"
)

// Gate labels and confidences.
const (
	LabelPass = "PASS"
	LabelFail = "FAIL"

	gateDecidedConfidence  = 0.9
	gateInferredConfidence = 0.6
)

var aspectLine = regexp.MustCompile(`(?i)^ASPEKT[_ ]?(\d+)\s*:\s*(.*)$`)

// AspectVerdict is the parsed judgment for one gate rule.
type AspectVerdict struct {
	Index     int
	Rule      domain.GateRule
	Passed    bool
	Reasoning string
	Outcome   domain.MatchOutcome
}

// GateVerdict is the interpreted answer of a binary gate.
type GateVerdict struct {
	Passed    bool
	Outcome   domain.MatchOutcome
	Reasoning string
	Aspects   []AspectVerdict
}

// InterpretGate parses a gate answer. rules must be the list the prompt was
// built from: ASPEKT_n refers to rules[n-1].
//
// An aspect answered NEIN/NO/FALSE has no violation and passes; JA/YES/TRUE is a
// violation. Anything else, or a missing line, passes. When rules were sent
// the overall verdict is the AND over aspects, so an answer without aspect
// lines passes as unclear. Without rules the RESULT line decides, else a
// keyword scan that only fails when negatives outnumber affirmatives.
func InterpretGate(answer string, rules []domain.GateRule) GateVerdict {
	lines := splitLines(answer)

	var (
		result    polarity
		reasoning string
		aspects   = make(map[int]string)
	)
	for _, l := range lines {
		if v, ok := field(l, "RESULT"); ok && result == polarityUnknown {
			result = classifyToken(firstWord(v))
			continue
		}
		if v, ok := field(l, "REASONING"); ok && reasoning == "" {
			reasoning = v
			continue
		}
		if m := aspectLine.FindStringSubmatch(l); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if _, seen := aspects[n]; !seen {
				aspects[n] = m[2]
			}
		}
	}

	v := GateVerdict{Reasoning: reasoning}
	if v.Reasoning == "" {
		v.Reasoning = leadSentences(answer, 2)
	}

	answered := false
	allPassed := true
	for i, r := range rules {
		av := interpretAspect(i+1, r, aspects)
		if _, ok := aspects[i+1]; ok {
			answered = true
		}
		allPassed = allPassed && av.Passed
		v.Aspects = append(v.Aspects, av)
	}
	if len(rules) > 0 {
		v.Passed, v.Outcome = allPassed, domain.OutcomeUnclear
		if answered {
			v.Outcome = domain.OutcomeMatched
		}
		return v
	}

	switch result {
	case polarityYes:
		v.Passed, v.Outcome = true, domain.OutcomeMatched
	case polarityNo:
		v.Passed, v.Outcome = false, domain.OutcomeMatched
	default:
		v.Passed, v.Outcome = keywordVerdict(answer)
	}
	return v
}

// interpretAspect reads the ASPEKT_n answer for one rule.
func interpretAspect(n int, rule domain.GateRule, aspects map[int]string) AspectVerdict {
	av := AspectVerdict{
		Index:     n,
		Rule:      rule,
		Passed:    true,
		Reasoning: "Keine spezifische Bewertung gefunden",
		Outcome:   domain.OutcomeUnclear,
	}
	part, ok := aspects[n]
	if !ok {
		return av
	}

	tok, why := splitVerdict(part)
	if why != "" {
		av.Reasoning = why
	}
	switch classifyToken(tok) {
	case polarityNo:
		av.Passed, av.Outcome = true, domain.OutcomeMatched
	case polarityYes:
		av.Passed, av.Outcome = false, domain.OutcomeMatched
	}
	return av
}

// keywordVerdict is the last-resort scan over the whole answer.
func keywordVerdict(answer string) (bool, domain.MatchOutcome) {
	yes, no := countPolarity(answer)
	switch {
	case no > yes:
		return false, domain.OutcomeInferred
	case yes > no:
		return true, domain.OutcomeInferred
	default:
		return true, domain.OutcomeUnclear
	}
}

// aspectKey names an aspect in the criteria breakdown.
func aspectKey(av AspectVerdict) string {
	if av.Rule.ID != "" {
		return av.Rule.ID
	}
	return fmt.Sprintf("aspekt_%d", av.Index)
}

// Result converts the verdict into an evaluation result for scheme.
func (v GateVerdict) Result(scheme *domain.SchemeDefinition, ctxType domain.ContextType) domain.EvaluationResult {
	label := LabelFail
	status := "NICHT BESTANDEN"
	if v.Passed {
		label = LabelPass
		status = "BESTANDEN"
	}
	confidence := gateInferredConfidence
	if v.Outcome == domain.OutcomeMatched {
		confidence = gateDecidedConfidence
	}

	res := domain.EvaluationResult{
		SchemeID:   scheme.ID,
		Dimension:  scheme.Dimension,
		Value:      domain.Ptr(domain.BoolValue(v.Passed)),
		Label:      domain.Ptr(label),
		Confidence: domain.Ptr(confidence),
		Reasoning:  fmt.Sprintf("Ergebnis: %s\n\nBegründung: %s", status, v.Reasoning),
		ScaleInfo: map[string]any{
			"type":              string(domain.KindBinaryGate),
			"description":       scheme.Description,
			"criteria":          scheme.Criteria,
			"context_type":      string(ctxType.Normalize()),
			"total_aspects":     len(scheme.GateRules),
			"evaluated_aspects": len(v.Aspects),
			"outcome":           string(v.Outcome),
		},
	}

	if len(v.Aspects) > 0 {
		res.Criteria = make(map[string]domain.Criterion, len(v.Aspects))
		for _, av := range v.Aspects {
			res.Criteria[aspectKey(av)] = domain.Criterion{
				Passed:     domain.Ptr(av.Passed),
				Reasoning:  av.Reasoning,
				Rule:       av.Rule.Description,
				Severity:   av.Rule.Severity,
				LegalBasis: av.Rule.LegalBasis,
				Outcome:    av.Outcome,
			}
		}
	}

	if !v.Passed {
		res.Violations = v.violations(scheme)
	}
	return res
}

func (v GateVerdict) violations(scheme *domain.SchemeDefinition) []domain.LegalViolation {
	var out []domain.LegalViolation
	for _, av := range v.Aspects {
		if av.Passed {
			continue
		}
		out = append(out, domain.LegalViolation{
			SchemeID:    scheme.ID,
			RuleID:      aspectKey(av),
			Description: av.Rule.Description,
			Severity:    av.Rule.Severity,
			LegalBasis:  av.Rule.LegalBasis,
			Reasoning:   av.Reasoning,
		})
	}
	if len(out) == 0 {
		out = append(out, domain.LegalViolation{
			SchemeID:    scheme.ID,
			Description: scheme.Description,
			Reasoning:   v.Reasoning,
		})
	}
	return out
}
