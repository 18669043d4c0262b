package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ahrav/go-rubric/internal/domain"
)

const (
	rubricParsedConfidence   = 0.8
	rubricInferredConfidence = 0.6
)

// ReasonNoAnchor is the unavailable reason when neither SCORE nor any anchor is found.
const ReasonNoAnchor = "no matching anchor found"

// RubricVerdict is the interpreted answer of an ordinal rubric.
type RubricVerdict struct {
	Level     int
	Found     bool
	Label     string
	Reasoning string
	Outcome   domain.MatchOutcome
}

// InterpretRubric parses SCORE/LABEL/REASONING lines and falls back to anchor
// matching using the scheme's selection strategy.
func InterpretRubric(answer string, scheme *domain.SchemeDefinition) RubricVerdict {
	v := RubricVerdict{Outcome: domain.OutcomeUnclear}

	for _, l := range splitLines(answer) {
		if s, ok := field(l, "SCORE"); ok && !v.Found {
			if level, ok := parseLevel(s); ok {
				v.Level, v.Found, v.Outcome = level, true, domain.OutcomeMatched
			}
			continue
		}
		if s, ok := field(l, "LABEL"); ok && v.Label == "" {
			v.Label = strings.Trim(s, "[]")
			continue
		}
		if s, ok := field(l, "REASONING"); ok && v.Reasoning == "" {
			v.Reasoning = s
		}
	}

	if !v.Found {
		var (
			anchor domain.Anchor
			ok     bool
		)
		switch scheme.EffectiveSelection() {
		case domain.SelectBestFit:
			anchor, ok = MatchBestAnchor(answer, scheme.Anchors)
		default:
			anchor, ok = MatchFirstAnchor(answer, scheme.Anchors)
		}
		if ok {
			v.Level, v.Found, v.Outcome = anchor.Level, true, domain.OutcomeInferred
			v.Label = anchor.Label
		}
		v.Reasoning = strings.TrimSpace(answer)
	}

	if v.Found && v.Label == "" {
		if a, ok := scheme.AnchorForLevel(v.Level); ok {
			v.Label = a.Label
		}
	}
	return v
}

// parseLevel reads an integral level such as "3", "[3]", "3/5" or "3.0".
func parseLevel(s string) (int, bool) {
	s = strings.TrimLeft(strings.TrimSpace(s), "[(")
	num := leadingNumber.FindString(s)
	if num == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(num, ",", ".", 1), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// MatchFirstAnchor returns the first anchor, in declaration order, whose label
// (case-insensitive) or level (as a standalone number) appears in the answer.
func MatchFirstAnchor(answer string, anchors []domain.Anchor) (domain.Anchor, bool) {
	lower := strings.ToLower(answer)
	for _, a := range anchors {
		if a.Label != "" && strings.Contains(lower, strings.ToLower(a.Label)) {
			return a, true
		}
		if levelPattern(a.Level).MatchString(answer) {
			return a, true
		}
	}
	return domain.Anchor{}, false
}

// MatchBestAnchor returns the anchor mentioned last in the answer, since
// answers state their verdict after discussing alternatives. Equal positions
// prefer the longer label.
func MatchBestAnchor(answer string, anchors []domain.Anchor) (domain.Anchor, bool) {
	lower := strings.ToLower(answer)
	best, bestPos, found := domain.Anchor{}, -1, false
	for _, a := range anchors {
		pos := -1
		if a.Label != "" {
			pos = strings.LastIndex(lower, strings.ToLower(a.Label))
		}
		if locs := levelPattern(a.Level).FindAllStringIndex(answer, -1); len(locs) > 0 {
			pos = max(pos, locs[len(locs)-1][0])
		}
		if pos < 0 {
			continue
		}
		if pos > bestPos || (pos == bestPos && len(a.Label) > len(best.Label)) {
			best, bestPos, found = a, pos, true
		}
	}
	return best, found
}

func levelPattern(level int) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\d.,])` + regexp.QuoteMeta(strconv.Itoa(level)) + `($|[^\d])`)
}

// Result converts the verdict into an evaluation result for scheme.
func (v RubricVerdict) Result(scheme *domain.SchemeDefinition) domain.EvaluationResult {
	if !v.Found {
		return domain.Unavailable(scheme, ReasonNoAnchor)
	}

	confidence := rubricParsedConfidence
	if v.Outcome != domain.OutcomeMatched {
		confidence = rubricInferredConfidence
	}

	levels := make([]string, 0, len(scheme.Anchors))
	for _, a := range scheme.Anchors {
		levels = append(levels, fmt.Sprintf("%d: %s", a.Level, a.Label))
	}

	res := domain.EvaluationResult{
		SchemeID:   scheme.ID,
		Dimension:  scheme.Dimension,
		Value:      domain.Ptr(domain.NumberValue(float64(v.Level))),
		Confidence: domain.Ptr(confidence),
		Reasoning:  fmt.Sprintf("Bewertung: Level %d - %s\n\nBegründung: %s", v.Level, v.Label, v.Reasoning),
		ScaleInfo: map[string]any{
			"type":      string(domain.KindOrdinalRubric),
			"range":     scheme.OutputRange,
			"anchors":   len(scheme.Anchors),
			"levels":    levels,
			"selection": string(scheme.EffectiveSelection()),
			"outcome":   string(v.Outcome),
		},
	}
	if v.Label != "" {
		res.Label = domain.Ptr(v.Label)
	} else if l, ok := scheme.Labels.Lookup(float64(v.Level)); ok {
		res.Label = domain.Ptr(l)
	}
	return res
}
