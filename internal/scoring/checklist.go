package scoring

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/prompt"
)

const (
	checklistConfidence = 0.8

	// nearbyWindow is the number of lines, starting at the first mention of an
	// item ID, searched by the fallback tiers.
	nearbyWindow = 3

	responseUnclear = "UNCLEAR"
)

// ReasonNoItems is the unavailable reason when no checklist item entered
// the score.
const ReasonNoItems = "no checklist item could be parsed"

// ItemVerdict is the resolved level of one checklist item.
type ItemVerdict struct {
	Item      domain.ChecklistItem
	Resolved  bool
	Level     *int
	Score     float64
	Reasoning string
	Outcome   domain.MatchOutcome
}

// Response renders the chosen level, or UNCLEAR.
func (iv ItemVerdict) Response() string {
	if iv.Level == nil {
		return responseUnclear
	}
	return strconv.Itoa(*iv.Level)
}

// ChecklistVerdict is the interpreted answer of an additive checklist.
type ChecklistVerdict struct {
	Items []ItemVerdict
	// Raw is the weighted mean of item scores before scaling.
	Raw    float64
	Value  float64
	Policy domain.MissingPolicy
	// Weight is the total weight counted into Raw under Policy. Zero means
	// nothing could be scored.
	Weight float64
}

// Scored reports whether any item weight entered the score. Under the zero
// policy this holds even when no item resolved.
func (v ChecklistVerdict) Scored() bool {
	return v.Weight > 0
}

// Resolved reports how many items produced a score.
func (v ChecklistVerdict) Resolved() int {
	n := 0
	for _, iv := range v.Items {
		if iv.Resolved {
			n++
		}
	}
	return n
}

// InterpretChecklist resolves every item of scheme against answer and
// computes the scaled weighted score.
func InterpretChecklist(answer string, scheme *domain.SchemeDefinition) ChecklistVerdict {
	lines := splitLines(answer)
	v := ChecklistVerdict{Policy: scheme.EffectiveMissingPolicy()}

	var sum, weights float64
	for _, item := range scheme.Items {
		iv := resolveItem(lines, item)
		v.Items = append(v.Items, iv)

		switch {
		case iv.Resolved:
			sum += iv.Score * item.Weight
			weights += item.Weight
		case v.Policy == domain.MissingZero:
			weights += item.Weight
		}
	}

	v.Weight = weights
	if weights > 0 {
		v.Raw = sum / weights
	}
	v.Value = domain.Round2(v.Raw * scheme.EffectiveScaleFactor())
	return v
}

// resolveItem walks the structured line and the fallback tiers in order.
func resolveItem(lines []string, item domain.ChecklistItem) ItemVerdict {
	if iv, ok := parseItemLine(lines, item); ok {
		return iv
	}

	window := nearbyLines(lines, item.ID)
	if iv, ok := scanNearbyLevel(window, item); ok {
		return iv
	}
	if iv, ok := countYesNo(window, item); ok {
		return iv
	}
	if iv, ok := missingSentinel(item); ok {
		return iv
	}
	return ItemVerdict{Item: item, Reasoning: "Keine Bewertung gefunden", Outcome: domain.OutcomeUnclear}
}

func levelVerdict(item domain.ChecklistItem, lv domain.LevelValue, why string, outcome domain.MatchOutcome) ItemVerdict {
	return ItemVerdict{
		Item:      item,
		Resolved:  true,
		Level:     domain.Ptr(lv.Level),
		Score:     lv.Score,
		Reasoning: why,
		Outcome:   outcome,
	}
}

// parseItemLine reads "<id>: <level> [- reasoning]".
func parseItemLine(lines []string, item domain.ChecklistItem) (ItemVerdict, bool) {
	for _, l := range lines {
		rest, ok := field(l, item.ID)
		if !ok {
			continue
		}
		tok, why := splitVerdict(rest)

		if level, ok := parseLevel(tok); ok {
			if lv, ok := item.Level(level); ok {
				return levelVerdict(item, lv, why, domain.OutcomeMatched), true
			}
			if lv, ok := item.Closest(level); ok {
				return levelVerdict(item, lv, why, domain.OutcomeInferred), true
			}
		}

		var (
			lv    domain.LevelValue
			found bool
		)
		switch classifyToken(tok) {
		case polarityYes:
			lv, found = item.Max()
		case polarityNo:
			lv, found = item.Min()
		}
		if found {
			return levelVerdict(item, lv, why, domain.OutcomeInferred), true
		}
		// An unusable token falls through to the fallback tiers.
		return ItemVerdict{}, false
	}
	return ItemVerdict{}, false
}

// nearbyLines returns the line first mentioning id and the lines after it.
func nearbyLines(lines []string, id string) []string {
	needle := strings.ToLower(id)
	for i, l := range lines {
		if strings.Contains(strings.ToLower(l), needle) {
			return lines[i:min(i+nearbyWindow, len(lines))]
		}
	}
	return nil
}

// scanNearbyLevel takes the first standalone integer in window that is a
// declared level.
func scanNearbyLevel(window []string, item domain.ChecklistItem) (ItemVerdict, bool) {
	for _, l := range window {
		for _, tok := range standaloneInt.FindAllString(l, -1) {
			n, err := strconv.Atoi(tok)
			if err != nil {
				continue
			}
			if lv, ok := item.Level(n); ok {
				return levelVerdict(item, lv, "Inferred from context", domain.OutcomeInferred), true
			}
		}
	}
	return ItemVerdict{}, false
}

// countYesNo compares yes/no keywords in window. Ties resolve nothing.
func countYesNo(window []string, item domain.ChecklistItem) (ItemVerdict, bool) {
	if len(window) == 0 {
		return ItemVerdict{}, false
	}
	yes, no := countPolarity(strings.Join(window, "\n"))

	var (
		lv domain.LevelValue
		ok bool
	)
	switch {
	case no > yes:
		lv, ok = item.Min()
	case yes > no:
		lv, ok = item.Max()
	}
	if !ok {
		return ItemVerdict{}, false
	}
	return levelVerdict(item, lv, "Inferred from keywords", domain.OutcomeInferred), true
}

// missingSentinel applies the item's configured na score.
func missingSentinel(item domain.ChecklistItem) (ItemVerdict, bool) {
	if item.Missing == nil {
		return ItemVerdict{}, false
	}
	return ItemVerdict{
		Item:      item,
		Resolved:  true,
		Score:     *item.Missing,
		Reasoning: "Keine Bewertung gefunden",
		Outcome:   domain.OutcomeUnclear,
	}, true
}

// SummaryItems lists item prompts with their chosen level for the summary prompt.
func (v ChecklistVerdict) SummaryItems() []prompt.ItemLevel {
	out := make([]prompt.ItemLevel, 0, len(v.Items))
	for _, iv := range v.Items {
		out = append(out, prompt.ItemLevel{Prompt: iv.Item.Prompt, Response: iv.Response()})
	}
	return out
}

// FallbackSummary is the templated reasoning used when no summary was generated.
func FallbackSummary(scheme *domain.SchemeDefinition, value float64) string {
	pct := value / scheme.EffectiveScaleFactor() * 100
	return fmt.Sprintf("Bewertung für %s: %.0f%% der möglichen Punkte erreicht.", title(scheme.Dimension), pct)
}

func title(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Result converts the verdict into an evaluation result. An empty summary
// is replaced by FallbackSummary.
func (v ChecklistVerdict) Result(scheme *domain.SchemeDefinition, summary string) domain.EvaluationResult {
	if !v.Scored() {
		return domain.Unavailable(scheme, ReasonNoItems)
	}
	if summary == "" {
		summary = FallbackSummary(scheme, v.Value)
	}

	criteria := make(map[string]domain.Criterion, len(v.Items))
	for _, iv := range v.Items {
		c := domain.Criterion{
			Name:      iv.Item.Prompt,
			Response:  iv.Response(),
			Weight:    domain.Ptr(iv.Item.Weight),
			Reasoning: iv.Reasoning,
			Outcome:   iv.Outcome,
		}
		if iv.Resolved {
			c.NormalizedScore = domain.Ptr(domain.Round2(iv.Score * scheme.EffectiveScaleFactor()))
		}
		criteria[iv.Item.ID] = c
	}

	res := domain.EvaluationResult{
		SchemeID:   scheme.ID,
		Dimension:  scheme.Dimension,
		Value:      domain.Ptr(domain.NumberValue(v.Value)),
		Confidence: domain.Ptr(checklistConfidence),
		Reasoning:  summary,
		Criteria:   criteria,
		ScaleInfo: map[string]any{
			"type":             string(domain.KindChecklistAdditive),
			"raw_range":        "0.0-1.0",
			"normalized_range": fmt.Sprintf("0.0-%g", scheme.EffectiveScaleFactor()),
			"raw_score":        domain.Round2(v.Raw),
			"values":           scaleValues(scheme),
			"missing_policy":   string(v.Policy),
			"resolved_items":   v.Resolved(),
			"total_items":      len(v.Items),
		},
	}
	if l, ok := scheme.Labels.Lookup(v.Value); ok {
		res.Label = domain.Ptr(l)
	}
	return res
}

// scaleValues describes the first item's level table.
func scaleValues(scheme *domain.SchemeDefinition) map[string]any {
	out := map[string]any{}
	if len(scheme.Items) == 0 {
		return out
	}
	first := scheme.Items[0]
	for _, lv := range first.Levels {
		out[strconv.Itoa(lv.Level)] = lv.Score
	}
	if first.Missing != nil {
		out["na"] = nil
	}
	return out
}
