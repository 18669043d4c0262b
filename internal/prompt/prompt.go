// Package prompt renders the instructions sent to the completion service for
// each scale kind. Builders are pure: the same inputs always yield the same
// prompt text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-rubric/internal/domain"
)

// FilterRules returns the gate rules evaluated in the given context.
// Content context drops platform-only rules; every other context keeps all.
func FilterRules(rules []domain.GateRule, ctxType domain.ContextType) []domain.GateRule {
	out := make([]domain.GateRule, 0, len(rules))
	for _, r := range rules {
		if ctxType.Includes(r.EffectiveScope()) {
			out = append(out, r)
		}
	}
	return out
}

// Gate builds the binary gate prompt. Aspects are numbered over the rules
// that survive context filtering; the interpreter must use the same list.
func Gate(text string, scheme *domain.SchemeDefinition, rules []domain.GateRule) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Prüfen Sie diesen Text für: %s\n\n", scheme.Description)
	fmt.Fprintf(&b, "Text: %s\n\n", text)

	criteria := scheme.Criteria
	if criteria == "" {
		criteria = "Prüfen Sie, ob der Inhalt die Gate-Anforderungen erfüllt"
	}
	fmt.Fprintf(&b, "Prüfkriterien: %s\n", criteria)

	if len(rules) > 0 {
		b.WriteString("\nPrüfen Sie jeden der folgenden Aspekte einzeln:\n")
		for i, r := range rules {
			severity := r.Severity
			if severity == "" {
				severity = "unbekannt"
			}
			fmt.Fprintf(&b, "%d. %s (Schwere: %s", i+1, r.Description, severity)
			if r.LegalBasis != "" {
				fmt.Fprintf(&b, ", Rechtsgrundlage: %s", r.LegalBasis)
			}
			b.WriteString(")\n")
		}
	}

	b.WriteString("\nGeben Sie Ihre Bewertung in diesem Format an:\n")
	b.WriteString("RESULT: [JA/NEIN] (JA = Anforderungen erfüllt)\n")
	b.WriteString("REASONING: [Kurze Erklärung der Entscheidung auf Deutsch in maximal 4-5 Sätzen]\n")

	if len(rules) > 0 {
		b.WriteString("\nBewerten Sie jeden Aspekt einzeln mit ")
		b.WriteString("ASPEKT_[NUMMER]: [JA/NEIN] - [Begründung] (JA = Verstoß liegt vor, NEIN = kein Verstoß)\n")
		b.WriteString("\nBeispiel:\nRESULT: JA\nREASONING: Der Text enthält keine unzulässigen Inhalte.\n")
		b.WriteString("ASPEKT_1: NEIN - Kein Verstoß erkennbar\n")
	}

	return b.String()
}

// Rubric builds the ordinal rubric prompt listing every anchor.
func Rubric(text string, scheme *domain.SchemeDefinition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Bewerten Sie diesen Text anhand der folgenden Rubrik für %s:\n\n", scheme.Dimension)
	for _, a := range scheme.Anchors {
		fmt.Fprintf(&b, "Level %d: %s", a.Level, a.Label)
		if a.Description != "" {
			fmt.Fprintf(&b, " - %s", a.Description)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nText: %s\n\n", text)
	b.WriteString("Geben Sie Ihre Bewertung in diesem Format an:\n")
	b.WriteString("SCORE: [Level-Nummer]\n")
	b.WriteString("LABEL: [Level-Bezeichnung]\n")
	b.WriteString("REASONING: [Kurze Erklärung auf Deutsch in maximal 4-5 Sätzen]\n")

	return b.String()
}

// Checklist builds the additive checklist prompt with each item's level table.
func Checklist(text string, scheme *domain.SchemeDefinition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Bewerten Sie diesen Text anhand der folgenden Checkliste für %s:\n\n", scheme.Dimension)
	for i, item := range scheme.Items {
		fmt.Fprintf(&b, "%d. %s (ID: %s, Gewicht: %g)\n", i+1, item.Prompt, item.ID, item.Weight)
		if len(item.Levels) > 0 {
			b.WriteString("   Bewertungsskala:\n")
			for _, lv := range item.Levels {
				desc := lv.Description
				if desc == "" {
					desc = fmt.Sprintf("Level %d", lv.Level)
				}
				fmt.Fprintf(&b, "   %d: %g - %s\n", lv.Level, lv.Score, desc)
			}
		}
	}

	fmt.Fprintf(&b, "\nText: %s\n\n", text)
	b.WriteString("Für jedes Kriterium geben Sie Ihre Bewertung in diesem exakten Format an:\n")
	b.WriteString("[KRITERIUM_ID]: [LEVEL_NUMMER] - [Kurze Begründung auf Deutsch]\n")
	if len(scheme.Items) > 0 {
		fmt.Fprintf(&b, "\nBeispiel:\n%s: 2 - Begründung\n", scheme.Items[0].ID)
	}

	return b.String()
}

// ItemLevel is one resolved checklist item passed to the summary prompt.
type ItemLevel struct {
	Prompt   string
	Response string
}

// ChecklistSummary asks for a short prose summary of an already scored checklist.
func ChecklistSummary(scheme *domain.SchemeDefinition, items []ItemLevel, score float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Erstellen Sie eine ausführliche Bewertung für die Dimension '%s' basierend auf folgenden Einzelkriterien:\n\n", scheme.Dimension)
	for _, it := range items {
		fmt.Fprintf(&b, "- %s: Level %s\n", it.Prompt, it.Response)
	}
	fmt.Fprintf(&b, "\nGesamtscore: %.2f von %g\n\n", score, scheme.EffectiveScaleFactor())
	b.WriteString("Erstellen Sie eine zusammenhängende Bewertung (2-3 Sätze), die die wichtigsten Stärken und Schwächen erklärt.\n")

	return b.String()
}
