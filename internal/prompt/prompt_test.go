package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rubric/internal/domain"
)

func gateScheme() *domain.SchemeDefinition {
	return &domain.SchemeDefinition{
		ID:          "jugendschutz",
		Kind:        domain.KindBinaryGate,
		Dimension:   "youth",
		Description: "Jugendschutz",
		GateRules: []domain.GateRule{
			{ID: "gewalt", Description: "Gewaltdarstellung", Severity: "hoch", Scope: domain.ScopeContent},
			{ID: "fsk", Description: "Fehlende Altersfreigabe", Scope: domain.ScopePlatform},
			{ID: "hetze", Description: "Herabwürdigung", LegalBasis: "§ 130 StGB", Scope: domain.ScopeBoth},
			{ID: "untagged", Description: "Ohne Scope"},
		},
	}
}

func ruleIDs(rules []domain.GateRule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestFilterRules(t *testing.T) {
	s := gateScheme()

	tests := []struct {
		ctx  domain.ContextType
		want []string
	}{
		{ctx: domain.ContextContent, want: []string{"gewalt", "hetze", "untagged"}},
		{ctx: domain.ContextPlatform, want: []string{"gewalt", "fsk", "hetze", "untagged"}},
		{ctx: domain.ContextBoth, want: []string{"gewalt", "fsk", "hetze", "untagged"}},
		{ctx: "", want: []string{"gewalt", "fsk", "hetze", "untagged"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.ctx), func(t *testing.T) {
			assert.Equal(t, tt.want, ruleIDs(FilterRules(s.GateRules, tt.ctx)))
		})
	}
}

func TestGatePromptNumbersFilteredRules(t *testing.T) {
	s := gateScheme()
	rules := FilterRules(s.GateRules, domain.ContextContent)

	p := Gate("Ein Text.", s, rules)
	assert.Contains(t, p, "1. Gewaltdarstellung (Schwere: hoch)")
	assert.Contains(t, p, "2. Herabwürdigung (Schwere: unbekannt, Rechtsgrundlage: § 130 StGB)")
	assert.Contains(t, p, "3. Ohne Scope")
	assert.NotContains(t, p, "Altersfreigabe")
	assert.Contains(t, p, "ASPEKT_[NUMMER]")
	assert.Contains(t, p, "Text: Ein Text.")

	assert.Equal(t, p, Gate("Ein Text.", s, rules), "builders are deterministic")
}

func TestGatePromptWithoutRules(t *testing.T) {
	s := &domain.SchemeDefinition{ID: "g", Description: "Strafrecht"}
	p := Gate("x", s, nil)
	assert.Contains(t, p, "RESULT:")
	assert.NotContains(t, p, "ASPEKT_")
}

func TestRubricPrompt(t *testing.T) {
	s := &domain.SchemeDefinition{
		Dimension: "accuracy",
		Anchors: []domain.Anchor{
			{Level: 1, Label: "Fehlerhaft", Description: "Viele Fehler"},
			{Level: 5, Label: "Einwandfrei"},
		},
	}
	p := Rubric("Text", s)
	assert.Contains(t, p, "Level 1: Fehlerhaft - Viele Fehler")
	assert.Contains(t, p, "Level 5: Einwandfrei\n")
	assert.Contains(t, p, "SCORE:")
}

func TestChecklistPrompts(t *testing.T) {
	s := &domain.SchemeDefinition{
		Dimension:   "neutrality",
		ScaleFactor: 5,
		Items: []domain.ChecklistItem{{
			ID: "perspektiven", Prompt: "Perspektiven?", Weight: 2,
			Levels: []domain.LevelValue{{Level: 1, Score: 0}, {Level: 2, Score: 1, Description: "voll"}},
		}},
	}

	p := Checklist("Text", s)
	assert.Contains(t, p, "1. Perspektiven? (ID: perspektiven, Gewicht: 2)")
	assert.Contains(t, p, "   1: 0 - Level 1")
	assert.Contains(t, p, "   2: 1 - voll")
	assert.Contains(t, p, "perspektiven: 2 - Begründung")

	summary := ChecklistSummary(s, []ItemLevel{{Prompt: "Perspektiven?", Response: "2"}}, 4.25)
	require.Contains(t, summary, "- Perspektiven?: Level 2")
	assert.Contains(t, summary, "Gesamtscore: 4.25 von 5")
}
