package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rubric/internal/domain"
)

func testRubricScheme(selection domain.SelectionStrategy) *domain.SchemeDefinition {
	return &domain.SchemeDefinition{
		ID:        "sachrichtigkeit_old",
		Kind:      domain.KindOrdinalRubric,
		Dimension: "accuracy",
		Selection: selection,
		Anchors: []domain.Anchor{
			{Level: 1, Label: "Mangelhaft"},
			{Level: 3, Label: "Solide"},
			{Level: 5, Label: "Exzellent"},
		},
	}
}

func TestInterpretRubricStructured(t *testing.T) {
	s := testRubricScheme("")

	tests := []struct {
		name      string
		answer    string
		wantLevel int
		wantLabel string
	}{
		{name: "plain", answer: "SCORE: 3\nLABEL: Solide\nREASONING: Gut belegt.", wantLevel: 3, wantLabel: "Solide"},
		{name: "bracketed", answer: "SCORE: [5]\nREASONING: ok", wantLevel: 5, wantLabel: "Exzellent"},
		{name: "integral decimal", answer: "SCORE: 3.0", wantLevel: 3, wantLabel: "Solide"},
		{name: "comma decimal", answer: "**SCORE:** 1,0", wantLevel: 1, wantLabel: "Mangelhaft"},
		{name: "label from model wins", answer: "SCORE: 3\nLABEL: [Ordentlich]", wantLevel: 3, wantLabel: "Ordentlich"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := InterpretRubric(tt.answer, s)
			require.True(t, v.Found)
			assert.Equal(t, tt.wantLevel, v.Level)
			assert.Equal(t, tt.wantLabel, v.Label)
			assert.Equal(t, domain.OutcomeMatched, v.Outcome)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{in: "4", want: 4, ok: true},
		{in: "4/5", want: 4, ok: true},
		{in: "(2)", want: 2, ok: true},
		{in: "2.5", ok: false},
		{in: "gut", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAnchorSelection(t *testing.T) {
	anchors := testRubricScheme("").Anchors
	answer := "Der Text ist keineswegs mangelhaft, insgesamt eher solide."

	t.Run("first match follows declaration order", func(t *testing.T) {
		a, ok := MatchFirstAnchor(answer, anchors)
		require.True(t, ok)
		assert.Equal(t, 1, a.Level)
	})

	t.Run("best fit takes the last mention", func(t *testing.T) {
		a, ok := MatchBestAnchor(answer, anchors)
		require.True(t, ok)
		assert.Equal(t, 3, a.Level)
	})

	t.Run("levels match as standalone numbers", func(t *testing.T) {
		a, ok := MatchFirstAnchor("Ich vergebe eine 5.", anchors)
		require.True(t, ok)
		assert.Equal(t, 5, a.Level)

		_, ok = MatchFirstAnchor("Es gibt 15 Belege und 30 Quellen.", anchors)
		assert.False(t, ok)
	})

	t.Run("best fit prefers the longer label at the same position", func(t *testing.T) {
		overlapping := []domain.Anchor{
			{Level: 2, Label: "Gut"},
			{Level: 4, Label: "Gut belegt"},
		}
		a, ok := MatchBestAnchor("Fazit: gut belegt und klar", overlapping)
		require.True(t, ok)
		assert.Equal(t, 4, a.Level)
	})

	t.Run("nothing mentioned", func(t *testing.T) {
		_, ok := MatchBestAnchor("keine Angabe", anchors)
		assert.False(t, ok)
	})
}

func TestInterpretRubricFallback(t *testing.T) {
	answer := "Der Text ist keineswegs mangelhaft, insgesamt eher solide."

	t.Run("first_match strategy", func(t *testing.T) {
		v := InterpretRubric(answer, testRubricScheme(domain.SelectFirstMatch))
		require.True(t, v.Found)
		assert.Equal(t, 1, v.Level)
		assert.Equal(t, domain.OutcomeInferred, v.Outcome)
	})

	t.Run("best_fit strategy", func(t *testing.T) {
		v := InterpretRubric(answer, testRubricScheme(domain.SelectBestFit))
		require.True(t, v.Found)
		assert.Equal(t, 3, v.Level)
		assert.Equal(t, "Solide", v.Label)
	})

	t.Run("unparseable score falls back to anchors", func(t *testing.T) {
		v := InterpretRubric("SCORE: hoch\nDas Ergebnis ist exzellent.", testRubricScheme(""))
		require.True(t, v.Found)
		assert.Equal(t, 5, v.Level)
		assert.Equal(t, domain.OutcomeInferred, v.Outcome)
	})
}

func TestRubricVerdictResult(t *testing.T) {
	s := testRubricScheme("")

	t.Run("structured", func(t *testing.T) {
		res := InterpretRubric("SCORE: 5\nREASONING: Präzise.", s).Result(s)
		n, ok := res.Number()
		require.True(t, ok)
		assert.InDelta(t, 5.0, n, 1e-9)
		assert.Equal(t, "Exzellent", *res.Label)
		assert.InDelta(t, 0.8, *res.Confidence, 1e-9)
		assert.Contains(t, res.Reasoning, "Präzise.")
		assert.Nil(t, res.UnavailableReason)
	})

	t.Run("inferred", func(t *testing.T) {
		res := InterpretRubric("Insgesamt solide Arbeit.", s).Result(s)
		assert.InDelta(t, 0.6, *res.Confidence, 1e-9)
	})

	t.Run("no anchor", func(t *testing.T) {
		res := InterpretRubric("Keine Aussage möglich.", s).Result(s)
		assert.True(t, res.IsUnavailable())
		require.NotNil(t, res.UnavailableReason)
		assert.Equal(t, ReasonNoAnchor, *res.UnavailableReason)
	})
}
