package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rubric/internal/catalog"
	"github.com/ahrav/go-rubric/internal/domain"
)

const sampleText = "Ein ausreichend langer Beispieltext."

// route is the scripted answer for prompts containing a marker.
type route struct {
	text  string
	err   error
	delay time.Duration
}

// routingCompleter answers by prompt marker and records call counts and the
// peak number of concurrent calls.
type routingCompleter struct {
	routes map[string]route

	mu    sync.Mutex
	calls map[string]int

	inflight atomic.Int64
	peak     atomic.Int64
}

func newRoutingCompleter(routes map[string]route) *routingCompleter {
	return &routingCompleter{routes: routes, calls: make(map[string]int)}
}

func (r *routingCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	for marker, rt := range r.routes {
		if !strings.Contains(req.Prompt, marker) {
			continue
		}
		r.mu.Lock()
		r.calls[marker]++
		r.mu.Unlock()

		if rt.delay > 0 {
			select {
			case <-time.After(rt.delay):
			case <-ctx.Done():
				return domain.Completion{}, ctx.Err()
			}
		}
		return domain.Completion{Text: rt.text}, rt.err
	}
	return domain.Completion{}, errors.New("no route for prompt")
}

func (r *routingCompleter) count(marker string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[marker]
}

// rubric builds a rubric scheme whose prompt carries marker as its dimension.
func rubric(id, marker string, labels map[float64]string) domain.SchemeDefinition {
	return domain.SchemeDefinition{
		ID:        id,
		Kind:      domain.KindOrdinalRubric,
		Dimension: marker,
		Labels:    domain.NewLabelThresholds(labels),
		Anchors: []domain.Anchor{
			{Level: 1, Label: "schwach"},
			{Level: 2, Label: "mäßig"},
			{Level: 4, Label: "stark"},
		},
	}
}

// gate builds a gate scheme whose prompt carries marker as its description.
func gate(id, marker string) domain.SchemeDefinition {
	return domain.SchemeDefinition{ID: id, Kind: domain.KindBinaryGate, Dimension: id, Description: marker}
}

func derived(id string, method domain.RuleMethod, deps ...string) domain.SchemeDefinition {
	return domain.SchemeDefinition{
		ID:           id,
		Kind:         domain.KindDerived,
		Dimension:    id,
		Dependencies: deps,
		Rules:        []domain.DerivedRule{{Value: domain.RuleValue{Method: method}}},
	}
}

func newTestEngine(t *testing.T, c *routingCompleter, defs []domain.SchemeDefinition, opts ...Option) *Engine {
	t.Helper()
	cat, err := catalog.New(defs...)
	require.NoError(t, err)
	return NewEngine(cat, c, opts...)
}

func request(ids ...string) domain.EvaluationRequest {
	return domain.NewEvaluationRequest(sampleText, ids, domain.ContextBoth)
}

func resultIDs(out *domain.EvaluationOutcome) []string {
	ids := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		ids = append(ids, r.SchemeID)
	}
	return ids
}

func TestEngineEvaluatesSharedDependencyOnce(t *testing.T) {
	c := newRoutingCompleter(map[string]route{
		"dim_x": {text: "SCORE: 4", delay: 10 * time.Millisecond},
		"dim_y": {text: "SCORE: 2"},
	})
	e := newTestEngine(t, c, []domain.SchemeDefinition{
		rubric("x", "dim_x", nil),
		rubric("y", "dim_y", nil),
		derived("d1", domain.MethodWeightedAverage, "x", "y"),
		derived("d2", domain.MethodSum, "x"),
	})

	out, err := e.Evaluate(context.Background(), request("d1", "d2", "x"))
	require.NoError(t, err)

	assert.Equal(t, 1, c.count("dim_x"))
	assert.Equal(t, 1, c.count("dim_y"))
	assert.Equal(t, []string{"d1", "d2", "x"}, resultIDs(out))

	d1, ok := out.Results[0].Number()
	require.True(t, ok)
	assert.InDelta(t, 3.0, d1, 1e-9)

	d2, ok := out.Results[1].Number()
	require.True(t, ok)
	assert.InDelta(t, 4.0, d2, 1e-9)
}

func TestEngineGateShortCircuit(t *testing.T) {
	c := newRoutingCompleter(map[string]route{
		"gate_one":   {text: "RESULT: JA"},
		"gate_two":   {text: "RESULT: NEIN\nREASONING: Verstoß"},
		"gate_three": {text: "RESULT: JA"},
		"dim_x":      {text: "SCORE: 4"},
	})
	e := newTestEngine(t, c, []domain.SchemeDefinition{
		gate("g1", "gate_one"),
		gate("g2", "gate_two"),
		gate("g3", "gate_three"),
		rubric("x", "dim_x", nil),
	})

	out, err := e.Evaluate(context.Background(), request("g1", "x", "g2", "g3"))
	require.NoError(t, err)

	assert.False(t, out.GatesPassed)
	assert.Equal(t, []string{"g1", "g2"}, resultIDs(out))
	assert.Nil(t, out.OverallScore)
	require.NotNil(t, out.OverallLabel)
	assert.Equal(t, domain.OverallRejected, *out.OverallLabel)

	assert.Zero(t, c.count("gate_three"))
	assert.Zero(t, c.count("dim_x"))
}

func TestEngineNullGateDoesNotReject(t *testing.T) {
	c := newRoutingCompleter(map[string]route{
		"gate_one": {err: errors.New("provider down")},
		"dim_x":    {text: "SCORE: 4"},
	})
	e := newTestEngine(t, c, []domain.SchemeDefinition{gate("g1", "gate_one"), rubric("x", "dim_x", nil)})

	out, err := e.Evaluate(context.Background(), request("g1", "x"))
	require.NoError(t, err)

	assert.True(t, out.GatesPassed)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].IsUnavailable())
	assert.Equal(t, "evaluation error: provider down", *out.Results[0].UnavailableReason)
	assert.Equal(t, 1, c.count("dim_x"))
}

func TestEngineUnavailableIsolation(t *testing.T) {
	c := newRoutingCompleter(map[string]route{
		"dim_y": {err: errors.New("boom")},
		"dim_z": {text: "SCORE: 2"},
	})
	e := newTestEngine(t, c, []domain.SchemeDefinition{rubric("y", "dim_y", nil), rubric("z", "dim_z", nil)})

	out, err := e.Evaluate(context.Background(), request("y", "z"))
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].IsUnavailable())
	assert.False(t, out.Results[1].IsUnavailable())

	require.NotNil(t, out.OverallScore)
	assert.InDelta(t, 2.0, *out.OverallScore, 1e-9)
}

func TestEngineOrderPreservation(t *testing.T) {
	c := newRoutingCompleter(map[string]route{
		"dim_a": {text: "SCORE: 1", delay: 5 * time.Millisecond},
		"dim_b": {text: "SCORE: 2"},
		"dim_c": {text: "SCORE: 4", delay: 20 * time.Millisecond},
	})
	e := newTestEngine(t, c, []domain.SchemeDefinition{
		rubric("a", "dim_a", nil),
		rubric("b", "dim_b", nil),
		rubric("c", "dim_c", nil),
	})

	out, err := e.Evaluate(context.Background(), request("c", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, resultIDs(out))
}

func TestEngineConcurrencyBound(t *testing.T) {
	routes := map[string]route{}
	defs := []domain.SchemeDefinition{}
	var requested, nested []string
	for _, id := range []string{"s1", "s2", "s3", "s4", "n1", "n2", "n3"} {
		marker := "dim_" + id
		routes[marker] = route{text: "SCORE: 2", delay: 10 * time.Millisecond}
		defs = append(defs, rubric(id, marker, nil))
		if strings.HasPrefix(id, "s") {
			requested = append(requested, id)
		} else {
			nested = append(nested, id)
		}
	}
	defs = append(defs, derived("outer", domain.MethodWeightedAverage, "inner", "s1"))
	defs = append(defs, derived("inner", domain.MethodSum, nested...))

	c := newRoutingCompleter(routes)
	e := newTestEngine(t, c, defs, WithMaxConcurrency(2))

	out, err := e.Evaluate(context.Background(), request(append(requested, "outer")...))
	require.NoError(t, err)

	assert.LessOrEqual(t, c.peak.Load(), int64(2))
	for _, id := range append(requested, nested...) {
		assert.Equal(t, 1, c.count("dim_"+id), id)
	}
	assert.Len(t, out.Results, len(requested)+1)
}

func TestEngineOverall(t *testing.T) {
	c := newRoutingCompleter(map[string]route{
		"gate_one": {text: "RESULT: JA"},
		"dim_x":    {text: "SCORE: 4"},
		"dim_y":    {text: "SCORE: 2"},
	})

	t.Run("label from the first contributing scheme", func(t *testing.T) {
		e := newTestEngine(t, c, []domain.SchemeDefinition{
			gate("g1", "gate_one"),
			rubric("x", "dim_x", map[float64]string{0: "niedrig", 3: "hoch"}),
			rubric("y", "dim_y", map[float64]string{0: "anders"}),
		})
		out, err := e.Evaluate(context.Background(), request("g1", "x", "y"))
		require.NoError(t, err)

		require.NotNil(t, out.OverallScore)
		assert.InDelta(t, 3.0, *out.OverallScore, 1e-9)
		require.NotNil(t, out.OverallLabel)
		assert.Equal(t, "hoch", *out.OverallLabel)
		assert.True(t, out.GatesPassed)
	})

	t.Run("no label without thresholds", func(t *testing.T) {
		e := newTestEngine(t, c, []domain.SchemeDefinition{rubric("y", "dim_y", nil)})
		out, err := e.Evaluate(context.Background(), request("y"))
		require.NoError(t, err)
		require.NotNil(t, out.OverallScore)
		assert.Nil(t, out.OverallLabel)
	})

	t.Run("gates only", func(t *testing.T) {
		e := newTestEngine(t, c, []domain.SchemeDefinition{gate("g1", "gate_one")})
		out, err := e.Evaluate(context.Background(), request("g1"))
		require.NoError(t, err)
		assert.Nil(t, out.OverallScore)
		assert.Nil(t, out.OverallLabel)
	})
}

func TestEngineRequestHandling(t *testing.T) {
	c := newRoutingCompleter(map[string]route{"dim_x": {text: "SCORE: 4"}})
	dangling := derived("dangling", domain.MethodSum, "nowhere")
	dangling.Rules[0].Conditions = []domain.Condition{{Dimension: "nowhere", Threshold: 1}}
	defs := []domain.SchemeDefinition{
		rubric("x", "dim_x", nil),
		derived("empty", domain.MethodSum),
		dangling,
	}

	t.Run("duplicates and unknown ids", func(t *testing.T) {
		e := newTestEngine(t, newRoutingCompleter(c.routes), defs)
		out, err := e.Evaluate(context.Background(), request("x", "unknown", "x"))
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, resultIDs(out))
	})

	t.Run("derived without dependencies", func(t *testing.T) {
		e := newTestEngine(t, c, defs)
		out, err := e.Evaluate(context.Background(), request("empty"))
		require.NoError(t, err)
		require.Len(t, out.Results, 1)
		assert.Equal(t, ReasonNoDependencies, *out.Results[0].UnavailableReason)
	})

	t.Run("unresolvable dependencies fall back to default", func(t *testing.T) {
		e := newTestEngine(t, c, defs)
		out, err := e.Evaluate(context.Background(), request("dangling"))
		require.NoError(t, err)
		require.Len(t, out.Results, 1)
		assert.Equal(t, domain.DefaultDerivedLabel, *out.Results[0].Label)
	})

	t.Run("boundary size limits do not apply", func(t *testing.T) {
		ids := []string{"x"}
		for i := range domain.MaxSchemesPerRq {
			ids = append(ids, fmt.Sprintf("unknown_%d", i))
		}
		e := newTestEngine(t, newRoutingCompleter(c.routes), defs)

		out, err := e.Evaluate(context.Background(), domain.NewEvaluationRequest("kurz", ids, ""))
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, resultIDs(out))
	})

	t.Run("errors", func(t *testing.T) {
		cat, err := catalog.New(defs...)
		require.NoError(t, err)

		_, err = NewEngine(cat, nil).Evaluate(context.Background(), request("x"))
		require.ErrorIs(t, err, domain.ErrNoCompleter)

		e := NewEngine(cat, c)
		_, err = e.Evaluate(context.Background(), domain.NewEvaluationRequest("", []string{"x"}, ""))
		require.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = e.Evaluate(context.Background(), domain.NewEvaluationRequest("Ein Text.", nil, ""))
		require.ErrorIs(t, err, domain.ErrInvalidRequest)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = e.Evaluate(ctx, request("x"))
		require.ErrorIs(t, err, context.Canceled)
	})
}
