// Package evaluation runs an evaluation request end to end: gates first,
// then all scoring schemes concurrently, each scheme evaluated at most once.
package evaluation

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-rubric/internal/catalog"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/scoring"
)

// DefaultMaxConcurrency bounds completion calls per request when no option is given.
const DefaultMaxConcurrency = 5

// Engine evaluates requests against a catalog. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	catalog        *catalog.Catalog
	completer      scoring.Completer
	maxConcurrency int
	defaultModel   string
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxConcurrency bounds in-flight completion calls per request.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(e *Engine) { e.defaultModel = model }
}

// NewEngine creates an engine over cat calling completer.
func NewEngine(cat *catalog.Catalog, completer scoring.Completer, opts ...Option) *Engine {
	e := &Engine{
		catalog:        cat,
		completer:      completer,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         slog.Default().With("component", "evaluation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// DefaultModel returns the model used for requests that name none.
func (e *Engine) DefaultModel() string { return e.defaultModel }

// Evaluate runs req through the gate and scoring phases.
//
// Per-scheme failures are reported as unavailable results, never as errors.
// The returned error is limited to a missing completer, an invalid request
// and a canceled context. Unknown scheme IDs are skipped and duplicate IDs
// collapse to their first occurrence; results follow the caller's order.
func (e *Engine) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationOutcome, error) {
	if e.completer == nil {
		return nil, domain.ErrNoCompleter
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	s := e.newSession(req)
	gates, scored := e.plan(req.SchemeIDs)

	log := e.logger.With("request_id", req.RequestID)
	log.InfoContext(ctx, "evaluation started",
		"gates", len(gates),
		"schemes", len(scored),
		"context_type", req.ContextType.Normalize())

	// Gates run sequentially so a failing gate stops the request before any
	// further completion call is made.
	gateResults := make([]domain.EvaluationResult, 0, len(gates))
	for _, g := range gates {
		r := s.evaluate(ctx, g, nil)
		gateResults = append(gateResults, r)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.IsRejection() {
			log.InfoContext(ctx, "evaluation rejected by gate",
				"scheme_id", g.ID,
				"duration", time.Since(start))
			return &domain.EvaluationOutcome{
				RequestID:    req.RequestID,
				Results:      gateResults,
				GatesPassed:  false,
				OverallLabel: domain.Ptr(domain.OverallRejected),
			}, nil
		}
	}

	var eg errgroup.Group
	for _, sc := range scored {
		eg.Go(func() error {
			s.evaluate(ctx, sc, nil)
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := dedupe(req.SchemeIDs)
	out := &domain.EvaluationOutcome{
		RequestID:   req.RequestID,
		Results:     make([]domain.EvaluationResult, 0, len(ids)),
		GatesPassed: true,
	}
	for _, id := range ids {
		if r, ok := s.cache.Get(id); ok {
			out.Results = append(out.Results, r)
		}
	}
	out.OverallScore, out.OverallLabel = e.overall(out.Results)

	log.InfoContext(ctx, "evaluation finished",
		"results", len(out.Results),
		"evaluated", s.cache.Len(),
		"duration", time.Since(start))
	return out, nil
}

// plan splits the requested schemes into gates and scoring schemes,
// dropping unknown and duplicate IDs.
func (e *Engine) plan(ids []string) (gates, scored []*domain.SchemeDefinition) {
	for _, id := range dedupe(ids) {
		s, ok := e.catalog.Get(id)
		if !ok {
			e.logger.Debug("skipping unknown scheme", "scheme_id", id)
			continue
		}
		if s.Kind == domain.KindBinaryGate {
			gates = append(gates, s)
		} else {
			scored = append(scored, s)
		}
	}
	return gates, scored
}

// overall averages the numeric non-gate results. The label comes from the
// first contributing scheme's thresholds.
func (e *Engine) overall(results []domain.EvaluationResult) (*float64, *string) {
	var (
		sum   float64
		n     int
		first *domain.SchemeDefinition
	)
	for _, r := range results {
		s, ok := e.catalog.Get(r.SchemeID)
		if !ok || s.Kind == domain.KindBinaryGate {
			continue
		}
		v, ok := r.Number()
		if !ok {
			continue
		}
		if first == nil {
			first = s
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil, nil
	}

	score := domain.Round2(sum / float64(n))
	if label, ok := first.Labels.Lookup(score); ok {
		return &score, &label
	}
	return &score, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// session carries the state of one request.
type session struct {
	engine    *Engine
	text      string
	model     string
	ctxType   domain.ContextType
	cache     *RequestCache
	evaluator *scoring.Evaluator
}

func (e *Engine) newSession(req domain.EvaluationRequest) *session {
	model := req.Model
	if model == "" {
		model = e.defaultModel
	}
	bounded := scoring.NewBoundedCompleter(e.completer, e.maxConcurrency)
	return &session{
		engine:    e,
		text:      req.Text,
		model:     model,
		ctxType:   req.ContextType.Normalize(),
		cache:     NewRequestCache(),
		evaluator: scoring.NewEvaluator(bounded, scoring.WithEvaluatorLogger(e.logger)),
	}
}

// evaluate returns the cached or freshly computed result for scheme.
// path lists the derived schemes currently being resolved above this call.
func (s *session) evaluate(ctx context.Context, scheme *domain.SchemeDefinition, path []string) domain.EvaluationResult {
	return s.cache.Do(ctx, scheme.ID, func(ctx context.Context) domain.EvaluationResult {
		if scheme.Kind == domain.KindDerived {
			return s.resolveDerived(ctx, scheme, path)
		}
		return s.evaluator.Evaluate(ctx, s.text, scheme, s.model, s.ctxType)
	})
}
