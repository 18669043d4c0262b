// Package scoring turns free-form completion answers into typed evaluation
// results. The interpreters in this package are pure; Evaluator adds the one
// (or, for checklists, two) completion calls around them.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/prompt"
)

// Sampling temperatures per call type.
const (
	TemperatureGate      = 0.1
	TemperatureRubric    = 0.2
	TemperatureChecklist = 0.1
	TemperatureSummary   = 0.3
)

var (
	errEmptyCompletion = errors.New("empty completion")
	errDerivedScheme   = errors.New("derived schemes are resolved from their dependencies")
)

// Completer is the outbound completion capability.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	return f(ctx, req)
}

// BoundedCompleter limits the number of completion calls in flight.
// A slot is held only for the duration of the wrapped call, so callers that
// wait on other evaluations while holding no slot can never deadlock.
type BoundedCompleter struct {
	next Completer
	sem  *semaphore.Weighted
}

// NewBoundedCompleter wraps next with a limit of n concurrent calls.
// Limits below one are raised to one.
func NewBoundedCompleter(next Completer, n int) *BoundedCompleter {
	return &BoundedCompleter{next: next, sem: semaphore.NewWeighted(int64(max(n, 1)))}
}

// Complete waits for a free slot and forwards the call.
func (b *BoundedCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return domain.Completion{}, fmt.Errorf("waiting for completion slot: %w", err)
	}
	defer b.sem.Release(1)
	return b.next.Complete(ctx, req)
}

// Evaluator judges text against a single non-derived scheme.
type Evaluator struct {
	completer Completer
	logger    *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorLogger sets the logger used for failed evaluations.
func WithEvaluatorLogger(l *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator creates an Evaluator calling c.
func NewEvaluator(c Completer, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		completer: c,
		logger:    slog.Default().With("component", "scoring"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores text against scheme. It never returns an error: any
// completion or parsing failure yields an unavailable result whose reason
// carries the error.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	text string,
	scheme *domain.SchemeDefinition,
	model string,
	ctxType domain.ContextType,
) domain.EvaluationResult {
	start := time.Now()
	res, err := e.evaluate(ctx, text, scheme, model, ctxType)
	if err != nil {
		e.logger.WarnContext(ctx, "scheme evaluation failed",
			"scheme_id", scheme.ID,
			"kind", scheme.Kind,
			"duration", time.Since(start),
			"error", err)
		return domain.Unavailable(scheme, "evaluation error: "+err.Error())
	}
	e.logger.DebugContext(ctx, "scheme evaluated",
		"scheme_id", scheme.ID,
		"kind", scheme.Kind,
		"duration", time.Since(start))
	return res
}

func (e *Evaluator) evaluate(
	ctx context.Context,
	text string,
	scheme *domain.SchemeDefinition,
	model string,
	ctxType domain.ContextType,
) (domain.EvaluationResult, error) {
	switch scheme.Kind {
	case domain.KindBinaryGate:
		rules := prompt.FilterRules(scheme.GateRules, ctxType)
		answer, err := e.complete(ctx, prompt.Gate(text, scheme, rules), model, TemperatureGate)
		if err != nil {
			return domain.EvaluationResult{}, err
		}
		return InterpretGate(answer, rules).Result(scheme, ctxType), nil

	case domain.KindOrdinalRubric:
		answer, err := e.complete(ctx, prompt.Rubric(text, scheme), model, TemperatureRubric)
		if err != nil {
			return domain.EvaluationResult{}, err
		}
		return InterpretRubric(answer, scheme).Result(scheme), nil

	case domain.KindChecklistAdditive:
		answer, err := e.complete(ctx, prompt.Checklist(text, scheme), model, TemperatureChecklist)
		if err != nil {
			return domain.EvaluationResult{}, err
		}
		verdict := InterpretChecklist(answer, scheme)
		if !verdict.Scored() {
			return verdict.Result(scheme, ""), nil
		}
		return verdict.Result(scheme, e.summarize(ctx, scheme, verdict, model)), nil

	case domain.KindDerived:
		return domain.EvaluationResult{}, errDerivedScheme

	default:
		return domain.EvaluationResult{}, fmt.Errorf("%w: unknown scale kind %q", domain.ErrInvalidScheme, scheme.Kind)
	}
}

// summarize asks for a prose summary of a scored checklist. Failures are
// logged and answered with an empty string so the caller uses the fallback.
func (e *Evaluator) summarize(
	ctx context.Context,
	scheme *domain.SchemeDefinition,
	verdict ChecklistVerdict,
	model string,
) string {
	p := prompt.ChecklistSummary(scheme, verdict.SummaryItems(), verdict.Value)
	answer, err := e.complete(ctx, p, model, TemperatureSummary)
	if err != nil {
		e.logger.InfoContext(ctx, "checklist summary unavailable, using fallback",
			"scheme_id", scheme.ID,
			"error", err)
		return ""
	}
	return answer
}

func (e *Evaluator) complete(ctx context.Context, p, model string, temperature float64) (string, error) {
	if e.completer == nil {
		return "", domain.ErrNoCompleter
	}
	c, err := e.completer.Complete(ctx, domain.CompletionRequest{
		Prompt:      p,
		Model:       model,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}
