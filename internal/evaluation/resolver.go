package evaluation

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-rubric/internal/aggregation"
	"github.com/ahrav/go-rubric/internal/domain"
)

// ReasonNoDependencies is the unavailable reason for a derived scheme that
// declares no dependencies.
const ReasonNoDependencies = "no dependencies"

// resolveDerived evaluates the dependencies of a derived scheme concurrently
// through the request cache and aggregates them in declared order.
//
// Unknown dependency IDs are skipped, as are IDs already on path. The latter
// keeps a cyclic definition from waiting on its own in-flight evaluation.
func (s *session) resolveDerived(
	ctx context.Context,
	scheme *domain.SchemeDefinition,
	path []string,
) domain.EvaluationResult {
	if len(scheme.Dependencies) == 0 {
		return domain.Unavailable(scheme, ReasonNoDependencies)
	}

	path = append(slices.Clone(path), scheme.ID)
	deps := s.dependencies(ctx, scheme, path)

	results := make([]domain.EvaluationResult, len(deps))
	var eg errgroup.Group
	for i, dep := range deps {
		eg.Go(func() error {
			results[i] = s.evaluate(ctx, dep, path)
			return nil
		})
	}
	_ = eg.Wait()

	return aggregation.Aggregate(scheme, results)
}

// dependencies returns the resolvable dependency definitions of scheme in
// declared order, without duplicates.
func (s *session) dependencies(
	ctx context.Context,
	scheme *domain.SchemeDefinition,
	path []string,
) []*domain.SchemeDefinition {
	log := s.engine.logger.With("scheme_id", scheme.ID)

	out := make([]*domain.SchemeDefinition, 0, len(scheme.Dependencies))
	seen := make(map[string]struct{}, len(scheme.Dependencies))
	for _, id := range scheme.Dependencies {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if slices.Contains(path, id) {
			log.WarnContext(ctx, "skipping cyclic dependency", "dependency", id)
			continue
		}
		dep, ok := s.engine.catalog.Get(id)
		if !ok {
			log.WarnContext(ctx, "skipping unknown dependency", "dependency", id)
			continue
		}
		out = append(out, dep)
	}
	return out
}
