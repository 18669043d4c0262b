package evaluation

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-rubric/internal/domain"
)

// RequestCache memoizes scheme results for a single request. Concurrent
// callers asking for the same scheme share one evaluation. It must never be
// shared across requests.
type RequestCache struct {
	group singleflight.Group

	mu      sync.RWMutex
	results map[string]domain.EvaluationResult
}

// NewRequestCache returns an empty cache.
func NewRequestCache() *RequestCache {
	return &RequestCache{results: make(map[string]domain.EvaluationResult)}
}

// Do returns the result for id, running fn only if no result is stored and
// no evaluation is in flight. The result is stored before waiting callers
// are released.
func (c *RequestCache) Do(
	ctx context.Context,
	id string,
	fn func(context.Context) domain.EvaluationResult,
) domain.EvaluationResult {
	if r, ok := c.Get(id); ok {
		return r
	}

	v, _, _ := c.group.Do(id, func() (any, error) {
		// A flight that finished between Get and Do already stored the result.
		if r, ok := c.Get(id); ok {
			return r, nil
		}
		r := fn(ctx)

		c.mu.Lock()
		c.results[id] = r
		c.mu.Unlock()
		return r, nil
	})
	return v.(domain.EvaluationResult) //nolint:forcetypeassert // the flight only returns results
}

// Get returns a completed result.
func (c *RequestCache) Get(id string) (domain.EvaluationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[id]
	return r, ok
}

// Len reports how many results are stored.
func (c *RequestCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
