package evaluation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rubric/internal/domain"
)

func TestRequestCacheDo(t *testing.T) {
	t.Run("concurrent callers share one evaluation", func(t *testing.T) {
		c := NewRequestCache()
		var calls atomic.Int32
		fn := func(context.Context) domain.EvaluationResult {
			calls.Add(1)
			time.Sleep(10 * time.Millisecond)
			return domain.EvaluationResult{SchemeID: "x", Value: domain.Ptr(domain.NumberValue(4))}
		}

		var wg sync.WaitGroup
		results := make([]domain.EvaluationResult, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = c.Do(context.Background(), "x", fn)
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, calls.Load())
		for _, r := range results {
			assert.Equal(t, "x", r.SchemeID)
		}
	})

	t.Run("completed result is reused", func(t *testing.T) {
		c := NewRequestCache()
		first := c.Do(context.Background(), "x", func(context.Context) domain.EvaluationResult {
			return domain.EvaluationResult{SchemeID: "x", Reasoning: "first"}
		})
		second := c.Do(context.Background(), "x", func(context.Context) domain.EvaluationResult {
			t.Fatal("evaluated twice")
			return domain.EvaluationResult{}
		})
		assert.Equal(t, first, second)

		got, ok := c.Get("x")
		require.True(t, ok)
		assert.Equal(t, "first", got.Reasoning)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("unknown id", func(t *testing.T) {
		_, ok := NewRequestCache().Get("missing")
		assert.False(t, ok)
	})
}
