package verify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency caps parallel verifications when the caller
// does not choose a limit.
var DefaultBatchConcurrency = runtime.GOMAXPROCS(0)

// VerifyBatch verifies every input in parallel and returns verdicts in
// input order. Products are independent of each other, so each worker
// writes only its own result slot. A cancelled context abandons the
// remaining work and returns the context error.
func (e *Engine) VerifyBatch(ctx context.Context, inputs []Input, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]Result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, in := range inputs {
		i, in := i, in // per-iteration copies; required under go 1.21 loop semantics
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = e.Verify(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
