// Package fanout joins independent concurrent calls while keeping every
// branch failure, not just the first one.
package fanout

import (
	"context"
	"errors"
	"sync"
)

// Task computes one result from one input.
type Task[T, R any] func(ctx context.Context, in T) (R, error)

// Collect runs fn once per input concurrently and waits for all branches.
// Results come back in input order. If any branch fails, the error is the
// aggregate of every branch failure (errors.Join) and no results are
// returned: there is no partial-success mode.
func Collect[T, R any](ctx context.Context, inputs []T, fn Task[T, R]) ([]R, error) {
	results := make([]R, len(inputs))
	errs := make([]error, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in T) {
			defer wg.Done()
			results[i], errs[i] = fn(ctx, in)
		}(i, in)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}
