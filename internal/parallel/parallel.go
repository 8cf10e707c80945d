// Package parallel contains small helpers to fan out work to a fixed
// number of goroutines.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls fn for every item using count workers and returns the results
// in the order of items. The first error cancels the context passed to the
// remaining calls and is returned. With count <= 1 the items are processed
// sequentially in the calling goroutine.
func Map[T, R any](ctx context.Context, count int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	if count <= 1 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := fn(ctx, item)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	ch := make(chan int)
	wg, wctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		defer close(ch)
		for i := range items {
			select {
			case <-wctx.Done():
				return nil
			case ch <- i:
			}
		}
		return nil
	})

	worker := func() error {
		for i := range ch {
			res, err := fn(wctx, items[i])
			if err != nil {
				return err
			}
			results[i] = res
		}
		return nil
	}

	for i := 0; i < count; i++ {
		wg.Go(worker)
	}

	if err := wg.Wait(); err != nil {
		return nil, err
	}
	// the producer stops silently when ctx is cancelled from outside
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
