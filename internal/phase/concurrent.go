package phase

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Concurrent runs fn over every item in items, bounded to concurrency
// simultaneous calls, following internal/pipeline/pipeline.go's
// errgroup.WithContext fan-out. concurrency <= 1 runs items sequentially in
// order, which every phase driver's tests rely on for deterministic
// assertions. The first error cancels the group's context and is returned;
// other in-flight calls may still complete.
func Concurrent[T any](ctx context.Context, concurrency int, items []T, fn func(ctx context.Context, item T) error) error {
	if concurrency <= 1 {
		for _, item := range items {
			if err := fn(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, item := range items {
		item := item
		g.Go(func() error {
			return fn(gCtx, item)
		})
	}
	return g.Wait()
}
