// Package limiter runs a batch of independent jobs with a cap on how many
// are in flight at once.
package limiter

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is used when the caller passes a non-positive limit.
const DefaultLimit = 3

// RunBounded calls worker once per item with at most limit calls running
// concurrently. Results are returned in input order.
//
// A worker reports its own failure through R; one bad item never stops the
// rest. When ctx is canceled no further items are started, running workers
// see the canceled ctx, and RunBounded returns ctx.Err(). Items that were
// never started keep R's zero value.
func RunBounded[T, R any](ctx context.Context, items []T, limit int, worker func(context.Context, int, T) R) ([]R, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := make([]R, len(items))

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		// Go blocks while limit workers are running.
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = worker(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}
