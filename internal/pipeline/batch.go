package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunBatch runs the instances with at most concurrency runs in flight
// (zero or less means one per instance). Results come back in input order.
// onResult, when non-nil, is called as each run finishes; calls may come
// from several goroutines at once.
func (p *Pipeline) RunBatch(ctx context.Context, instances []Instance, concurrency int, onResult func(i int, r *Result)) []*Result {
	results := make([]*Result, len(instances))
	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, in := range instances {
		g.Go(func() error {
			res := p.Run(ctx, in)
			results[i] = res
			if onResult != nil {
				onResult(i, res)
			}
			return nil
		})
	}
	// Run never fails, so Wait only joins the goroutines.
	_ = g.Wait()
	return results
}
