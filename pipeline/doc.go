// Package pipeline provides the pull-based Iterator used as the iteration
// session of every stream.Source, plus a small set of lazy operators.
//
// Pipelines are lazy: no work happens until values are pulled via Collect,
// Drain, or ForEach. Each stage pulls from the previous stage on demand, so a
// blocking Next is the only backpressure mechanism.
//
// # Operators
//
//   - Map: transform each value
//   - FlatMap: transform each value into multiple values
//   - Filter: keep values matching a predicate
//   - Take: stop after n values
//
// # Usage
//
//	src := pipeline.FromSlice([]int{1, 2, 3, 4, 5})
//	doubled := pipeline.Map(src, func(_ context.Context, n int) (int, error) {
//	    return n * 2, nil
//	})
//	firstTwo := pipeline.Take(pipeline.Filter(doubled, func(n int) bool { return n > 2 }), 2)
//	results, _ := pipeline.Collect(ctx, firstTwo)
//
// Sessions opened from a source plug in through From:
//
//	it, _ := topic.Open(ctx)
//	keyed := pipeline.Filter(pipeline.From(it), hasKey)
//	pipeline.Drain(keyed, printMessage).Run(ctx)
package pipeline
