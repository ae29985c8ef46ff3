// Package stream is a data-flow dispatch engine.
//
// A Binding ties a Source to a Handler and an ordered list of sinks. The
// Engine runs one worker goroutine per Binding: the worker pulls items from
// its own iteration session of the Source, invokes the Handler, and
// publishes every output the Handler emits to each sink in order before the
// next output is produced.
//
// Handlers may emit zero, one, or many outputs per input. Outputs are
// published as soon as they are emitted, so a generator-style Handler that
// fails midway still delivers what it produced before the failure.
//
// Workers are isolated: a failure terminates only the worker that hit it and
// is reported, tagged with its Binding, in the *AggregateRunError returned
// once every worker has finished.
//
// # Usage
//
//	engine := stream.New(stream.WithLogger(log))
//
//	double := stream.Map(func(_ context.Context, n int) (int, error) {
//	    return n * 2, nil
//	})
//	if _, err := stream.Bind(engine, stream.FromSlice(1, 2, 3), double, stream.Print(os.Stdout)); err != nil {
//	    return err
//	}
//
//	if err := engine.Run(ctx); err != nil {
//	    var runErr *stream.AggregateRunError
//	    if errors.As(err, &runErr) {
//	        for _, f := range runErr.Failures {
//	            log.Error("binding failed", logger.Fields("binding", f.Binding.String()))
//	        }
//	    }
//	}
//
// # Sinks
//
// A sink is any value implementing Sink[O], Sink[any], or KeyedSink. Keyed
// sinks receive key/value outputs (KV or any Pair). Capabilities are
// resolved once when the Binding is created.
//
// # Cancellation
//
// Every worker runs under a context derived from the one passed to Run or
// Start. Cancelling it, or calling Stop, ends all workers at their next pull
// or emit. Workers ended this way are reported as canceled, not failed.
package stream
