/*
Package tracing provides lightweight request tracing.

HTTPMiddleware opens a span per request and stores the tracer in the request
context, so domain code can open child spans with Start without holding a
tracer. Finished spans are logged through zap by a buffered collector.
Outbound calls made through Transport forward the trace, which lines page
fetches and provider calls up with the request that caused them.

# Usage

	tracer := tracing.New("orbit", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracing.Start(ctx, "automation.run")
	span.SetAttr("execution_id", exec.ID)
	result, err := runner.Run(ctx, req)
	span.End(err)

# Trace Format

Propagation uses two headers:
  - X-Trace-ID: identifier for the whole request flow
  - X-Span-ID: identifier for the current operation
*/
package tracing
