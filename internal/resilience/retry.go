// Package resilience provides the generic retry helper used once at
// startup: dialing the fixed set of backend addresses. There is no
// circuit breaker here — see DESIGN.md for why one does not fit this
// domain.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
)

// Retry calls fn up to attempts times with exponential backoff (doubling,
// capped at 60s) plus full jitter, returning the first success or the
// last error if every attempt fails.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	meter := otel.GetMeterProvider().Meter("edge-orchestrator")
	attemptCounter, _ := meter.Int64Counter("orch_resilience_retry_attempts_total")
	successCounter, _ := meter.Int64Counter("orch_resilience_retry_success_total")
	failCounter, _ := meter.Int64Counter("orch_resilience_retry_failures_total")

	var zero T
	var lastErr error
	wait := delay
	for i := 0; i < attempts; i++ {
		attemptCounter.Add(ctx, 1)
		v, err := fn()
		if err == nil {
			successCounter.Add(ctx, 1)
			return v, nil
		}
		lastErr = err
		failCounter.Add(ctx, 1)
		if i == attempts-1 {
			break
		}
		jittered := time.Duration(rand.Int63n(int64(wait)))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(jittered):
		}
		wait *= 2
		if wait > 60*time.Second {
			wait = 60 * time.Second
		}
	}
	return zero, lastErr
}
