// Package middleware adapts the admission orchestrator to a worker's job
// execution pipeline. Middleware wraps handler calls synchronously.
package middleware

import (
	"context"

	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

// Handler is the terminal function that executes job logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It must call next to
// continue the chain unless it short-circuits.
type Middleware func(ctx context.Context, j *queuethrottle.Job, next Handler) error

// Chain composes middleware so that the first one is the outermost wrapper.
//
//	Chain(Logging(l), Recover(l), Throttle(o)) runs as
//	logging → recover → throttle → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *queuethrottle.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}
