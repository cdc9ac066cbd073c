package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

// Recover returns middleware that converts panics in the rest of the chain
// into errors. Place it outside Throttle so admission slots are released
// before the panic is recovered.
func Recover(logger zerolog.Logger) Middleware {
	return func(ctx context.Context, j *queuethrottle.Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("job_type", j.Class).
					Str("jid", j.ID).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("job handler panicked")
				retErr = fmt.Errorf("panic in job %s: %v", j.Class, r)
			}
		}()
		return next(ctx)
	}
}
