package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
)

// Logging returns middleware that logs job start and completion.
// Deferred jobs are logged at debug level, the orchestrator already logs them.
func Logging(logger zerolog.Logger) Middleware {
	return func(ctx context.Context, j *queuethrottle.Job, next Handler) error {
		logger.Debug().
			Str("job_type", j.Class).
			Str("jid", j.ID).
			Str("queue", j.Queue).
			Msg("job started")

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			logger.Info().
				Str("job_type", j.Class).
				Str("jid", j.ID).
				Dur("elapsed", elapsed).
				Msg("job completed")
		case IsDeferred(err):
			logger.Debug().
				Str("job_type", j.Class).
				Str("jid", j.ID).
				Err(err).
				Msg("job deferred")
		default:
			logger.Error().
				Str("job_type", j.Class).
				Str("jid", j.ID).
				Dur("elapsed", elapsed).
				Err(err).
				Msg("job failed")
		}
		return err
	}
}
