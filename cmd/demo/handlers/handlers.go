// Package handlers contains the simulated jobs run by the demo worker.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Func executes one job with its positional arguments.
type Func func(ctx context.Context, args []any) error

// ErrCorruptReport is returned by BuildReport for the "corrupt" report.
var ErrCorruptReport = errors.New("report data is corrupt")

// New returns the demo job handlers keyed by job class. Each handler takes
// roughly delay to finish.
func New(delay time.Duration) map[string]Func {
	return map[string]Func{
		"WelcomeMailer":     simulated(delay, nil),
		"SyncAccountJob":    simulated(delay*2, nil),
		"CallPartnerAPIJob": simulated(delay/2, nil),
		"BuildReport": simulated(delay*3, func(args []any) error {
			if len(args) > 0 && args[0] == "corrupt" {
				return fmt.Errorf("build report %v: %w", args[0], ErrCorruptReport)
			}
			return nil
		}),
	}
}

func simulated(d time.Duration, check func(args []any) error) Func {
	return func(ctx context.Context, args []any) error {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
		if check != nil {
			return check(args)
		}
		return nil
	}
}
