package dispatch

import (
	"context"
	"time"

	"github.com/zjrosen/agentpanel/internal/log"
)

// Middleware wraps a Handler to add cross-cutting behavior.
type Middleware func(Handler) Handler

// Chain applies middlewares to a handler in reverse order so the first
// middleware is the outermost wrapper: Chain(h, a, b) is a(b(h)).
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ===========================================================================
// Logging Middleware
// ===========================================================================

// NewLoggingMiddleware logs every handler invocation at debug, and failures
// at error.
func NewLoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, msg Message) error {
			start := time.Now()
			err := next.Handle(ctx, msg)
			duration := time.Since(start)

			if err != nil {
				log.Error(log.CatDispatch, "handler failed",
					"kind", msg.Kind(),
					"subsystem", string(msg.Entry.Subsystem),
					"duration", duration,
					"error", err.Error(),
				)
			} else {
				log.Debug(log.CatDispatch, "envelope handled",
					"kind", msg.Kind(),
					"subsystem", string(msg.Entry.Subsystem),
					"duration", duration,
				)
			}
			return err
		})
	}
}

// ===========================================================================
// Slow Handler Middleware
// ===========================================================================

// DefaultSlowHandlerThreshold is used when the configured threshold is zero.
const DefaultSlowHandlerThreshold = 100 * time.Millisecond

// NewSlowHandlerMiddleware warns when a handler runs longer than threshold.
// It never aborts the handler: reducers must run to completion.
func NewSlowHandlerMiddleware(threshold time.Duration) Middleware {
	if threshold <= 0 {
		threshold = DefaultSlowHandlerThreshold
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, msg Message) error {
			start := time.Now()
			err := next.Handle(ctx, msg)
			if duration := time.Since(start); duration > threshold {
				log.Warn(log.CatDispatch, "handler exceeded time threshold",
					"kind", msg.Kind(),
					"duration", duration,
					"threshold", threshold,
				)
			}
			return err
		})
	}
}
