// Package dispatch routes validated inbound envelopes to per-kind handlers.
//
// Dispatch is total: every value either reaches exactly one handler or is
// dropped with a Diagnostic, and nothing panics out of it. The order of
// checks is fixed: generic sanity, handler lookup, kind-specific validation,
// typed decode, handler invocation.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/protocol/validate"
	"github.com/zjrosen/agentpanel/internal/pubsub"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMiddleware adds middleware applied to every handler. The first
// middleware wraps outermost.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middlewares = append(d.middlewares, middlewares...)
	}
}

// WithDiagnostics publishes every dropped value on pub.
func WithDiagnostics(pub pubsub.Publisher[Diagnostic]) Option {
	return func(d *Dispatcher) {
		d.diagnostics = pub
	}
}

// WithMetrics counts handled and dropped values.
func WithMetrics(m *metrics.Dispatch) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher holds one handler per kind. Registration is last-writer-wins.
type Dispatcher struct {
	reg         *schema.Registry
	mu          sync.RWMutex
	handlers    map[string]Handler
	middlewares []Middleware
	diagnostics pubsub.Publisher[Diagnostic]
	metrics     *metrics.Dispatch

	handledCount atomic.Int64
	droppedCount atomic.Int64
}

// New creates a dispatcher validating against reg.
func New(reg *schema.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:      reg,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register installs h for kind, replacing any previous handler. The handler is
// wrapped with the configured middleware.
func (d *Dispatcher) Register(kind string, h Handler) {
	wrapped := Chain(h, d.middlewares...)

	d.mu.Lock()
	_, replaced := d.handlers[kind]
	d.handlers[kind] = wrapped
	d.mu.Unlock()

	if replaced {
		log.Debug(log.CatDispatch, "handler replaced", "kind", kind)
	}
}

// Handle registers a typed handler for kind.
func Handle[P any](d *Dispatcher, kind schema.Kind[P], fn func(ctx context.Context, env Envelope[P]) error) {
	d.Register(kind.Name(), Typed(kind, fn))
}

// Unregister removes the handler for kind.
func (d *Dispatcher) Unregister(kind string) {
	d.mu.Lock()
	delete(d.handlers, kind)
	d.mu.Unlock()
}

// HasHandler reports whether kind has a handler.
func (d *Dispatcher) HasHandler(kind string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[kind]
	return ok
}

// Dispatch validates v and routes it to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, v any) Outcome {
	kind, ok := validate.Envelope(v)
	if !ok {
		_, err := validate.Check(d.reg, v)
		return d.drop(DiagMalformed, "", err)
	}

	d.mu.RLock()
	h, ok := d.handlers[kind]
	d.mu.RUnlock()
	if !ok {
		return d.drop(DiagNoHandler, kind, nil)
	}

	entry, known := d.reg.Lookup(kind)
	if !known {
		return d.drop(DiagNoHandler, kind, fmt.Errorf("%w: %q", validate.ErrUnknownKind, kind))
	}
	if err := validate.CheckEntry(entry, v); err != nil {
		return d.drop(DiagMalformed, kind, err)
	}

	start := time.Now()
	err := invoke(ctx, h, Message{Entry: entry, Payload: validate.Payload(v)})
	d.handledCount.Add(1)
	d.metrics.Handled(kind, time.Since(start))

	return Outcome{Kind: kind, Handled: true, HandlerErr: err}
}

// invoke runs h, converting a panic into an error.
func invoke(ctx context.Context, h Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, msg.Kind(), r)
			log.Error(log.CatDispatch, "handler panicked", "kind", msg.Kind(), "panic", r)
		}
	}()
	return h.Handle(ctx, msg)
}

// Reject records a value dropped before it could be dispatched, such as an
// undecodable wire line, with the same logging and publishing as Dispatch.
func (d *Dispatcher) Reject(reason Reason, kind string, err error) Outcome {
	return d.drop(reason, kind, err)
}

func (d *Dispatcher) drop(reason Reason, kind string, err error) Outcome {
	diag := Diagnostic{Reason: reason, Kind: kind, Err: err, At: time.Now()}
	d.droppedCount.Add(1)
	d.metrics.Dropped(string(reason))

	if err != nil {
		log.Warn(log.CatDispatch, "envelope dropped", "reason", string(reason), "kind", kind, "error", err.Error())
	} else {
		log.Warn(log.CatDispatch, "envelope dropped", "reason", string(reason), "kind", kind)
	}
	if d.diagnostics != nil {
		d.diagnostics.Publish(pubsub.DroppedEvent, diag)
	}
	return Outcome{Kind: kind, Diagnostic: &diag}
}

// Stats reports the number of handled and dropped values.
func (d *Dispatcher) Stats() (handled, dropped int64) {
	return d.handledCount.Load(), d.droppedCount.Load()
}
