package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

// Message is a validated envelope handed to untyped handlers and middleware.
// Payload is the decoded JSON value, already checked against Entry.Shape.
type Message struct {
	Entry   schema.Entry
	Payload any
}

// Kind returns the envelope kind.
func (m Message) Kind() string { return m.Entry.Kind }

// Envelope is a validated envelope whose payload has been decoded into P.
type Envelope[P any] struct {
	Kind    string
	Payload P
}

// Handler processes one validated message.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Typed adapts a typed handler function for kind into an untyped Handler.
func Typed[P any](kind schema.Kind[P], fn func(ctx context.Context, env Envelope[P]) error) Handler {
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		payload, err := Decode[P](msg.Payload)
		if err != nil {
			return fmt.Errorf("%s: %w", kind.Name(), err)
		}
		return fn(ctx, Envelope[P]{Kind: msg.Kind(), Payload: payload})
	})
}

// Decode converts a decoded JSON value into P. An absent payload yields the
// zero P.
func Decode[P any](v any) (P, error) {
	var out P
	if v == nil {
		return out, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}
