// Package outbound sends typed requests to the extension host. Sending is
// fire-and-forget: no retries, acknowledgements, timeouts or correlation ids.
// Responses, if any, arrive later as ordinary broadcasts.
package outbound

import (
	"context"
	"fmt"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

// Port is the one-way primitive that delivers an envelope to the host.
type Port interface {
	Post(ctx context.Context, env schema.Envelope) error
}

// PortFunc adapts a function to the Port interface.
type PortFunc func(ctx context.Context, env schema.Envelope) error

// Post implements Port.
func (f PortFunc) Post(ctx context.Context, env schema.Envelope) error {
	return f(ctx, env)
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics counts sent envelopes.
func WithMetrics(m *metrics.Dispatch) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client posts validated envelopes on a Port.
type Client struct {
	port    Port
	reg     *schema.Registry
	metrics *metrics.Dispatch
}

// New creates a client posting on port and checking kinds against reg.
func New(port Port, reg *schema.Registry, opts ...Option) *Client {
	c := &Client{port: port, reg: reg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts {kind, payload}. The payload is checked against the kind's shape
// in the form the host will decode it and is never modified.
func Send[P any](ctx context.Context, c *Client, kind schema.Kind[P], payload P) error {
	return c.post(ctx, kind.Entry(), payload)
}

// SendEmpty posts a zero-payload kind.
func SendEmpty(ctx context.Context, c *Client, kind schema.Kind[schema.Empty]) error {
	return c.post(ctx, kind.Entry(), schema.Empty{})
}

// SendRaw posts an already decoded payload for kind, looked up by name. Used
// by the CLI where the payload comes from user input.
func (c *Client) SendRaw(ctx context.Context, kind string, payload any) error {
	e, ok := c.reg.Lookup(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnregisteredKind, kind)
	}
	return c.post(ctx, e, payload)
}

func (c *Client) post(ctx context.Context, e schema.Entry, payload any) error {
	if c.port == nil {
		return ErrNoPort
	}
	registered, ok := c.reg.Lookup(e.Kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnregisteredKind, e.Kind)
	}
	if registered.Direction != schema.ToHost {
		return fmt.Errorf("%w: %q is %s", ErrNotToHost, e.Kind, registered.Direction)
	}

	generic, err := schema.Generic(payload)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, e.Kind, err)
	}
	if err := registered.Shape.Check(generic); err != nil {
		log.Warn(log.CatOutbound, "refusing to send invalid payload", "kind", e.Kind, "error", err.Error())
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, e.Kind, err)
	}

	env := schema.Envelope{Kind: e.Kind, Payload: generic}
	if err := c.port.Post(ctx, env); err != nil {
		return fmt.Errorf("post %s: %w", e.Kind, err)
	}
	c.metrics.Sent(e.Kind)
	log.Debug(log.CatOutbound, "request sent", "kind", e.Kind)
	return nil
}
