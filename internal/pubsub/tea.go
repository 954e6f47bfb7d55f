package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// ListenCmd turns the next broker delivery into a Bubble Tea message so the
// inspector can fold dispatched envelopes and typing expirations into its
// Update loop. The command yields nil when the session ends or the
// subscription is dropped, which stops the listen cycle.
func ListenCmd[T any](ctx context.Context, ch <-chan Event[T]) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			return event
		}
	}
}

// ContinuousListener holds a single subscription for a view that re-arms its
// listen command after each message, so no broadcast is lost between cycles.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener subscribes a view to every payload on broker until
// ctx is cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return NewFilteredListener(ctx, broker, nil)
}

// NewFilteredListener is NewContinuousListener restricted to payloads for
// which keep returns true, e.g. one thread's typing broadcasts. A nil keep
// passes everything.
func NewFilteredListener[T any](ctx context.Context, broker *Broker[T], keep func(T) bool) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.SubscribeFunc(ctx, keep),
	}
}

// Listen re-arms the view for its next delivery.
func (l *ContinuousListener[T]) Listen() tea.Cmd {
	return ListenCmd(l.ctx, l.ch)
}
