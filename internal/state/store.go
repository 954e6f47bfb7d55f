// Package state holds the UI-side projections of host broadcasts. Every
// reducer is a pure function from (state, payload) to a new state; states are
// never mutated in place, so a value returned by Load stays valid forever.
package state

import (
	"sync"
	"sync/atomic"

	"github.com/zjrosen/agentpanel/internal/pubsub"
)

// Store publishes an immutable state through an atomic pointer. Updates are
// expected from a single goroutine (the event loop); Load is safe from any.
type Store[S any] struct {
	current atomic.Pointer[S]
	mu      sync.Mutex
	broker  *pubsub.Broker[S]
}

// NewStore creates a store holding initial. bufferSize sizes the change broker.
func NewStore[S any](initial S, bufferSize int) *Store[S] {
	s := &Store[S]{broker: pubsub.NewBrokerWithBuffer[S](bufferSize)}
	s.current.Store(&initial)
	return s
}

// Load returns the current state.
func (s *Store[S]) Load() S {
	return *s.current.Load()
}

// Update replaces the state with fn's result when fn reports a change, and
// publishes the new state. It returns whether the state changed.
func (s *Store[S]) Update(fn func(S) (S, bool)) bool {
	s.mu.Lock()
	next, changed := fn(*s.current.Load())
	if changed {
		s.current.Store(&next)
	}
	s.mu.Unlock()

	if changed {
		s.broker.Publish(pubsub.UpdatedEvent, next)
	}
	return changed
}

// Set replaces the state unconditionally.
func (s *Store[S]) Set(next S) {
	s.Update(func(S) (S, bool) { return next, true })
}

// Changes returns the broker of state changes.
func (s *Store[S]) Changes() *pubsub.Broker[S] {
	return s.broker
}

// Close closes the change broker.
func (s *Store[S]) Close() {
	s.broker.Close()
}
