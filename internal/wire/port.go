package wire

import (
	"context"
	"io"
	"sync"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/protocol/outbound"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

var (
	_ outbound.Port = (*LineWriter)(nil)
	_ outbound.Port = (*Pipe)(nil)
)

// LineWriter posts envelopes as JSON lines on an io.Writer.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter wraps w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Post implements outbound.Port.
func (lw *LineWriter) Post(_ context.Context, env schema.Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, err := lw.w.Write(data); err != nil {
		return err
	}
	log.Debug(log.CatWire, "envelope written", "kind", env.Kind)
	return nil
}

// Pipe is an in-memory port. Posted envelopes are buffered until received.
type Pipe struct {
	ch        chan schema.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewPipe creates a pipe holding up to size envelopes.
func NewPipe(size int) *Pipe {
	if size <= 0 {
		size = 1
	}
	return &Pipe{
		ch:   make(chan schema.Envelope, size),
		done: make(chan struct{}),
	}
}

// Post implements outbound.Port. It never blocks.
func (p *Pipe) Post(_ context.Context, env schema.Envelope) error {
	select {
	case <-p.done:
		return ErrPipeClosed
	default:
	}
	select {
	case p.ch <- env:
		return nil
	default:
		return ErrPipeFull
	}
}

// Recv waits for the next envelope.
func (p *Pipe) Recv(ctx context.Context) (schema.Envelope, error) {
	select {
	case env := <-p.ch:
		return env, nil
	case <-p.done:
		return schema.Envelope{}, ErrPipeClosed
	case <-ctx.Done():
		return schema.Envelope{}, ctx.Err()
	}
}

// Len returns the number of buffered envelopes.
func (p *Pipe) Len() int { return len(p.ch) }

// Close stops the pipe. Buffered envelopes are discarded.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
