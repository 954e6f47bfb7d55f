// Package eventloop is the single-threaded inbound loop of a UI session.
// Inbound values are queued and dispatched one at a time in strict FIFO order,
// each to completion, so reducers never run concurrently.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/pubsub"
	"github.com/zjrosen/agentpanel/internal/wire"
)

// DefaultQueueCapacity is the default buffer size of the inbound queue.
const DefaultQueueCapacity = 1000

// Dispatcher is the part of *dispatch.Dispatcher the loop needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, v any) dispatch.Outcome
	Reject(reason dispatch.Reason, kind string, err error) dispatch.Outcome
}

// Option configures a Loop.
type Option func(*Loop)

// WithQueueCapacity sets the inbound queue capacity.
func WithQueueCapacity(capacity int) Option {
	return func(l *Loop) {
		if capacity > 0 {
			l.queueCapacity = capacity
		}
	}
}

// WithOutcomes publishes the outcome of every processed value.
func WithOutcomes(pub pubsub.Publisher[dispatch.Outcome]) Option {
	return func(l *Loop) {
		l.outcomes = pub
	}
}

// WithMetrics counts values rejected because the queue was full.
func WithMetrics(m *metrics.Dispatch) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// Loop owns the inbound queue.
type Loop struct {
	dispatcher    Dispatcher
	queue         chan queueItem
	queueCapacity int
	outcomes      pubsub.Publisher[dispatch.Outcome]
	metrics       *metrics.Dispatch

	// submitMu guards the queue against Submit racing with Drain's close.
	submitMu sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	running  atomic.Bool
	started  atomic.Bool
	readyCh  chan struct{}
	readyMu  sync.Mutex
	readySet bool

	processedCount  atomic.Int64
	droppedCount    atomic.Int64
	handlerErrCount atomic.Int64
}

type queueItem struct {
	value     any
	decodeErr error
	resultCh  chan dispatch.Outcome // nil for fire-and-forget Submit
}

// New creates a loop dispatching to d. Call Run to start it.
func New(d Dispatcher, opts ...Option) *Loop {
	l := &Loop{
		dispatcher:    d,
		queueCapacity: DefaultQueueCapacity,
		readyCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.queue = make(chan queueItem, l.queueCapacity)
	return l
}

// Run processes queued values until ctx is cancelled, Stop is called, or
// Drain empties the queue. Run can only be called once.
func (l *Loop) Run(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}

	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	l.running.Store(true)

	l.readyMu.Lock()
	if !l.readySet {
		close(l.readyCh)
		l.readySet = true
	}
	l.readyMu.Unlock()

	defer func() {
		l.running.Store(false)
		l.wg.Done()
	}()

	for {
		select {
		case <-l.ctx.Done():
			return
		case item, ok := <-l.queue:
			if !ok {
				return
			}
			l.process(item)
		}
	}
}

// WaitForReady blocks until Run has started.
func (l *Loop) WaitForReady(ctx context.Context) error {
	select {
	case <-l.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a decoded value. It never blocks.
func (l *Loop) Submit(v any) error {
	return l.enqueue(queueItem{value: v})
}

// SubmitLine queues one wire line. Undecodable lines are dropped in order as
// malformed values.
func (l *Loop) SubmitLine(line wire.Line) error {
	return l.enqueue(queueItem{value: line.Value, decodeErr: line.Err})
}

// SubmitAndWait queues v and waits for its outcome.
func (l *Loop) SubmitAndWait(ctx context.Context, v any) (dispatch.Outcome, error) {
	resultCh := make(chan dispatch.Outcome, 1)
	if err := l.enqueue(queueItem{value: v, resultCh: resultCh}); err != nil {
		return dispatch.Outcome{}, err
	}
	select {
	case out := <-resultCh:
		return out, nil
	case <-ctx.Done():
		return dispatch.Outcome{}, ctx.Err()
	case <-l.ctx.Done():
		return dispatch.Outcome{}, context.Canceled
	}
}

func (l *Loop) enqueue(item queueItem) error {
	l.submitMu.RLock()
	defer l.submitMu.RUnlock()

	if !l.running.Load() {
		return ErrNotRunning
	}
	select {
	case l.queue <- item:
		return nil
	default:
		l.metrics.Dropped(metrics.ReasonQueueFull)
		log.Warn(log.CatDispatch, "inbound queue full, value dropped", "capacity", l.queueCapacity)
		return ErrQueueFull
	}
}

// Stop cancels the loop. Queued values are not processed.
func (l *Loop) Stop() {
	l.submitMu.Lock()
	l.running.Store(false)
	l.submitMu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// Drain stops accepting values, processes everything already queued, then
// returns.
func (l *Loop) Drain() {
	l.submitMu.Lock()
	if !l.running.Load() {
		l.submitMu.Unlock()
		return
	}
	l.running.Store(false)
	close(l.queue)
	l.submitMu.Unlock()

	l.wg.Wait()
}

// IsRunning reports whether the loop accepts values.
func (l *Loop) IsRunning() bool { return l.running.Load() }

// ProcessedCount returns the number of values taken off the queue.
func (l *Loop) ProcessedCount() int64 { return l.processedCount.Load() }

// DroppedCount returns the number of processed values that were dropped.
func (l *Loop) DroppedCount() int64 { return l.droppedCount.Load() }

// HandlerErrorCount returns the number of handler invocations that failed.
func (l *Loop) HandlerErrorCount() int64 { return l.handlerErrCount.Load() }

// QueueLength returns the number of queued values.
func (l *Loop) QueueLength() int { return len(l.queue) }

func (l *Loop) process(item queueItem) {
	var out dispatch.Outcome
	if item.decodeErr != nil {
		out = l.dispatcher.Reject(dispatch.DiagMalformed, "", item.decodeErr)
	} else {
		out = l.dispatcher.Dispatch(l.ctx, item.value)
	}

	l.processedCount.Add(1)
	if out.Dropped() {
		l.droppedCount.Add(1)
	}
	if out.HandlerErr != nil {
		l.handlerErrCount.Add(1)
	}

	if l.outcomes != nil {
		l.outcomes.Publish(pubsub.UpdatedEvent, out)
	}
	if item.resultCh != nil {
		item.resultCh <- out
		close(item.resultCh)
	}
}
