package eventloop

import "errors"

var (
	// ErrQueueFull is returned by Submit when the inbound queue is at capacity.
	ErrQueueFull = errors.New("inbound queue is full")

	// ErrNotRunning is returned by Submit before Run or after Drain/Stop.
	ErrNotRunning = errors.New("event loop is not running")
)
