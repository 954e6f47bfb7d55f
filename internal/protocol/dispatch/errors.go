package dispatch

import "errors"

var (
	// ErrDecode is returned when a validated payload cannot be decoded into the
	// handler's Go type. It indicates a catalog type that disagrees with its shape.
	ErrDecode = errors.New("payload does not decode into handler type")

	// ErrHandlerPanic wraps a value recovered from a panicking handler.
	ErrHandlerPanic = errors.New("handler panicked")
)
