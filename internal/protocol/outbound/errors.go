package outbound

import "errors"

var (
	// ErrInvalidPayload is returned when a payload does not conform to its
	// kind's shape. Nothing is posted.
	ErrInvalidPayload = errors.New("payload does not match kind shape")

	// ErrNotToHost is returned for kinds the host sends rather than receives.
	ErrNotToHost = errors.New("kind is not sent to the host")

	// ErrUnregisteredKind is returned for kinds missing from the client's registry.
	ErrUnregisteredKind = errors.New("kind is not registered")

	// ErrNoPort is returned when the client has no port to post on.
	ErrNoPort = errors.New("no outbound port")
)
