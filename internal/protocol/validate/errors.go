package validate

import "errors"

// Generic envelope failures. Payload failures are *schema.ShapeError values.
var (
	ErrNotRecord     = errors.New("envelope is not a record")
	ErrMissingKind   = errors.New("envelope has no kind")
	ErrKindNotString = errors.New("envelope kind is not a string")
	ErrUnknownKind   = errors.New("envelope kind is not registered")
	ErrKindMismatch  = errors.New("envelope kind does not match validator")
)
