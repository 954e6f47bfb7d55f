package schema

import "errors"

// ErrIncompatibleKind is raised (as a panic message) when a kind is redeclared
// with a different subsystem, direction or payload shape.
var ErrIncompatibleKind = errors.New("incompatible kind registration")

// ErrUnknownKind is returned by schema rendering for kinds never registered.
var ErrUnknownKind = errors.New("unknown kind")
