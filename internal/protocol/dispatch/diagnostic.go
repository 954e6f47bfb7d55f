package dispatch

import (
	"fmt"
	"time"
)

// Reason classifies why an inbound value never reached a handler.
type Reason string

const (
	// DiagMalformed: not a record with a string kind, or the payload failed
	// the kind's shape.
	DiagMalformed Reason = "malformed"
	// DiagNoHandler: the kind is unknown to the schema or nothing is registered for it.
	DiagNoHandler Reason = "no-handler"
)

// Diagnostic describes a dropped inbound value. It is local to the UI; nothing
// is sent back to the host.
type Diagnostic struct {
	Reason Reason
	Kind   string // empty when the value had no string kind
	Err    error
	At     time.Time
}

func (d Diagnostic) String() string {
	kind := d.Kind
	if kind == "" {
		kind = "<none>"
	}
	if d.Err == nil {
		return fmt.Sprintf("%s kind=%s", d.Reason, kind)
	}
	return fmt.Sprintf("%s kind=%s: %v", d.Reason, kind, d.Err)
}

// Outcome is the result of dispatching one value. Exactly one of Handled and
// Diagnostic is set.
type Outcome struct {
	Kind       string
	Handled    bool
	Diagnostic *Diagnostic
	// HandlerErr is the error (or recovered panic) of the handler invocation.
	// It does not make the value a diagnostic: the handler did run.
	HandlerErr error
}

// Dropped reports whether the value was dropped with a diagnostic.
func (o Outcome) Dropped() bool { return o.Diagnostic != nil }
