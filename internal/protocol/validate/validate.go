// Package validate answers "is this decoded value a well-formed envelope of
// kind K" for every registered kind, without ever panicking. Validators
// compose: a subsystem validator is the OR of its kind validators, guarded by
// a cheap kind-membership reject.
package validate

import (
	"fmt"

	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

// Validator is a total predicate over an arbitrary decoded value.
type Validator func(v any) bool

// Envelope performs the generic sanity check: v is a record with a string kind.
func Envelope(v any) (string, bool) {
	kind, err := envelopeKind(v)
	return kind, err == nil
}

func envelopeKind(v any) (string, error) {
	rec, ok := v.(map[string]any)
	if !ok || rec == nil {
		return "", ErrNotRecord
	}
	raw, present := rec["kind"]
	if !present {
		return "", ErrMissingKind
	}
	kind, ok := raw.(string)
	if !ok {
		return "", ErrKindNotString
	}
	return kind, nil
}

// Payload returns the payload field of a record that passed Envelope.
// An absent payload is nil.
func Payload(v any) any {
	rec, _ := v.(map[string]any)
	return rec["payload"]
}

// ForEntry builds the validator for one registered entry: generic sanity,
// exact kind match, then the payload shape.
func ForEntry(e schema.Entry) Validator {
	return func(v any) (ok bool) {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		kind, valid := Envelope(v)
		if !valid || kind != e.Kind {
			return false
		}
		return e.Shape.Check(Payload(v)) == nil
	}
}

// ForKind builds the validator for a kind. Unregistered kinds get a validator
// that rejects everything.
func ForKind(reg *schema.Registry, kind string) Validator {
	e, ok := reg.Lookup(kind)
	if !ok {
		return func(any) bool { return false }
	}
	return ForEntry(e)
}

// Is is the typed form of ForKind.
func Is[P any](k schema.Kind[P]) Validator {
	return ForEntry(k.Entry())
}

// ForSubsystem accepts any well-formed envelope of any kind in sub. Traffic for
// other subsystems is rejected on the kind alone before any payload is read.
func ForSubsystem(reg *schema.Registry, sub schema.Subsystem) Validator {
	kinds := reg.Kinds(sub)
	byKind := make(map[string]Validator, len(kinds))
	for _, k := range kinds {
		byKind[k] = ForKind(reg, k)
	}
	return func(v any) bool {
		kind, ok := Envelope(v)
		if !ok {
			return false
		}
		confirm, mine := byKind[kind]
		if !mine {
			return false
		}
		return confirm(v)
	}
}

// Any is the logical OR of validators.
func Any(validators ...Validator) Validator {
	return func(v any) bool {
		for _, fn := range validators {
			if fn(v) {
				return true
			}
		}
		return false
	}
}

// All is the logical AND of validators.
func All(validators ...Validator) Validator {
	return func(v any) bool {
		for _, fn := range validators {
			if !fn(v) {
				return false
			}
		}
		return true
	}
}

// Check is the diagnostic form of validation. It returns the matched entry or
// an error explaining the rejection: one of the sentinels in this package, or
// a *schema.ShapeError wrapped with the kind.
func Check(reg *schema.Registry, v any) (schema.Entry, error) {
	kind, err := envelopeKind(v)
	if err != nil {
		return schema.Entry{}, err
	}
	e, ok := reg.Lookup(kind)
	if !ok {
		return schema.Entry{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := CheckEntry(e, v); err != nil {
		return e, err
	}
	return e, nil
}

// CheckEntry validates v against a known entry.
func CheckEntry(e schema.Entry, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: validator panicked: %v", e.Kind, r)
		}
	}()
	kind, kerr := envelopeKind(v)
	if kerr != nil {
		return kerr
	}
	if kind != e.Kind {
		return fmt.Errorf("%w: got %q, want %q", ErrKindMismatch, kind, e.Kind)
	}
	if serr := e.Shape.Check(Payload(v)); serr != nil {
		return fmt.Errorf("%s: %w", e.Kind, serr)
	}
	return nil
}
