package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Subsystem groups kinds that share a domain (roster, task queue, memory, ...).
type Subsystem string

const (
	SubsystemRoster      Subsystem = "roster"
	SubsystemTaskQueue   Subsystem = "taskqueue"
	SubsystemMemory      Subsystem = "memory"
	SubsystemRetry       Subsystem = "retry"
	SubsystemTyping      Subsystem = "typing"
	SubsystemError       Subsystem = "error"
	SubsystemAuth        Subsystem = "auth"
	SubsystemSuggestions Subsystem = "suggestions"
)

// Direction says which side of the boundary emits a kind.
type Direction int

const (
	// ToHost kinds are requests the UI sends to the extension host.
	ToHost Direction = iota
	// ToUI kinds are broadcasts the host sends to the UI.
	ToUI
)

func (d Direction) String() string {
	switch d {
	case ToHost:
		return "to-host"
	case ToUI:
		return "to-ui"
	default:
		return "unknown"
	}
}

// Entry is one registered kind.
type Entry struct {
	Subsystem Subsystem
	Kind      string
	Direction Direction
	Shape     Shape
}

// PayloadOptional reports whether an envelope of this kind may omit its payload.
func (e Entry) PayloadOptional() bool {
	switch e.Shape.(type) {
	case noneShape, anyShape:
		return true
	default:
		return false
	}
}

// Registry maps kind names to entries. Kinds are grouped by subsystem; each
// subsystem registers its own kinds without touching the others.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	bySubsystem map[Subsystem][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:     make(map[string]Entry),
		bySubsystem: make(map[Subsystem][]string),
	}
}

// Default is the process-wide registry the message catalog registers into.
var Default = NewRegistry()

// Register declares a kind. Registering an identical entry again is a no-op.
// Kinds are unique across the whole registry, not just within a subsystem:
// the dispatcher routes by kind alone, so the same kind declared under two
// subsystems is a conflict even when the shapes match.
// Reusing a kind with a different shape, direction or subsystem panics:
// registration runs from package init, so a conflicting declaration stops the
// program (and every test binary) before any envelope is handled.
func (r *Registry) Register(sub Subsystem, kind string, dir Direction, shape Shape) Entry {
	if kind == "" {
		panic(fmt.Sprintf("schema: empty kind in subsystem %q", sub))
	}
	if shape == nil {
		panic(fmt.Sprintf("schema: nil shape for kind %q", kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{Subsystem: sub, Kind: kind, Direction: dir, Shape: shape}
	if existing, ok := r.entries[kind]; ok {
		if err := compatible(existing, entry); err != nil {
			panic(err.Error())
		}
		return existing
	}

	r.entries[kind] = entry
	r.bySubsystem[sub] = append(r.bySubsystem[sub], kind)
	return entry
}

func compatible(existing, next Entry) error {
	switch {
	case existing.Subsystem != next.Subsystem:
		return fmt.Errorf("%w: kind %q already belongs to subsystem %q, redeclared in %q",
			ErrIncompatibleKind, next.Kind, existing.Subsystem, next.Subsystem)
	case existing.Direction != next.Direction:
		return fmt.Errorf("%w: kind %q redeclared %s, was %s",
			ErrIncompatibleKind, next.Kind, next.Direction, existing.Direction)
	case !Equal(existing.Shape, next.Shape):
		return fmt.Errorf("%w: kind %q redeclared in %q with a different payload shape",
			ErrIncompatibleKind, next.Kind, next.Subsystem)
	}
	return nil
}

// Lookup returns the entry for kind.
func (r *Registry) Lookup(kind string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[kind]
	return e, ok
}

// Kinds returns the kinds registered for one subsystem, in registration order.
func (r *Registry) Kinds(sub Subsystem) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.bySubsystem[sub]...)
}

// Subsystems returns all subsystems with at least one kind, sorted.
func (r *Registry) Subsystems() []Subsystem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subsystem, 0, len(r.bySubsystem))
	for s := range r.bySubsystem {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns every entry sorted by subsystem then kind.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subsystem != out[j].Subsystem {
			return out[i].Subsystem < out[j].Subsystem
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Kind is a typed handle for a registered kind whose payload decodes into P.
// Zero-payload kinds use Kind[Empty].
type Kind[P any] struct {
	entry Entry
}

// Empty is the payload type of zero-payload kinds.
type Empty struct{}

// Define registers a kind and returns its typed handle.
func Define[P any](r *Registry, sub Subsystem, kind string, dir Direction, shape Shape) Kind[P] {
	return Kind[P]{entry: r.Register(sub, kind, dir, shape)}
}

// Name returns the wire discriminant.
func (k Kind[P]) Name() string { return k.entry.Kind }

// Entry returns the registered entry.
func (k Kind[P]) Entry() Entry { return k.entry }

func (k Kind[P]) String() string { return k.entry.Kind }
