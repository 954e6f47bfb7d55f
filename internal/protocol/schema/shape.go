// Package schema declares the closed set of envelope kinds the UI understands.
// Each kind carries a structural Shape for its payload. Shapes are plain
// declarations: they check decoded JSON values (map[string]any, []any, float64,
// string, bool, nil) and render themselves as JSON Schema for export.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Shape is a structural predicate over a decoded JSON value.
type Shape interface {
	// Check reports whether v conforms. It never panics; a failure is a *ShapeError.
	Check(v any) error
	// JSONSchema renders the shape as a draft-07 JSON Schema fragment.
	JSONSchema() map[string]any

	check(v any, path string) *ShapeError
}

// ShapeError describes the first place where a value diverged from its shape.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return e.Path + ": " + e.Reason
}

func mismatch(path, format string, args ...any) *ShapeError {
	return &ShapeError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// describe names the JSON type of a decoded value for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func checkRoot(s Shape, v any) error {
	if err := s.check(v, "payload"); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Primitive shapes
// ---------------------------------------------------------------------------

type noneShape struct{}

// None is the shape of zero-payload kinds: the payload must be absent.
func None() Shape { return noneShape{} }

func (s noneShape) Check(v any) error { return checkRoot(s, v) }

func (noneShape) check(v any, path string) *ShapeError {
	if v != nil {
		return mismatch(path, "expected no payload, got %s", describe(v))
	}
	return nil
}

func (noneShape) JSONSchema() map[string]any { return map[string]any{"type": "null"} }

type anyShape struct{}

// Any accepts every value, including absence.
func Any() Shape { return anyShape{} }

func (s anyShape) Check(v any) error { return checkRoot(s, v) }

func (anyShape) check(any, string) *ShapeError { return nil }

func (anyShape) JSONSchema() map[string]any { return map[string]any{} }

type stringShape struct{}

// String accepts any string, including the empty string.
func String() Shape { return stringShape{} }

func (s stringShape) Check(v any) error { return checkRoot(s, v) }

func (stringShape) check(v any, path string) *ShapeError {
	if _, ok := v.(string); !ok {
		return mismatch(path, "expected string, got %s", describe(v))
	}
	return nil
}

func (stringShape) JSONSchema() map[string]any { return map[string]any{"type": "string"} }

// idPattern matches a string holding at least one non-white-space rune, the
// same set strings.TrimSpace leaves behind.
const idPattern = `[^\t\n\v\f\r\x{85}\p{Z}]`

type idShape struct{}

// ID accepts identifiers: strings that are non-empty after trimming white space.
func ID() Shape { return idShape{} }

func (s idShape) Check(v any) error { return checkRoot(s, v) }

func (idShape) check(v any, path string) *ShapeError {
	str, ok := v.(string)
	if !ok {
		return mismatch(path, "expected identifier string, got %s", describe(v))
	}
	if strings.TrimSpace(str) == "" {
		return mismatch(path, "expected non-empty identifier")
	}
	return nil
}

func (idShape) JSONSchema() map[string]any {
	return map[string]any{"type": "string", "pattern": idPattern}
}

type finiteShape struct{}

// Finite accepts finite numbers. Timestamps use it; there is no range check.
func Finite() Shape { return finiteShape{} }

func (s finiteShape) Check(v any) error { return checkRoot(s, v) }

func (finiteShape) check(v any, path string) *ShapeError {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int, int32, int64:
		return nil
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return mismatch(path, "expected finite number, got %q", string(n))
		}
		f = parsed
	default:
		return mismatch(path, "expected finite number, got %s", describe(v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return mismatch(path, "expected finite number, got %v", f)
	}
	return nil
}

func (finiteShape) JSONSchema() map[string]any { return map[string]any{"type": "number"} }

type boolShape struct{}

// Bool accepts true or false.
func Bool() Shape { return boolShape{} }

func (s boolShape) Check(v any) error { return checkRoot(s, v) }

func (boolShape) check(v any, path string) *ShapeError {
	if _, ok := v.(bool); !ok {
		return mismatch(path, "expected boolean, got %s", describe(v))
	}
	return nil
}

func (boolShape) JSONSchema() map[string]any { return map[string]any{"type": "boolean"} }

type enumShape struct {
	literals []string
	set      map[string]struct{}
}

// Enum accepts exactly one of the given string literals. Unknown literals are
// rejected, never coerced.
func Enum(literals ...string) Shape {
	sorted := append([]string(nil), literals...)
	sort.Strings(sorted)
	set := make(map[string]struct{}, len(sorted))
	for _, l := range sorted {
		set[l] = struct{}{}
	}
	return enumShape{literals: sorted, set: set}
}

func (s enumShape) Check(v any) error { return checkRoot(s, v) }

func (s enumShape) check(v any, path string) *ShapeError {
	str, ok := v.(string)
	if !ok {
		return mismatch(path, "expected one of %v, got %s", s.literals, describe(v))
	}
	if _, ok := s.set[str]; !ok {
		return mismatch(path, "unknown literal %q, expected one of %v", str, s.literals)
	}
	return nil
}

func (s enumShape) JSONSchema() map[string]any {
	lits := make([]any, len(s.literals))
	for i, l := range s.literals {
		lits[i] = l
	}
	return map[string]any{"type": "string", "enum": lits}
}

// ---------------------------------------------------------------------------
// Composite shapes
// ---------------------------------------------------------------------------

type arrayShape struct {
	elem Shape
}

// ArrayOf accepts arrays whose every element conforms to elem.
func ArrayOf(elem Shape) Shape { return arrayShape{elem: elem} }

func (s arrayShape) Check(v any) error { return checkRoot(s, v) }

func (s arrayShape) check(v any, path string) *ShapeError {
	arr, ok := v.([]any)
	if !ok {
		return mismatch(path, "expected array, got %s", describe(v))
	}
	for i, el := range arr {
		if err := s.elem.check(el, path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	return nil
}

func (s arrayShape) JSONSchema() map[string]any {
	return map[string]any{"type": "array", "items": s.elem.JSONSchema()}
}

// FieldSpec declares one property of an Object shape.
type FieldSpec struct {
	Name     string
	Shape    Shape
	Optional bool
}

// Field declares a required property.
func Field(name string, s Shape) FieldSpec { return FieldSpec{Name: name, Shape: s} }

// Optional declares a property that may be absent. When present it must
// conform; an explicit null is not the same as absent.
func Optional(name string, s Shape) FieldSpec {
	return FieldSpec{Name: name, Shape: s, Optional: true}
}

type objectShape struct {
	fields []FieldSpec
}

// Object accepts records carrying the declared fields. Undeclared properties
// are ignored, matching structural typing on the other side of the boundary.
func Object(fields ...FieldSpec) Shape {
	return objectShape{fields: append([]FieldSpec(nil), fields...)}
}

func (s objectShape) Check(v any) error { return checkRoot(s, v) }

func (s objectShape) check(v any, path string) *ShapeError {
	rec, ok := v.(map[string]any)
	if !ok {
		return mismatch(path, "expected object, got %s", describe(v))
	}
	for _, f := range s.fields {
		fieldPath := path + "." + f.Name
		val, present := rec[f.Name]
		if !present {
			if f.Optional {
				continue
			}
			return mismatch(fieldPath, "missing required field")
		}
		if err := f.Shape.check(val, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func (s objectShape) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	var required []any
	var names []string
	for _, f := range s.fields {
		props[f.Name] = f.Shape.JSONSchema()
		if !f.Optional {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		required = append(required, n)
	}
	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// canonical renders a shape into a stable string used for compatibility checks.
func canonical(s Shape) string {
	b, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return fmt.Sprintf("%#v", s)
	}
	return string(b)
}

// Equal reports whether two shapes accept the same values by construction.
func Equal(a, b Shape) bool {
	return canonical(a) == canonical(b)
}
