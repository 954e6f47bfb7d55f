// Package conformance cross-checks captured envelopes against both the
// hand-written validators and the exported JSON Schema of their kind.
// A line where the two verdicts differ points at a drift between the
// validator and the schema export.
package conformance

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/protocol/validate"
	"github.com/zjrosen/agentpanel/internal/wire"
)

// Result is the verdict for one capture line.
type Result struct {
	Line           int      `json:"line" yaml:"line"`
	Kind           string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Validator      bool     `json:"validator" yaml:"validator"`
	Schema         bool     `json:"schema" yaml:"schema"`
	Agree          bool     `json:"agree" yaml:"agree"`
	ValidatorError string   `json:"validatorError,omitempty" yaml:"validator_error,omitempty"`
	SchemaErrors   []string `json:"schemaErrors,omitempty" yaml:"schema_errors,omitempty"`
}

// Report summarizes a capture.
type Report struct {
	Total     int      `json:"total" yaml:"total"`
	Valid     int      `json:"valid" yaml:"valid"`
	Invalid   int      `json:"invalid" yaml:"invalid"`
	Disagreed int      `json:"disagreed" yaml:"disagreed"`
	Lines     []Result `json:"lines" yaml:"lines"`
}

// Checker compiles envelope schemas lazily and caches them per kind.
type Checker struct {
	reg *schema.Registry

	mu       sync.Mutex
	compiled map[string]*gojsonschema.Schema
}

// New returns a checker over reg.
func New(reg *schema.Registry) *Checker {
	return &Checker{reg: reg, compiled: make(map[string]*gojsonschema.Schema)}
}

func (c *Checker) schemaFor(e schema.Entry) (*gojsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.compiled[e.Kind]; ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema.EnvelopeSchemaFor(e)))
	if err != nil {
		return nil, fmt.Errorf("compiling schema for %s: %w", e.Kind, err)
	}
	c.compiled[e.Kind] = s
	return s, nil
}

// Check judges one line. Lines that fail to decode, are not envelopes, or
// carry an unknown kind are rejected by both sides, since no schema applies.
func (c *Checker) Check(line wire.Line) (Result, error) {
	res := Result{Line: line.Number}
	if line.Err != nil {
		res.ValidatorError = line.Err.Error()
		res.Agree = true
		return res, nil
	}

	_, verr := validate.Check(c.reg, line.Value)
	res.Validator = verr == nil
	if verr != nil {
		res.ValidatorError = verr.Error()
	}

	kind, ok := validate.Envelope(line.Value)
	if ok {
		res.Kind = kind
	}
	e, known := c.reg.Lookup(kind)
	if !ok || !known {
		res.Agree = !res.Validator
		return res, nil
	}

	s, err := c.schemaFor(e)
	if err != nil {
		return res, err
	}
	out, err := s.Validate(gojsonschema.NewBytesLoader(line.Raw))
	if err != nil {
		return res, fmt.Errorf("line %d: %w", line.Number, err)
	}
	res.Schema = out.Valid()
	for _, desc := range out.Errors() {
		res.SchemaErrors = append(res.SchemaErrors, desc.String())
	}
	res.Agree = res.Validator == res.Schema
	if !res.Agree {
		log.Warn(log.CatProtocol, "validator and schema disagree",
			"line", line.Number, "kind", kind, "validator", res.Validator, "schema", res.Schema)
	}
	return res, nil
}

// Run checks every line of r.
func (c *Checker) Run(ctx context.Context, r io.Reader) (Report, error) {
	report := Report{Lines: []Result{}}
	err := wire.Scan(ctx, r, func(line wire.Line) error {
		res, err := c.Check(line)
		if err != nil {
			return err
		}
		report.Total++
		if res.Validator {
			report.Valid++
		} else {
			report.Invalid++
		}
		if !res.Agree {
			report.Disagreed++
		}
		report.Lines = append(report.Lines, res)
		return nil
	})
	return report, err
}
