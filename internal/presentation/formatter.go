// Package presentation renders command output as JSON or YAML.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/agentpanel/internal/protocol/conformance"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
}

// NewFormatter creates a new formatter. An empty format means JSON.
func NewFormatter(writer io.Writer, format string) (*Formatter, error) {
	switch format {
	case "", FormatJSON:
		format = FormatJSON
	case FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q (want %q or %q)", format, FormatJSON, FormatYAML)
	}
	return &Formatter{writer: writer, format: format}, nil
}

// Format writes v in the formatter's format.
func (f *Formatter) Format(v any) error {
	if f.format == FormatYAML {
		encoder := yaml.NewEncoder(f.writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	}
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatKinds writes the kind catalog.
func (f *Formatter) FormatKinds(kinds []KindDTO) error {
	return f.Format(kinds)
}

// FormatCheckReport writes a conformance report.
func (f *Formatter) FormatCheckReport(report conformance.Report) error {
	return f.Format(report)
}
