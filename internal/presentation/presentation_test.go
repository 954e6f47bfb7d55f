package presentation

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/agentpanel/internal/protocol/conformance"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

func sampleEntries() []schema.Entry {
	r := schema.NewRegistry()
	r.Register(schema.SubsystemRoster, "get-agents-status", schema.ToHost, schema.None())
	r.Register(schema.SubsystemTyping, "AGENT_TYPING", schema.ToUI,
		schema.Object(schema.Optional("agentId", schema.String()), schema.Field("threadId", schema.String())))
	return r.Entries()
}

func TestNewFormatter_RejectsUnknownFormat(t *testing.T) {
	_, err := NewFormatter(&bytes.Buffer{}, "xml")
	require.ErrorContains(t, err, `unsupported output format "xml"`)

	f, err := NewFormatter(&bytes.Buffer{}, "")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f.format)
}

func TestFormatKinds_JSON(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, f.FormatKinds(FromEntries(sampleEntries(), false)))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "get-agents-status", got[0]["kind"])
	require.Equal(t, "to-host", got[0]["direction"])
	require.Equal(t, true, got[0]["payloadOptional"])
	require.NotContains(t, got[0], "schema")
	require.Equal(t, "typing", got[1]["subsystem"])
}

func TestFormatKinds_YAMLWithSchema(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatYAML)
	require.NoError(t, err)
	require.NoError(t, f.FormatKinds(FromEntries(sampleEntries()[1:], true)))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "AGENT_TYPING", got[0]["kind"])
	require.Equal(t, false, got[0]["payload_optional"])
	doc := got[0]["schema"].(map[string]any)
	require.Equal(t, "AGENT_TYPING", doc["title"])
}

func TestFormatCheckReport(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFormatter(&buf, FormatYAML)
	require.NoError(t, err)
	report := conformance.Report{
		Total: 1, Invalid: 1,
		Lines: []conformance.Result{{Line: 3, Kind: "x", Agree: true, ValidatorError: "boom"}},
	}
	require.NoError(t, f.FormatCheckReport(report))
	require.Contains(t, buf.String(), "validator_error: boom")
	require.Contains(t, buf.String(), "total: 1")
}
