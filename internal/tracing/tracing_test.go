package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/testutil"
)

func recordingTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

// ===========================================================================
// Provider
// ===========================================================================

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(DefaultConfig())
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"none", Config{Enabled: true, Exporter: "none"}, ""},
		{"file", Config{Enabled: true, Exporter: "file", FilePath: filepath.Join(t.TempDir(), "t", "traces.jsonl")}, ""},
		{"file without path", Config{Enabled: true, Exporter: "file"}, "file_path required"},
		{"unknown", Config{Enabled: true, Exporter: "zipkin"}, "unsupported exporter type: zipkin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, p.Enabled())
			require.NoError(t, p.Shutdown(context.Background()))
		})
	}
}

// ===========================================================================
// Dispatch middleware
// ===========================================================================

func TestDispatchMiddleware_SpanPerHandledEnvelope(t *testing.T) {
	recorder, tp := recordingTracer(t)

	d := dispatch.New(messages.Registry(),
		dispatch.WithMiddleware(NewDispatchMiddleware(tp.Tracer("test"), "session-1")))
	dispatch.Handle(d, messages.AgentTyping, func(context.Context, dispatch.Envelope[messages.TypingEvent]) error { return nil })
	boom := errors.New("reducer failed")
	dispatch.Handle(d, messages.ErrorKind, func(context.Context, dispatch.Envelope[messages.HostError]) error { return boom })

	ctx := context.Background()
	d.Dispatch(ctx, testutil.Envelope(t, "AGENT_TYPING", messages.TypingEvent{AgentID: "a1", ThreadID: "t1"}))
	d.Dispatch(ctx, testutil.Envelope(t, "error", messages.HostError{Message: "x"}))
	d.Dispatch(ctx, map[string]any{"kind": "totally-unknown"})

	spans := recorder.Ended()
	require.Len(t, spans, 2, "dropped envelopes produce no span")

	typing := spans[0]
	assert.Equal(t, "dispatch.AGENT_TYPING", typing.Name())
	assert.Equal(t, codes.Ok, typing.Status().Code)
	attrs := map[string]string{}
	for _, kv := range typing.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, map[string]string{
		AttrEnvelopeKind:      "AGENT_TYPING",
		AttrEnvelopeSubsystem: "typing",
		AttrEnvelopeDirection: "to-ui",
		AttrSessionID:         "session-1",
	}, attrs)

	failed := spans[1]
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "reducer failed", failed.Status().Description)
	require.Len(t, failed.Events(), 1)
}

func TestDispatchMiddleware_NilTracerPassesThrough(t *testing.T) {
	called := false
	h := NewDispatchMiddleware(nil, "")(dispatch.HandlerFunc(func(context.Context, dispatch.Message) error {
		called = true
		return nil
	}))
	require.NoError(t, h.Handle(context.Background(), dispatch.Message{Entry: messages.ErrorKind.Entry()}))
	require.True(t, called)
}

func TestStartOutbound(t *testing.T) {
	recorder, tp := recordingTracer(t)
	_, span := StartOutbound(context.Background(), tp.Tracer("test"), messages.RequestMemorySnapshot.Entry(), "")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "outbound.request-memory-snapshot", spans[0].Name())
}

// ===========================================================================
// File exporter
// ===========================================================================

func TestFileExporter_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	d := dispatch.New(messages.Registry(), dispatch.WithMiddleware(NewDispatchMiddleware(tp.Tracer("test"), "s")))
	dispatch.Handle(d, messages.AgentRetryResult, func(context.Context, dispatch.Envelope[messages.RetryResult]) error { return nil })
	d.Dispatch(context.Background(), testutil.Envelope(t, "agent-retry-result", messages.RetryResult{AgentID: "a", TaskID: "t", Success: true}))
	require.NoError(t, tp.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 1)
	require.Equal(t, "dispatch.agent-retry-result", records[0].Name)
	require.Equal(t, "OK", records[0].Status)
	require.Equal(t, "retry", records[0].Attributes[AttrEnvelopeSubsystem])

	require.Error(t, exp.ExportSpans(context.Background(), nil), "export after shutdown")
	require.NoError(t, exp.Shutdown(context.Background()))
}
