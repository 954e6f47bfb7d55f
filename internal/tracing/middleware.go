package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

// Span names and attribute keys.
const (
	SpanPrefixDispatch = "dispatch."
	SpanPrefixOutbound = "outbound."

	AttrEnvelopeKind      = "envelope.kind"
	AttrEnvelopeSubsystem = "envelope.subsystem"
	AttrEnvelopeDirection = "envelope.direction"
	AttrSessionID         = "session.id"
)

// NewDispatchMiddleware creates a span per handled envelope. A nil tracer
// yields a pass-through middleware.
func NewDispatchMiddleware(tracer trace.Tracer, sessionID string) dispatch.Middleware {
	if tracer == nil {
		return func(next dispatch.Handler) dispatch.Handler { return next }
	}
	return func(next dispatch.Handler) dispatch.Handler {
		return dispatch.HandlerFunc(func(ctx context.Context, msg dispatch.Message) error {
			ctx, span := tracer.Start(ctx, SpanPrefixDispatch+msg.Kind(),
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(entryAttributes(msg.Entry, sessionID)...),
			)
			defer span.End()

			err := next.Handle(ctx, msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}

// StartOutbound starts a producer span for an outbound request. The caller
// ends it.
func StartOutbound(ctx context.Context, tracer trace.Tracer, e schema.Entry, sessionID string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, SpanPrefixOutbound+e.Kind,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(entryAttributes(e, sessionID)...),
	)
}

func entryAttributes(e schema.Entry, sessionID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrEnvelopeKind, e.Kind),
		attribute.String(AttrEnvelopeSubsystem, string(e.Subsystem)),
		attribute.String(AttrEnvelopeDirection, e.Direction.String()),
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	return attrs
}
