package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// installRecorder replaces the global tracer provider for the duration of the test.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartServiceSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "cash_session", "close",
		telemetry.WithAttribute(telemetry.SpanAttrSite, "downtown"),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	telemetry.SetOK(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "cash_session.close", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	site, ok := attrValue(spans[0].Attributes(), telemetry.SpanAttrSite)
	require.True(t, ok)
	assert.Equal(t, "downtown", site.AsString())
}

func TestSetAttributesAndEvents(t *testing.T) {
	recorder := installRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "ledger_entry.create")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, 120.5,
		telemetry.SpanAttrAttempt, 2,
		"dangling",
	)
	telemetry.AddEvent(span, "receipt_assigned", telemetry.SpanAttrReceipt, "R-2024-001")
	span.End()

	s := recorder.Ended()[0]
	amount, ok := attrValue(s.Attributes(), telemetry.SpanAttrAmount)
	require.True(t, ok)
	assert.InDelta(t, 120.5, amount.AsFloat64(), 1e-9)
	attempt, ok := attrValue(s.Attributes(), telemetry.SpanAttrAttempt)
	require.True(t, ok)
	assert.Equal(t, int64(2), attempt.AsInt64())
	_, ok = attrValue(s.Attributes(), "dangling")
	assert.False(t, ok)

	require.Len(t, s.Events(), 1)
	assert.Equal(t, "receipt_assigned", s.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	recorder := installRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("boom"))
	span.End()

	s := recorder.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}
