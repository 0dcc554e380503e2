package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc")
	_, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc", cid)

	_, generated := EnsureCorrelationID(context.Background())
	assert.Len(t, generated, 26)
}

func TestStampAndRestoreRoundTripSpan(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithCorrelationID(ctx, "cid-1")

	md := Stamp(ctx, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, "cid-1", md.CorrelationID)
	assert.Equal(t, traceID.String(), md.TraceID)
	assert.Equal(t, spanID.String(), md.SpanID)

	restored := Restore(context.Background(), md)
	assert.Equal(t, "cid-1", ExtractCorrelationID(restored))
	got := trace.SpanContextFromContext(restored)
	assert.True(t, got.IsRemote())
	assert.Equal(t, traceID, got.TraceID())
}
