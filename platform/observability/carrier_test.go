package observability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectExtractHeaders_RoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectHeaders(ctx, map[string]string{"correlation-id": "abc"})
	require.Contains(t, headers, "traceparent")
	assert.Equal(t, "abc", headers["correlation-id"])

	extracted := ExtractHeaders(context.Background(), headers)
	remote := trace.SpanContextFromContext(extracted)
	require.True(t, remote.IsValid())
	assert.True(t, remote.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), remote.TraceID())
}

func TestExtractHeaders_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ExtractHeaders(ctx, nil))
}

func TestInjectHeaders_NilMap(t *testing.T) {
	headers := InjectHeaders(context.Background(), nil)
	assert.NotNil(t, headers)
}

func TestTraceFields_CorrelationID(t *testing.T) {
	id := uuid.New()
	ctx := WithCorrelationID(context.Background(), id)

	fields := TraceFields(ctx)
	require.Len(t, fields, 1)
	assert.Equal(t, "correlation_id", fields[0].Key)
	assert.Equal(t, id.String(), fields[0].String)

	got, ok := CorrelationIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)
}
