package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_RequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	assert.Error(t, err)
}

func TestInit_NoEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "rectask"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(exp, Config{ServiceName: "rectask", ServiceVersion: "test"})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "run")
	span.AddEvent("state.running")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.NoError(t, tp.Shutdown(context.Background()))
	require.Len(t, spans, 1)
	assert.Equal(t, "run", spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "state.running", spans[0].Events[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.name", "rectask"))
}
