package tracing

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldwatch-agent/internal/config"
)

func TestNewProvider_DisabledReturnsNoopTracer(t *testing.T) {
	p, err := NewProvider(config.TracingConfig{Enabled: false}, logrus.New())
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())

	_, span := StartSpan(context.Background(), p.Tracer(), "test.op")
	defer span.End()
	assert.NotNil(t, span)
}

func TestNewProvider_RejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(config.TracingConfig{
		Enabled:  true,
		Exporter: "not-a-real-exporter",
	}, logrus.New())
	require.Error(t, err)
}

func TestExtractTraceInfo_NoActiveSpanReturnsEmpty(t *testing.T) {
	traceID, spanID := ExtractTraceInfo(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}
