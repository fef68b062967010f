package tracing

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer, shutdown, err := NewTracer(Config{Enabled: true, Writer: &buf})
	require.Nil(t, err)

	_, span := StartStage(context.Background(), tracer, "RAW", "Raw Atlas Creation")
	EndStage(span, 3, nil)
	_, span = StartStage(context.Background(), tracer, "LINE_SLICED", "Line Sliced Atlas Creation")
	EndStage(span, 0, fmt.Errorf("boom"))
	require.Nil(t, shutdown(context.Background()))

	out := buf.String()
	require.Contains(t, out, "Raw Atlas Creation")
	require.Contains(t, out, "LINE_SLICED")
	require.Contains(t, out, "boom")
}

func TestDisabled(t *testing.T) {
	tracer, shutdown, err := NewTracer(Config{})
	require.Nil(t, err)
	_, span := StartStage(context.Background(), tracer, "RAW", "Raw Atlas Creation")
	require.False(t, span.SpanContext().IsValid())
	EndStage(span, 0, nil)
	require.Nil(t, shutdown(context.Background()))
}
