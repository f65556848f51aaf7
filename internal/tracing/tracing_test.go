package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/totoccar/SpaceSituationalAwareness/internal/logging"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, nil, logging.Discard())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing should produce invalid span contexts")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		Enabled:     true,
		ServiceName: "ssa-test",
		Exporter:    "stdout",
		SampleRatio: 1,
	}, &buf, logging.Discard())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { Init(context.Background(), Config{}, nil, logging.Discard()) })

	_, span := otel.Tracer("test").Start(context.Background(), "classify")
	span.End()
	ShutdownWithTimeout(shutdown, time.Second, logging.Discard())

	if !strings.Contains(buf.String(), `"Name":"classify"`) {
		t.Errorf("exported spans = %q, want span named classify", buf.String())
	}
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, nil, logging.Discard())
	if err == nil || !strings.Contains(err.Error(), "zipkin") {
		t.Errorf("err = %v, want unsupported exporter error", err)
	}
}
