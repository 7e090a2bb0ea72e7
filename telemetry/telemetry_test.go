package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mrsingh-rishi/articulate/config"
)

func TestSetupDisabled(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer
	shutdown, err := setup(context.Background(), cfg, &buf, zerolog.Nop())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output when tracing is disabled")
	}
}

func TestSetupStdout(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.Tracing = "stdout"
	var buf bytes.Buffer

	shutdown, err := setup(context.Background(), cfg, &buf, zerolog.Nop())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "pipeline.transcribe")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "pipeline.transcribe") {
		t.Fatalf("expected exported span, got %q", buf.String())
	}
}
