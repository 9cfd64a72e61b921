package main

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jingkaihe/skillfit/pkg/batch"
)

func TestComplianceExitCode(t *testing.T) {
	tests := []struct {
		name    string
		summary batch.Summary
		want    int
	}{
		{"empty", batch.Summary{}, 0},
		{"all compliant", batch.Summary{Total: 2, Compliant: 2}, 0},
		{"over budget", batch.Summary{Total: 2, Compliant: 1, NonCompliant: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, complianceExitCode(&batch.Report{Summary: tt.summary}))
		})
	}
}

func TestWithTracingEndsSpanOnFailure(t *testing.T) {
	tests := []struct {
		name string
		code int
		want codes.Code
	}{
		{"success", 0, codes.Ok},
		{"failure", 1, codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			previous := tracer
			tracer = provider.Tracer("test")
			exitCode = 0
			t.Cleanup(func() {
				tracer = previous
				exitCode = 0
			})

			cmd := withTracing(&cobra.Command{
				Use: "check",
				Run: func(*cobra.Command, []string) { exitCode = tt.code },
			})
			cmd.SetContext(context.Background())
			cmd.Run(cmd, nil)

			assert.Equal(t, tt.code, exitCode)
			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "cli.command", spans[0].Name())
			assert.Equal(t, tt.want, spans[0].Status().Code)
		})
	}
}
