package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer delegates to the global provider installed by telemetry.NewTracer.
var tracer = otel.Tracer("github.com/fomightez/pdbepisa-binder/pkg/engine")

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
