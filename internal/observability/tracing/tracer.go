// Package tracing carries W3C trace context through the API surface so a
// slow identification can be broken down into its transcription, embedding
// and index phases. Exporter wiring is environment specific and configured
// at deploy time.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tunescout")

// Tracer returns the application tracer for creating child spans.
func Tracer() trace.Tracer {
	return tracer
}
