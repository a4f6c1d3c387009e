package otelhelper

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorTypeKey holds the Go type of the error that failed a span, e.g. *workflow.LoadError.
const ErrorTypeKey = "error.type"

// SetError marks span as failed. attrs are attached to the recorded error event.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	errorType := attribute.String(ErrorTypeKey, fmt.Sprintf("%T", err))

	span.SetAttributes(errorType)
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err, trace.WithAttributes(append(attrs, errorType)...))
}
