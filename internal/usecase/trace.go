package usecase

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var usecaseTracer = otel.Tracer("korfbal-live/internal/usecase")

// startUsecaseSpan only creates child spans; background work without a
// parent stays untraced.
func startUsecaseSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if name == "" || !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, trace.SpanFromContext(ctx)
	}
	return usecaseTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks server-side failures on span. Caller mistakes are not span errors.
func endSpan(span trace.Span, err error) {
	if err != nil && !isClientError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isClientError(err error) bool {
	for _, target := range []error{ErrInvalidInput, ErrInvalidState, ErrNotFound, ErrForbidden, ErrUnauthorized, ErrConflict, ErrCapacityExceeded} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
