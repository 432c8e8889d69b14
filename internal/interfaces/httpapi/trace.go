package httpapi

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var apiTracer = otel.Tracer("korfbal-live/internal/interfaces/httpapi")

// startSpan opens a child of the request span. Untraced requests (filtered
// routes such as /healthz) get no standalone root spans.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, parent
	}
	return apiTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func routeAttrs(r *http.Request) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := r.PathValue("matchID"); id != "" {
		attrs = append(attrs, attribute.String("match.id", id))
	}
	if id := r.PathValue("teamID"); id != "" {
		attrs = append(attrs, attribute.String("team.id", id))
	}
	return attrs
}
