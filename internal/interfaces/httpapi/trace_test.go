package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStartSpan_WithoutParentKeepsContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	got, span := startSpan(ctx, "httpapi.Handler.LiveState")
	defer span.End()
	if got != ctx {
		t.Fatalf("expected untouched context")
	}
	if span.SpanContext().IsValid() {
		t.Fatalf("expected non-recording span")
	}
}

func TestRouteAttrs(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var keys []string
	mux.HandleFunc("GET /v1/matches/{matchID}/tracker/{teamID}/state", func(w http.ResponseWriter, r *http.Request) {
		for _, kv := range routeAttrs(r) {
			keys = append(keys, string(kv.Key)+"="+kv.Value.AsString())
		}
	})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/matches/m1/tracker/t1/state", nil))

	if len(keys) != 2 || keys[0] != "match.id=m1" || keys[1] != "team.id=t1" {
		t.Fatalf("unexpected attrs: %v", keys)
	}

	if attrs := routeAttrs(httptest.NewRequest(http.MethodGet, "/healthz", nil)); len(attrs) != 0 {
		t.Fatalf("expected no attrs, got %v", attrs)
	}
}
