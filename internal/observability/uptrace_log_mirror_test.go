package observability

import (
	"errors"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

func TestIsQuietRequestLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		args []any
		want bool
	}{
		{name: "health check", msg: "http_request", args: []any{"http_path", "/healthz"}, want: true},
		{name: "metrics scrape", msg: "http_request", args: []any{"http_path", "/metrics"}, want: true},
		{name: "live poll", msg: "http_request", args: []any{"http_path", "/v1/matches/m-1/live/poll"}, want: false},
		{name: "other event", msg: "derivation task done", args: []any{"http_path", "/healthz"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isQuietRequestLog(tc.msg, tc.args); got != tc.want {
				t.Fatalf("isQuietRequestLog() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLogAttributes(t *testing.T) {
	t.Parallel()

	attrs := logAttributes([]any{"match_id", "m-1", "attempt", 2, "error", errors.New("boom"), "payload"})
	if len(attrs) != 4 {
		t.Fatalf("expected 4 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "match_id" || attrs[0].Value.AsString() != "m-1" {
		t.Fatalf("unexpected match_id attribute")
	}
	if attrs[1].Value.AsInt64() != 2 {
		t.Fatalf("unexpected attempt attribute")
	}
	if attrs[2].Value.AsString() != "boom" {
		t.Fatalf("unexpected error attribute")
	}
	if attrs[3].Key != "payload" || attrs[3].Value.Kind() != otellog.KindEmpty {
		t.Fatalf("unexpected payload attribute")
	}
}

func TestLogValue_Composite(t *testing.T) {
	t.Parallel()

	v := logValue(map[string]int{"home": 3})
	if v.Kind() != otellog.KindString || v.AsString() != `{"home":3}` {
		t.Fatalf("unexpected composite value: %v", v)
	}
	if d := logValue(1500 * time.Millisecond); d.AsString() != "1.5s" {
		t.Fatalf("unexpected duration value: %v", d.AsString())
	}
}
