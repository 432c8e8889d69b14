package jobqueue

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/platform/resilience"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

func newTestPublisher(t *testing.T, baseURL string, breaker resilience.CircuitBreakerConfig) *QStashPublisher {
	t.Helper()
	p, err := NewQStashPublisher(QStashPublisherConfig{
		BaseURL:          baseURL,
		Token:            "qstash-token",
		TargetBaseURL:    "https://api.example.com/",
		Retries:          3,
		InternalJobToken: "job-token",
		CircuitBreaker:   breaker,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return p
}

func TestQStashPublisher_PublishesWithHeaders(t *testing.T) {
	t.Parallel()

	var (
		gotPath    string
		gotHeaders http.Header
		gotJob     usecase.DerivationJob
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &gotJob)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := newTestPublisher(t, srv.URL, resilience.CircuitBreakerConfig{})
	job := usecase.DerivationJob{MatchDataID: "md-1", DispatchID: "recompute-impact-md-1-final"}
	err := p.Enqueue(context.Background(), usecase.JobPathRecomputeImpact, job, 30*time.Second, job.DispatchID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if gotPath != "/v2/publish/https://api.example.com/v1/internal/jobs/recompute-impact" {
		t.Fatalf("unexpected publish path: %s", gotPath)
	}
	expected := map[string]string{
		"Authorization":                 "Bearer qstash-token",
		"Upstash-Retries":               "3",
		"Upstash-Delay":                 "30s",
		"Upstash-Deduplication-Id":      "recompute-impact-md-1-final",
		"Upstash-Forward-Authorization": "Bearer job-token",
	}
	for header, want := range expected {
		if got := gotHeaders.Get(header); got != want {
			t.Fatalf("header %s: expected %q, got %q", header, want, got)
		}
	}
	if gotJob.MatchDataID != "md-1" {
		t.Fatalf("unexpected payload: %+v", gotJob)
	}
}

func TestQStashPublisher_BreakerCountsOnlyTransientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantOpen  bool
	}{
		{name: "server error opens breaker", status: http.StatusBadGateway, wantCalls: 1, wantOpen: true},
		{name: "client error does not", status: http.StatusBadRequest, wantCalls: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := newTestPublisher(t, srv.URL, resilience.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 1,
				OpenTimeout:      time.Minute,
			})
			ctx := context.Background()
			if err := p.Enqueue(ctx, usecase.JobPathRecomputeMinutes, nil, 0, ""); err == nil {
				t.Fatalf("expected first publish to fail")
			}
			err := p.Enqueue(ctx, usecase.JobPathRecomputeMinutes, nil, 0, "")
			if err == nil {
				t.Fatalf("expected second publish to fail")
			}
			if errors.Is(err, resilience.ErrCircuitOpen) != tc.wantOpen {
				t.Fatalf("unexpected breaker outcome: %v", err)
			}
			if got := calls.Load(); got != tc.wantCalls {
				t.Fatalf("expected %d upstream calls, got %d", tc.wantCalls, got)
			}
		})
	}
}

func TestNewQStashPublisher_RejectsBadURLs(t *testing.T) {
	t.Parallel()

	tests := map[string]QStashPublisherConfig{
		"bad target scheme": {BaseURL: "https://qstash.upstash.io", TargetBaseURL: "ftp://api.example.com"},
		"missing base":      {TargetBaseURL: "https://api.example.com"},
		"missing host":      {BaseURL: "https://", TargetBaseURL: "https://api.example.com"},
	}
	for name, cfg := range tests {
		if _, err := NewQStashPublisher(cfg, logging.NewNop()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestQStashMessage_CurlPreviewMasksSecrets(t *testing.T) {
	t.Parallel()

	p := newTestPublisher(t, "https://qstash.upstash.io", resilience.CircuitBreakerConfig{})
	msg := p.message("/v1/internal/jobs/recompute-impact", []byte(`{"a":"it's"}`), 30*time.Second, "dedup")
	preview := msg.curlPreview(p.publishPrefix)

	for _, secret := range []string{"qstash-token", "job-token"} {
		if strings.Contains(preview, secret) {
			t.Fatalf("secret %q leaked: %s", secret, preview)
		}
	}
	for _, want := range []string{
		"'https://qstash.upstash.io/v2/publish/https://api.example.com/v1/internal/jobs/recompute-impact'",
		"'Upstash-Forward-Authorization: Bearer ***'",
		"'Upstash-Delay: 30s'",
		`'{"a":"it'"'"'s"}'`,
	} {
		if !strings.Contains(preview, want) {
			t.Fatalf("expected %s in preview: %s", want, preview)
		}
	}
	if qstashDelay(1500*time.Millisecond) != "2s" || qstashDelay(0) != "0s" {
		t.Fatalf("unexpected delay formatting")
	}
}
