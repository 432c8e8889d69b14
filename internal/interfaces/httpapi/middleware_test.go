package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"https://live.korfbal.example"}, okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/matches/recent", nil)
	req.Header.Set("Origin", "https://live.korfbal.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://live.korfbal.example" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
}

func TestCORS_OptionsPreflight(t *testing.T) {
	handler := CORS([]string{"*"}, okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/matches/m-1/tracker/t-1/commands", nil)
	req.Header.Set("Origin", "https://live.korfbal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
}

func TestCORS_DisallowsUnconfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"https://allowed.example.com"}, okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/matches/recent", nil)
	req.Header.Set("Origin", "https://not-allowed.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected empty Access-Control-Allow-Origin, got %q", got)
	}
}

func TestRequireInternalJobToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		value      string
		wantStatus int
	}{
		{name: "unconfigured", configured: "", header: "X-Internal-Job-Token", value: "x", wantStatus: http.StatusServiceUnavailable},
		{name: "missing", configured: "secret", wantStatus: http.StatusUnauthorized},
		{name: "wrong", configured: "secret", header: "X-Internal-Job-Token", value: "nope", wantStatus: http.StatusUnauthorized},
		{name: "header", configured: "secret", header: "X-Internal-Job-Token", value: "secret", wantStatus: http.StatusOK},
		{name: "bearer", configured: "secret", header: "Authorization", value: "Bearer secret", wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireInternalJobToken(tc.configured, okHandler())
			req := httptest.NewRequest(http.MethodPost, "/v1/internal/jobs/recompute-impact", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "", want: ""},
		{header: "Bearer abc", want: "abc"},
		{header: "bearer  abc ", want: "abc"},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer", wantErr: true},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, err := bearerToken(req)
		if (err != nil) != tc.wantErr {
			t.Fatalf("bearerToken(%q) err=%v wantErr=%v", tc.header, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("bearerToken(%q)=%q want=%q", tc.header, got, tc.want)
		}
	}
}

func TestShouldTraceRequest(t *testing.T) {
	for _, path := range []string{"/healthz", "/metrics", " /readyz "} {
		if shouldTraceRequest(path) {
			t.Fatalf("expected no tracing for path %q", path)
		}
	}
	for _, path := range []string{"/v1/matches/recent", "/"} {
		if !shouldTraceRequest(path) {
			t.Fatalf("expected tracing for path %q", path)
		}
	}
}

func TestDecodeJSONObject_RejectsNonObjects(t *testing.T) {
	for _, body := range []string{`[{"command":"start_pause"}]`, `"start_pause"`, ``} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dst trackerCommandRequest
		if err := decodeJSONObject(req, &dst); err == nil {
			t.Fatalf("expected error for body %q", body)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(` {"command":"goal_reg","player_id":"p-1"}`))
	var dst trackerCommandRequest
	if err := decodeJSONObject(req, &dst); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if dst.Command != "goal_reg" || dst.PlayerID != "p-1" {
		t.Fatalf("unexpected decoded request: %+v", dst)
	}
}

func TestParseHelpers(t *testing.T) {
	if d, err := parseTimeoutSeconds("2.5"); err != nil || d.Milliseconds() != 2500 {
		t.Fatalf("parseTimeoutSeconds: %v %v", d, err)
	}
	if _, err := parseTimeoutSeconds("soon"); err == nil {
		t.Fatalf("expected error for non-numeric timeout")
	}
	if _, err := parseLimit("-1"); err == nil {
		t.Fatalf("expected error for negative limit")
	}
	if ok, err := parseFlag("1"); err != nil || !ok {
		t.Fatalf("parseFlag(1)=%v %v", ok, err)
	}
	if _, err := parseFlag("yes"); err == nil {
		t.Fatalf("expected error for unknown flag value")
	}
}
