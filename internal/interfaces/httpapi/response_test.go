package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

func TestWriteErrorDetail_Mapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: fmt.Errorf("%w: bad payload", usecase.ErrInvalidInput), wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{err: fmt.Errorf("%w: match finished", usecase.ErrInvalidState), wantStatus: http.StatusBadRequest, wantCode: "invalid_state"},
		{err: fmt.Errorf("%w: max 8 substitutions", usecase.ErrCapacityExceeded), wantStatus: http.StatusBadRequest, wantCode: "capacity_exceeded"},
		{err: fmt.Errorf("%w: match=m-1", usecase.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{err: usecase.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{err: usecase.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{err: usecase.ErrConflict, wantStatus: http.StatusConflict, wantCode: "conflict"},
		{err: usecase.ErrDependencyUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: "unavailable"},
		{err: errors.New("db exploded"), wantStatus: http.StatusInternalServerError, wantCode: "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.wantCode, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			writeErrorDetail(context.Background(), rec, tc.err, false)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			var body errorBody
			if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal response body: %v", err)
			}
			if body.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, body.Code)
			}
			if body.Detail != tc.err.Error() {
				t.Fatalf("expected detail %q, got %q", tc.err.Error(), body.Detail)
			}
		})
	}
}

func TestWriteErrorDetail_HidesInternalDetail(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeErrorDetail(context.Background(), rec, errors.New("pq: password authentication failed"), true)

	var body errorBody
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	if body.Detail != "internal server error" {
		t.Fatalf("expected hidden detail, got %q", body.Detail)
	}

	rec = httptest.NewRecorder()
	writeErrorDetail(context.Background(), rec, fmt.Errorf("%w: unknown command", usecase.ErrInvalidInput), true)
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	if body.Detail == "internal server error" {
		t.Fatalf("client errors must keep their detail")
	}
}

func TestWriteJSON_PlainBody(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeJSON(context.Background(), rec, http.StatusOK, map[string]bool{"can_edit": true})

	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type: %q", got)
	}
	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	if body["can_edit"] != true {
		t.Fatalf("expected unwrapped payload, got %v", body)
	}
}
