package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

// errorBody is the wire error shape.
type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type mappedError struct {
	HTTPStatus int
	Code       string
}

func writeJSON(_ context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

// writeError maps err onto the error taxonomy. Internal errors never expose
// their message when hideInternal is set.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	writeErrorDetail(ctx, w, err, h.hideInternal)
}

func writeErrorDetail(ctx context.Context, w http.ResponseWriter, err error, hideInternal bool) {
	mapped := mapError(err)
	detail := err.Error()
	if mapped.HTTPStatus == http.StatusInternalServerError && hideInternal {
		detail = "internal server error"
	}
	writeJSON(ctx, w, mapped.HTTPStatus, errorBody{Code: mapped.Code, Detail: detail})
}

func mapError(err error) mappedError {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return mappedError{HTTPStatus: http.StatusBadRequest, Code: "bad_request"}
	case errors.Is(err, usecase.ErrInvalidState):
		return mappedError{HTTPStatus: http.StatusBadRequest, Code: "invalid_state"}
	case errors.Is(err, usecase.ErrCapacityExceeded):
		return mappedError{HTTPStatus: http.StatusBadRequest, Code: "capacity_exceeded"}
	case errors.Is(err, usecase.ErrNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Code: "not_found"}
	case errors.Is(err, usecase.ErrUnauthorized):
		return mappedError{HTTPStatus: http.StatusUnauthorized, Code: "unauthorized"}
	case errors.Is(err, usecase.ErrForbidden):
		return mappedError{HTTPStatus: http.StatusForbidden, Code: "forbidden"}
	case errors.Is(err, usecase.ErrConflict):
		return mappedError{HTTPStatus: http.StatusConflict, Code: "conflict"}
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return mappedError{HTTPStatus: http.StatusServiceUnavailable, Code: "unavailable"}
	default:
		return mappedError{HTTPStatus: http.StatusInternalServerError, Code: "internal"}
	}
}
