package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

// RunJob is the push target for remote brokers. A non-2xx answer makes the
// broker redeliver.
func (h *Handler) RunJob(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.Handler.RunJob", routeAttrs(r)...)
		defer span.End()

		job, ok := h.jobs[path]
		if !ok {
			h.writeError(ctx, w, fmt.Errorf("%w: no handler for %s", usecase.ErrNotFound, path))
			return
		}
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
		if err != nil {
			h.writeError(ctx, w, fmt.Errorf("%w: read body: %v", usecase.ErrInvalidInput, err))
			return
		}
		if err := job(ctx, payload); err != nil {
			h.logger.WarnContext(ctx, "internal job failed", "job_path", path, "error", err)
			h.writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "done"})
	}
}
