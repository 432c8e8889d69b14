package httpapi

import (
	"net/http"

	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

func (h *Handler) MatchEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MatchEvents", routeAttrs(r)...)
	defer span.End()

	view, err := h.projections.Events(ctx, r.PathValue("matchID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, view)
}

func (h *Handler) MatchStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MatchStats", routeAttrs(r)...)
	defer span.End()

	view, err := h.projections.Stats(ctx, r.PathValue("matchID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, view)
}

func (h *Handler) MatchImpacts(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MatchImpacts", routeAttrs(r)...)
	defer span.End()

	withBreakdown, err := parseFlag(r.URL.Query().Get("breakdown"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	view, err := h.projections.Impacts(ctx, r.PathValue("matchID"), withBreakdown)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, view)
}

func (h *Handler) MatchTimer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MatchTimer", routeAttrs(r)...)
	defer span.End()

	view, err := h.timer.Snapshot(ctx, r.PathValue("matchID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, view)
}

func (h *Handler) LiveState(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LiveState", routeAttrs(r)...)
	defer span.End()

	view, err := h.projections.Live(ctx, r.PathValue("matchID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, view)
}

// LivePoll never fails on idle; it answers {changed:false} at the deadline.
func (h *Handler) LivePoll(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LivePoll", routeAttrs(r)...)
	defer span.End()

	q := r.URL.Query()
	timeout, err := parseTimeoutSeconds(q.Get("timeout"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	result, err := h.live.Poll(ctx, usecase.PollInput{
		MatchID: r.PathValue("matchID"),
		Since:   q.Get("since"),
		Timeout: timeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}
