package httpapi

import (
	"net/http"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

type createMatchRequest struct {
	HomeTeamID        string    `json:"home_team_id" validate:"required"`
	AwayTeamID        string    `json:"away_team_id" validate:"required,nefield=HomeTeamID"`
	SeasonID          string    `json:"season_id" validate:"omitempty,max=64"`
	StartTime         time.Time `json:"start_time" validate:"required"`
	Parts             int       `json:"parts" validate:"omitempty,min=1,max=4"`
	PartLengthSeconds int       `json:"part_length_seconds" validate:"omitempty,min=60,max=3600"`
}

func (h *Handler) NextMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.NextMatch", routeAttrs(r)...)
	defer span.End()

	followed, err := parseFlag(r.URL.Query().Get("followed"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	view, err := h.matches.Next(ctx, principalFromContext(ctx), followed)
	if err != nil {
		h.logger.WarnContext(ctx, "next match failed", "followed", followed, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"match": view})
}

func (h *Handler) UpcomingMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpcomingMatches", routeAttrs(r)...)
	defer span.End()

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	items, err := h.matches.Upcoming(ctx, r.URL.Query().Get("team"), limit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"matches": items})
}

func (h *Handler) RecentMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RecentMatches", routeAttrs(r)...)
	defer span.End()

	items, err := h.matches.Recent(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"matches": items})
}

func (h *Handler) FinishedMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FinishedMatches", routeAttrs(r)...)
	defer span.End()

	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	items, err := h.matches.Finished(ctx, q.Get("team"), q.Get("season"), limit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"matches": items})
}

func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateMatch", routeAttrs(r)...)
	defer span.End()

	var req createMatchRequest
	if err := decodeJSONObject(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	view, err := h.matches.CreateMatch(ctx, principalFromContext(ctx), usecase.CreateMatchInput{
		HomeTeamID:        req.HomeTeamID,
		AwayTeamID:        req.AwayTeamID,
		SeasonID:          req.SeasonID,
		StartTime:         req.StartTime,
		Parts:             req.Parts,
		PartLengthSeconds: req.PartLengthSeconds,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create match failed", "home_team_id", req.HomeTeamID, "away_team_id", req.AwayTeamID, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, view)
}
