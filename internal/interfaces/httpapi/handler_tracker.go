package httpapi

import (
	"net/http"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

type trackerCommandRequest struct {
	Command      string   `json:"command" validate:"required,oneof=start_pause part_end shot_reg goal_reg substitute_reg substitute_against_reg timeout new_attack remove_last_event assign_group"`
	ClientTimeMS *int64   `json:"client_time_ms" validate:"omitempty,gt=0"`
	PlayerID     string   `json:"player_id" validate:"omitempty,max=64"`
	PlayerInID   string   `json:"player_in_id" validate:"omitempty,max=64"`
	PlayerOutID  string   `json:"player_out_id" validate:"omitempty,max=64"`
	GoalType     string   `json:"goal_type" validate:"omitempty,max=32"`
	ForTeam      *bool    `json:"for_team"`
	GroupID      string   `json:"group_id" validate:"omitempty,max=64"`
	PlayerIDs    []string `json:"player_ids" validate:"omitempty,max=16,dive,max=64"`
}

type goalRequest struct {
	TeamID   string     `json:"team_id" validate:"omitempty,max=64"`
	PlayerID string     `json:"player_id" validate:"omitempty,max=64"`
	GoalType string     `json:"goal_type" validate:"omitempty,max=32"`
	ForTeam  *bool      `json:"for_team"`
	Time     *time.Time `json:"time"`
}

func (h *Handler) CanEdit(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CanEdit", routeAttrs(r)...)
	defer span.End()

	ok, err := h.access.CanEdit(ctx, principalFromContext(ctx), r.PathValue("matchID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]bool{"can_edit": ok})
}

// decodeGoal reads an optional goal body and resolves the editing team.
func (h *Handler) decodeGoal(r *http.Request, withBody bool) (usecase.GoalInput, error) {
	ctx := r.Context()
	matchID := r.PathValue("matchID")

	var req goalRequest
	if withBody {
		if err := decodeJSONObject(r, &req); err != nil {
			return usecase.GoalInput{}, err
		}
		if err := h.validateRequest(ctx, req); err != nil {
			return usecase.GoalInput{}, err
		}
	} else {
		req.TeamID = r.URL.Query().Get("team_id")
	}

	teamID, err := h.access.ResolveGoalTeam(ctx, principalFromContext(ctx), matchID, req.TeamID)
	if err != nil {
		return usecase.GoalInput{}, err
	}
	return usecase.GoalInput{
		MatchID:  matchID,
		TeamID:   teamID,
		EventID:  r.PathValue("eventID"),
		PlayerID: req.PlayerID,
		GoalType: req.GoalType,
		ForTeam:  req.ForTeam,
		Time:     req.Time,
	}, nil
}

func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateGoal", routeAttrs(r)...)
	defer span.End()
	r = r.WithContext(ctx)

	input, err := h.decodeGoal(r, true)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	view, err := h.tracker.CreateGoal(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "create goal failed", "match_id", input.MatchID, "team_id", input.TeamID, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, view)
}

func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpdateGoal", routeAttrs(r)...)
	defer span.End()
	r = r.WithContext(ctx)

	input, err := h.decodeGoal(r, true)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	view, err := h.tracker.UpdateGoal(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "update goal failed", "match_id", input.MatchID, "event_id", input.EventID, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, view)
}

func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteGoal", routeAttrs(r)...)
	defer span.End()
	r = r.WithContext(ctx)

	input, err := h.decodeGoal(r, false)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.tracker.DeleteGoal(ctx, input); err != nil {
		h.logger.WarnContext(ctx, "delete goal failed", "match_id", input.MatchID, "event_id", input.EventID, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeTracker gates every tracker route on the path team.
func (h *Handler) authorizeTracker(r *http.Request) (string, string, error) {
	matchID, teamID := r.PathValue("matchID"), r.PathValue("teamID")
	ctx := r.Context()
	if err := h.access.AuthorizeTeam(ctx, principalFromContext(ctx), matchID, teamID); err != nil {
		return "", "", err
	}
	return matchID, teamID, nil
}

func (h *Handler) TrackerState(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TrackerState", routeAttrs(r)...)
	defer span.End()
	r = r.WithContext(ctx)

	matchID, teamID, err := h.authorizeTracker(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	state, err := h.tracker.State(ctx, matchID, teamID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, state)
}

func (h *Handler) TrackerCommand(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TrackerCommand", routeAttrs(r)...)
	defer span.End()
	r = r.WithContext(ctx)

	matchID, teamID, err := h.authorizeTracker(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	var req trackerCommandRequest
	if err := decodeJSONObject(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	state, err := h.tracker.Apply(ctx, usecase.CommandInput{
		MatchID:      matchID,
		TeamID:       teamID,
		Command:      req.Command,
		ClientTimeMS: req.ClientTimeMS,
		PlayerID:     req.PlayerID,
		PlayerInID:   req.PlayerInID,
		PlayerOutID:  req.PlayerOutID,
		GoalType:     req.GoalType,
		ForTeam:      req.ForTeam,
		GroupID:      req.GroupID,
		PlayerIDs:    req.PlayerIDs,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "tracker command rejected", "match_id", matchID, "team_id", teamID, "command", req.Command, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, state)
}

func (h *Handler) TrackerPoll(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TrackerPoll", routeAttrs(r)...)
	defer span.End()
	r = r.WithContext(ctx)

	matchID, teamID, err := h.authorizeTracker(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	q := r.URL.Query()
	timeout, err := parseTimeoutSeconds(q.Get("timeout"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	result, err := h.live.PollTracker(ctx, usecase.PollInput{
		MatchID: matchID,
		TeamID:  teamID,
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
