package usecase

import (
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/timer"
)

const (
	EventTypeGoal         = "goal"
	EventTypeShot         = "shot"
	EventTypeSubstitute   = "substitute"
	EventTypeIntermission = "intermission"
	EventTypeAttack       = "attack"
)

type ScoreView struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type TimerView struct {
	Type              string     `json:"type"`
	PartNumber        int        `json:"part_number,omitempty"`
	PartStart         *time.Time `json:"part_start,omitempty"`
	PauseStartedAt    *time.Time `json:"pause_started_at,omitempty"`
	PartLength        int        `json:"part_length,omitempty"`
	PauseElapsedTotal float64    `json:"pause_elapsed_total"`
	ElapsedSeconds    float64    `json:"elapsed_seconds"`
	ServerTime        time.Time  `json:"server_time"`
}

func newTimerView(s timer.Snapshot) TimerView {
	view := TimerView{
		Type:       string(s.Type),
		ServerTime: s.At,
	}
	if s.Type == timer.TypeDeactive {
		return view
	}
	partStart := s.PartStart
	view.PartNumber = s.PartNumber
	view.PartStart = &partStart
	view.PartLength = int(s.PartLength / time.Second)
	view.PauseElapsedTotal = s.PauseElapsedTotal.Seconds()
	view.ElapsedSeconds = s.Elapsed.Seconds()
	if s.Type == timer.TypePause {
		started := s.PauseStartedAt
		view.PauseStartedAt = &started
	}
	return view
}

type PartView struct {
	ID         string     `json:"id"`
	PartNumber int        `json:"part_number"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	Active     bool       `json:"active"`
}

func newPartViews(parts []match.Part) []PartView {
	out := make([]PartView, 0, len(parts))
	for _, p := range parts {
		out = append(out, PartView{
			ID:         p.ID,
			PartNumber: p.PartNumber,
			StartTime:  p.StartTime,
			EndTime:    p.EndTime,
			Active:     p.Active,
		})
	}
	return out
}

type GroupView struct {
	ID           string   `json:"id"`
	TeamID       string   `json:"team_id"`
	StartingType string   `json:"starting_type"`
	CurrentType  string   `json:"current_type"`
	PlayerIDs    []string `json:"player_ids"`
	Max          int      `json:"max"`
}

func newGroupViews(groups []playergroup.Group, teamID string) []GroupView {
	out := make([]GroupView, 0, len(playergroup.AllTypes))
	for _, t := range playergroup.AllTypes {
		for _, g := range groups {
			if g.TeamID != teamID || g.StartingType != t {
				continue
			}
			ids := append([]string{}, g.PlayerIDs...)
			out = append(out, GroupView{
				ID:           g.ID,
				TeamID:       g.TeamID,
				StartingType: string(g.StartingType),
				CurrentType:  string(g.CurrentType),
				PlayerIDs:    ids,
				Max:          g.StartingType.Capacity(),
			})
		}
	}
	return out
}

type CounterView struct {
	Own     int `json:"own"`
	Against int `json:"against"`
	Max     int `json:"max"`
}

// EventView is one row of the play-by-play. Time is the display label.
type EventView struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Time         string     `json:"time"`
	At           time.Time  `json:"at"`
	MatchPartID  string     `json:"match_part_id,omitempty"`
	TeamID       string     `json:"team_id,omitempty"`
	PlayerID     string     `json:"player_id,omitempty"`
	GoalType     string     `json:"goal_type,omitempty"`
	ForTeam      *bool      `json:"for_team,omitempty"`
	PlayerInID   string     `json:"player_in_id,omitempty"`
	PlayerOutID  string     `json:"player_out_id,omitempty"`
	GroupID      string     `json:"group_id,omitempty"`
	Timeout      bool       `json:"timeout,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	LengthSecond *float64   `json:"length_seconds,omitempty"`
	Active       *bool      `json:"active,omitempty"`
}

// newEventView renders one event. Pauses backing a timeout are rendered by
// the timeout row.
func newEventView(st *match.State, clock *timer.Clock, e event.Event) EventView {
	view := EventView{
		ID:          e.ID,
		At:          e.Time,
		MatchPartID: e.PartID,
		Time:        clock.Label(e.Time, e.PartID),
	}
	if _, ok := st.PartByID(e.PartID); !ok {
		view.MatchPartID = ""
	}

	switch e.Kind {
	case event.KindShot:
		view.Type = EventTypeShot
		if e.Shot.Scored {
			view.Type = EventTypeGoal
		}
		forTeam := e.Shot.ForTeam
		view.TeamID = e.Shot.TeamID
		view.PlayerID = e.Shot.PlayerID
		view.GoalType = e.Shot.ShotType
		view.ForTeam = &forTeam
	case event.KindSubstitution:
		view.Type = EventTypeSubstitute
		view.GroupID = e.Substitution.GroupID
		view.PlayerInID = e.Substitution.PlayerInID
		view.PlayerOutID = e.Substitution.PlayerOutID
		if g := playergroup.IndexByID(st.Groups, e.Substitution.GroupID); g >= 0 {
			view.TeamID = st.Groups[g].TeamID
		}
	case event.KindPause:
		view.Type = EventTypeIntermission
		fillPause(&view, e)
	case event.KindTimeout:
		view.Type = EventTypeIntermission
		view.Timeout = true
		view.TeamID = e.Timeout.TeamID
		if p, ok := event.FindByID(st.Events, e.Timeout.PauseID); ok {
			fillPause(&view, p)
		}
	case event.KindAttack:
		view.Type = EventTypeAttack
		view.TeamID = e.Attack.TeamID
	}
	return view
}

func fillPause(view *EventView, pause event.Event) {
	if pause.Pause == nil {
		return
	}
	active := pause.Pause.Active
	length := pause.Pause.Length(pause.Time).Seconds()
	view.Active = &active
	view.EndTime = pause.Pause.EndTime
	view.LengthSecond = &length
}

// LiveState is the scoreboard snapshot.
type LiveState struct {
	MatchID       string    `json:"match_id"`
	MatchDataID   string    `json:"match_data_id"`
	Status        string    `json:"status"`
	Score         ScoreView `json:"score"`
	Timer         TimerView `json:"timer"`
	LastChangedAt time.Time `json:"last_changed_at"`
}

// TrackerState is what a tracker needs to keep editing one team's side.
type TrackerState struct {
	MatchID           string      `json:"match_id"`
	MatchDataID       string      `json:"match_data_id"`
	TeamID            string      `json:"team_id"`
	OpponentTeamID    string      `json:"opponent_team_id"`
	Status            string      `json:"status"`
	CurrentPart       int         `json:"current_part"`
	Parts             int         `json:"parts"`
	PartLengthSeconds int         `json:"part_length_seconds"`
	Score             ScoreView   `json:"score"`
	Timer             TimerView   `json:"timer"`
	Groups            []GroupView `json:"groups"`
	Substitutions     CounterView `json:"substitutions"`
	Timeouts          CounterView `json:"timeouts"`
	LastEvent         *EventView  `json:"last_event"`
	LastChangedAt     time.Time   `json:"last_changed_at"`
}

// PollResult answers a long-poll. Snapshot is set only when Changed.
type PollResult[T any] struct {
	Changed       bool      `json:"changed"`
	LastChangedAt time.Time `json:"last_changed_at"`
	Snapshot      *T        `json:"snapshot,omitempty"`
}

func scoreOf(st *match.State) ScoreView {
	if st.Data.Finished() {
		return ScoreView{Home: st.Data.HomeScore, Away: st.Data.AwayScore}
	}
	home, away := st.Score()
	return ScoreView{Home: home, Away: away}
}

func buildLiveState(st *match.State, at time.Time) LiveState {
	snap := timer.Compute(st.Data, st.Parts, st.Events, at)
	return LiveState{
		MatchID:       st.Match.ID,
		MatchDataID:   st.Data.ID,
		Status:        string(st.Data.Status),
		Score:         scoreOf(st),
		Timer:         newTimerView(snap),
		LastChangedAt: st.LastChangedAt(),
	}
}

// substitutionCounts returns own substitutions of teamID and the opponent
// markers it recorded.
func substitutionCounts(st *match.State, teamID, opponentID string) (own, against int) {
	for _, e := range st.Events {
		if e.Kind != event.KindSubstitution || e.Substitution == nil {
			continue
		}
		g := playergroup.IndexByID(st.Groups, e.Substitution.GroupID)
		if g < 0 {
			continue
		}
		switch {
		case e.Substitution.IsMarker() && st.Groups[g].TeamID == opponentID:
			against++
		case !e.Substitution.IsMarker() && st.Groups[g].TeamID == teamID:
			own++
		}
	}
	return own, against
}

func timeoutCounts(st *match.State, teamID string) (own, against int) {
	for _, e := range st.Events {
		if e.Kind != event.KindTimeout || e.Timeout == nil {
			continue
		}
		if e.Timeout.TeamID == teamID {
			own++
		} else {
			against++
		}
	}
	return own, against
}

func buildTrackerState(st *match.State, teamID string, at time.Time) TrackerState {
	opponentID, _ := st.Match.Opponent(teamID)
	clock := timer.NewClock(st.Data, st.Parts, st.Events)
	subsOwn, subsAgainst := substitutionCounts(st, teamID, opponentID)
	toOwn, toAgainst := timeoutCounts(st, teamID)

	out := TrackerState{
		MatchID:           st.Match.ID,
		MatchDataID:       st.Data.ID,
		TeamID:            teamID,
		OpponentTeamID:    opponentID,
		Status:            string(st.Data.Status),
		CurrentPart:       st.Data.CurrentPart,
		Parts:             st.Data.Parts,
		PartLengthSeconds: st.Data.PartLengthSeconds,
		Score:             scoreOf(st),
		Timer:             newTimerView(timer.Compute(st.Data, st.Parts, st.Events, at)),
		Groups:            newGroupViews(st.Groups, teamID),
		Substitutions:     CounterView{Own: subsOwn, Against: subsAgainst, Max: match.MaxWissels},
		Timeouts:          CounterView{Own: toOwn, Against: toAgainst, Max: match.MaxTimeouts},
		LastChangedAt:     st.LastChangedAt(),
	}
	if last, ok := event.Last(st.Events); ok {
		view := newEventView(st, clock, last)
		out.LastEvent = &view
	}
	return out
}
