package postgres

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/korfbal-live/internal/domain/event"
)

type shotPayload struct {
	PlayerID string `json:"player_id,omitempty"`
	TeamID   string `json:"team_id"`
	ForTeam  bool   `json:"for_team"`
	Scored   bool   `json:"scored"`
	ShotType string `json:"shot_type,omitempty"`
}

type substitutionPayload struct {
	GroupID     string `json:"group_id"`
	PlayerInID  string `json:"player_in_id,omitempty"`
	PlayerOutID string `json:"player_out_id,omitempty"`
}

type pausePayload struct {
	EndTime *time.Time `json:"end_time,omitempty"`
	Active  bool       `json:"active"`
}

type attackPayload struct {
	TeamID string `json:"team_id"`
}

type timeoutPayload struct {
	TeamID    string `json:"team_id"`
	PauseID   string `json:"pause_id"`
	OwnsPause bool   `json:"owns_pause,omitempty"`
}

func encodeEventPayload(e event.Event) (string, error) {
	var payload any
	switch e.Kind {
	case event.KindShot:
		s := e.Shot
		payload = shotPayload{PlayerID: s.PlayerID, TeamID: s.TeamID, ForTeam: s.ForTeam, Scored: s.Scored, ShotType: s.ShotType}
	case event.KindSubstitution:
		s := e.Substitution
		payload = substitutionPayload{GroupID: s.GroupID, PlayerInID: s.PlayerInID, PlayerOutID: s.PlayerOutID}
	case event.KindPause:
		p := pausePayload{Active: e.Pause.Active}
		if e.Pause.EndTime != nil {
			end := e.Pause.EndTime.UTC()
			p.EndTime = &end
		}
		payload = p
	case event.KindAttack:
		payload = attackPayload{TeamID: e.Attack.TeamID}
	case event.KindTimeout:
		payload = timeoutPayload{TeamID: e.Timeout.TeamID, PauseID: e.Timeout.PauseID, OwnsPause: e.Timeout.OwnsPause}
	default:
		return "", fmt.Errorf("%w: unknown kind %q", event.ErrInvalidEvent, e.Kind)
	}
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}
	return string(raw), nil
}

func eventFromRow(row matchEventTableModel) (event.Event, error) {
	e := event.Event{
		ID:          row.ID,
		Seq:         row.Seq,
		MatchDataID: row.MatchDataID,
		PartID:      nullString(row.PartID),
		Kind:        event.Kind(row.Kind),
		Time:        row.EventTime.UTC(),
	}

	var err error
	switch e.Kind {
	case event.KindShot:
		var p shotPayload
		if err = sonic.Unmarshal(row.Payload, &p); err == nil {
			e.Shot = &event.Shot{PlayerID: p.PlayerID, TeamID: p.TeamID, ForTeam: p.ForTeam, Scored: p.Scored, ShotType: p.ShotType}
		}
	case event.KindSubstitution:
		var p substitutionPayload
		if err = sonic.Unmarshal(row.Payload, &p); err == nil {
			e.Substitution = &event.Substitution{GroupID: p.GroupID, PlayerInID: p.PlayerInID, PlayerOutID: p.PlayerOutID}
		}
	case event.KindPause:
		var p pausePayload
		if err = sonic.Unmarshal(row.Payload, &p); err == nil {
			e.Pause = &event.Pause{Active: p.Active}
			if p.EndTime != nil {
				end := p.EndTime.UTC()
				e.Pause.EndTime = &end
			}
		}
	case event.KindAttack:
		var p attackPayload
		if err = sonic.Unmarshal(row.Payload, &p); err == nil {
			e.Attack = &event.Attack{TeamID: p.TeamID}
		}
	case event.KindTimeout:
		var p timeoutPayload
		if err = sonic.Unmarshal(row.Payload, &p); err == nil {
			e.Timeout = &event.Timeout{TeamID: p.TeamID, PauseID: p.PauseID, OwnsPause: p.OwnsPause}
		}
	default:
		return event.Event{}, fmt.Errorf("%w: unknown kind %q on event %s", event.ErrInvalidEvent, row.Kind, row.ID)
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("decode %s payload of event %s: %w", row.Kind, row.ID, err)
	}
	return e, nil
}
