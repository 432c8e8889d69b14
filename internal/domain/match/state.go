package match

import (
	"sort"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
)

// State is everything a match owns, loaded as one consistent snapshot.
type State struct {
	Match   Match
	Data    Data
	Parts   []Part
	Events  []event.Event
	Groups  []playergroup.Group
	Players []roster.MatchPlayer
}

func (s *State) ActivePart() (Part, bool) {
	for _, p := range s.Parts {
		if p.Active {
			return p, true
		}
	}
	return Part{}, false
}

func (s *State) PartByID(id string) (Part, bool) {
	for _, p := range s.Parts {
		if p.ID == id {
			return p, true
		}
	}
	return Part{}, false
}

// PutPart inserts or replaces a part, keeping part-number order.
func (s *State) PutPart(p Part) {
	for i := range s.Parts {
		if s.Parts[i].ID == p.ID {
			s.Parts[i] = p
			return
		}
	}
	s.Parts = append(s.Parts, p)
	sort.SliceStable(s.Parts, func(i, j int) bool { return s.Parts[i].PartNumber < s.Parts[j].PartNumber })
}

// PutEvent inserts or replaces an event, keeping (time, seq) order.
func (s *State) PutEvent(e event.Event) {
	for i := range s.Events {
		if s.Events[i].ID == e.ID {
			s.Events[i] = e
			event.Sort(s.Events)
			return
		}
	}
	s.Events = append(s.Events, e)
	event.Sort(s.Events)
}

func (s *State) RemoveEvent(id string) bool {
	for i := range s.Events {
		if s.Events[i].ID == id {
			s.Events = append(s.Events[:i], s.Events[i+1:]...)
			return true
		}
	}
	return false
}

func (s *State) PutGroup(g playergroup.Group) {
	for i := range s.Groups {
		if s.Groups[i].ID == g.ID {
			s.Groups[i] = g
			return
		}
	}
	s.Groups = append(s.Groups, g)
}

// PutPlayers adds roster entries that are not present yet.
func (s *State) PutPlayers(players []roster.MatchPlayer) {
	seen := make(map[roster.MatchPlayer]struct{}, len(s.Players))
	for _, p := range s.Players {
		seen[p] = struct{}{}
	}
	for _, p := range players {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		s.Players = append(s.Players, p)
	}
}

// Clone returns a deep copy safe to mutate.
func (s State) Clone() State {
	out := s
	out.Parts = make([]Part, len(s.Parts))
	for i, p := range s.Parts {
		if p.EndTime != nil {
			end := *p.EndTime
			p.EndTime = &end
		}
		out.Parts[i] = p
	}
	out.Events = make([]event.Event, len(s.Events))
	for i, e := range s.Events {
		out.Events[i] = e.Clone()
	}
	out.Groups = make([]playergroup.Group, len(s.Groups))
	for i, g := range s.Groups {
		out.Groups[i] = g.Clone()
	}
	out.Players = append([]roster.MatchPlayer(nil), s.Players...)
	return out
}

// LastChangedAt is the latest of the event times, pause toggles, part
// boundaries and the data row update.
func (s State) LastChangedAt() time.Time {
	latest := s.Data.UpdatedAt
	bump := func(t time.Time) {
		if t.After(latest) {
			latest = t
		}
	}
	for _, e := range s.Events {
		bump(e.Time)
		if e.Pause != nil && e.Pause.EndTime != nil {
			bump(*e.Pause.EndTime)
		}
	}
	for _, p := range s.Parts {
		bump(p.StartTime)
		if p.EndTime != nil {
			bump(*p.EndTime)
		}
	}
	return latest.UTC()
}

// Score counts scored shots per side by the shot's team.
func (s State) Score() (home, away int) {
	for _, e := range s.Events {
		if !e.IsGoal() {
			continue
		}
		switch e.Shot.TeamID {
		case s.Match.HomeTeamID:
			home++
		case s.Match.AwayTeamID:
			away++
		}
	}
	return home, away
}
