// Package timeline rebuilds per-player role intervals over a match from the
// end-of-match group memberships and the substitution log.
package timeline

import (
	"math"
	"sort"

	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
)

// EPS is the shortest interval kept, in minutes.
const EPS = 0.001

// Interval is the half-open range [Start, End) in match minutes.
type Interval struct {
	Start float64
	End   float64
	Role  playergroup.Role
}

func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// Sub is one substitution placed on the minute axis. GroupRole is the role of
// the group the incoming player joins.
type Sub struct {
	Minute      float64
	Seq         int64
	GroupRole   playergroup.Role
	PlayerInID  string
	PlayerOutID string
}

type Input struct {
	PlayerIDs       []string
	EndRoles        map[string]playergroup.Role
	Subs            []Sub
	MatchEndMinutes float64
}

// Timeline holds each player's ordered, non-overlapping intervals covering
// [0, End].
type Timeline struct {
	End     float64
	players map[string][]Interval
}

type cursor struct {
	role  playergroup.Role
	start float64
}

func Build(in Input) Timeline {
	end := math.Max(in.MatchEndMinutes, 0)
	players := knownPlayers(in)

	endRole := make(map[string]playergroup.Role, len(players))
	for _, id := range players {
		role, ok := in.EndRoles[id]
		if !ok {
			role = playergroup.RoleReserve
		}
		endRole[id] = role
	}

	subs := append([]Sub(nil), in.Subs...)
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].Minute != subs[j].Minute {
			return subs[i].Minute < subs[j].Minute
		}
		return subs[i].Seq < subs[j].Seq
	})

	// Walk the log backwards from the end state to find who started where.
	startRole := make(map[string]playergroup.Role, len(endRole))
	for id, role := range endRole {
		startRole[id] = role
	}
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].PlayerOutID != "" {
			startRole[subs[i].PlayerOutID] = subs[i].GroupRole
		}
		if subs[i].PlayerInID != "" {
			startRole[subs[i].PlayerInID] = playergroup.RoleReserve
		}
	}

	tl := Timeline{End: end, players: make(map[string][]Interval, len(players))}
	current := make(map[string]*cursor, len(players))
	for _, id := range players {
		current[id] = &cursor{role: startRole[id]}
	}

	move := func(id string, at float64, role playergroup.Role) {
		c := current[id]
		if c.role == role {
			return
		}
		if at-c.start >= EPS {
			tl.emit(id, Interval{Start: c.start, End: at, Role: c.role})
			c.start = at
		}
		c.role = role
	}

	for i := 0; i < len(subs); {
		bucket := math.Floor(subs[i].Minute)
		j := i
		for j < len(subs) && math.Floor(subs[j].Minute) == bucket {
			j++
		}
		at := clamp(bucket, 0, end)
		for _, s := range subs[i:j] {
			if s.PlayerOutID != "" {
				move(s.PlayerOutID, at, playergroup.RoleReserve)
			}
		}
		for _, s := range subs[i:j] {
			if s.PlayerInID != "" {
				move(s.PlayerInID, at, s.GroupRole)
			}
		}
		i = j
	}

	for _, id := range players {
		c := current[id]
		if end-c.start >= EPS || len(tl.players[id]) == 0 {
			tl.emit(id, Interval{Start: c.start, End: end, Role: c.role})
			continue
		}
		// A sliver at the very end extends the previous interval.
		last := &tl.players[id][len(tl.players[id])-1]
		last.End = end
	}
	return tl
}

func (t *Timeline) emit(playerID string, iv Interval) {
	list := t.players[playerID]
	if n := len(list); n > 0 && list[n-1].Role == iv.Role && list[n-1].End == iv.Start {
		list[n-1].End = iv.End
		t.players[playerID] = list
		return
	}
	t.players[playerID] = append(list, iv)
}

func knownPlayers(in Input) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(in.PlayerIDs))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range in.PlayerIDs {
		add(id)
	}
	for id := range in.EndRoles {
		add(id)
	}
	for _, s := range in.Subs {
		add(s.PlayerInID)
		add(s.PlayerOutID)
	}
	sort.Strings(out)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (t Timeline) Players() []string {
	out := make([]string, 0, len(t.players))
	for id := range t.players {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Intervals returns a copy of the player's intervals in time order.
func (t Timeline) Intervals(playerID string) []Interval {
	return append([]Interval(nil), t.players[playerID]...)
}

// ByRole groups a player's intervals by role.
func (t Timeline) ByRole(playerID string) map[playergroup.Role][]Interval {
	out := map[playergroup.Role][]Interval{
		playergroup.RoleAanval:      nil,
		playergroup.RoleVerdediging: nil,
		playergroup.RoleReserve:     nil,
		playergroup.RoleUnknown:     nil,
	}
	for _, iv := range t.players[playerID] {
		out[iv.Role] = append(out[iv.Role], iv)
	}
	return out
}

// RoleAt returns the player's role at minute m. Minutes before zero read as
// zero and minutes at or past the end read the final role. Players without a
// timeline are unknown.
func (t Timeline) RoleAt(playerID string, m float64) playergroup.Role {
	list := t.players[playerID]
	if len(list) == 0 {
		return playergroup.RoleUnknown
	}
	if m < 0 {
		m = 0
	}
	for _, iv := range list {
		if m >= iv.Start && m < iv.End {
			return iv.Role
		}
	}
	return list[len(list)-1].Role
}
