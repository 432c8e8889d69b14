package usecase

import (
	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
)

// sideResolver places players on the home or away side. Sources are tried
// in order and the first one naming exactly one side wins:
//  1. the match roster
//  2. group membership
//  3. the season roster
//  4. the set of sides the player shot for
//  5. the side with most shots
//  6. home
type sideResolver struct {
	m       match.Match
	sources []map[string]map[match.Side]struct{}
	counts  map[string]map[match.Side]int
}

func newSideResolver(
	m match.Match,
	players []roster.MatchPlayer,
	groups []playergroup.Group,
	members []roster.SeasonMember,
	events []event.Event,
) *sideResolver {
	r := &sideResolver{m: m, counts: make(map[string]map[match.Side]int)}

	fromRoster := make(map[string]map[match.Side]struct{})
	for _, p := range players {
		r.add(fromRoster, p.PlayerID, p.TeamID)
	}
	fromGroups := make(map[string]map[match.Side]struct{})
	for _, g := range groups {
		for _, playerID := range g.PlayerIDs {
			r.add(fromGroups, playerID, g.TeamID)
		}
	}
	fromSeason := make(map[string]map[match.Side]struct{})
	for _, mb := range members {
		if mb.SeasonID != "" && m.SeasonID != "" && mb.SeasonID != m.SeasonID {
			continue
		}
		r.add(fromSeason, mb.PlayerID, mb.TeamID)
	}
	fromShots := make(map[string]map[match.Side]struct{})
	for _, e := range events {
		if e.Kind != event.KindShot || e.Shot == nil || e.Shot.PlayerID == "" {
			continue
		}
		team := e.Shot.TeamID
		if !e.Shot.ForTeam {
			team, _ = m.Opponent(team)
		}
		side, ok := m.SideOf(team)
		if !ok {
			continue
		}
		r.add(fromShots, e.Shot.PlayerID, team)
		if r.counts[e.Shot.PlayerID] == nil {
			r.counts[e.Shot.PlayerID] = make(map[match.Side]int, 2)
		}
		r.counts[e.Shot.PlayerID][side]++
	}

	r.sources = []map[string]map[match.Side]struct{}{fromRoster, fromGroups, fromSeason, fromShots}
	return r
}

func (r *sideResolver) add(into map[string]map[match.Side]struct{}, playerID, teamID string) {
	side, ok := r.m.SideOf(teamID)
	if !ok || playerID == "" {
		return
	}
	if into[playerID] == nil {
		into[playerID] = make(map[match.Side]struct{}, 2)
	}
	into[playerID][side] = struct{}{}
}

func (r *sideResolver) Side(playerID string) match.Side {
	for _, source := range r.sources {
		if sides := source[playerID]; len(sides) == 1 {
			for side := range sides {
				return side
			}
		}
	}
	counts := r.counts[playerID]
	switch {
	case counts[match.SideHome] > counts[match.SideAway]:
		return match.SideHome
	case counts[match.SideAway] > counts[match.SideHome]:
		return match.SideAway
	default:
		return match.SideHome
	}
}
