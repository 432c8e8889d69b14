package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
)

type RosterRepository struct {
	mu      sync.RWMutex
	members []roster.SeasonMember
	players map[string]roster.Player
	coaches map[string]map[string]struct{}
}

func NewRosterRepository(members []roster.SeasonMember, players []roster.Player, coaches []roster.Coach) *RosterRepository {
	r := &RosterRepository{
		members: append([]roster.SeasonMember(nil), members...),
		players: make(map[string]roster.Player, len(players)),
		coaches: make(map[string]map[string]struct{}),
	}
	for _, p := range players {
		r.players[p.ID] = p
	}
	for _, c := range coaches {
		if r.coaches[c.UserID] == nil {
			r.coaches[c.UserID] = make(map[string]struct{})
		}
		r.coaches[c.UserID][c.TeamID] = struct{}{}
	}
	return r
}

func (r *RosterRepository) ListSeasonMembers(_ context.Context, seasonID string, teamIDs []string) ([]roster.SeasonMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	teams := make(map[string]struct{}, len(teamIDs))
	for _, teamID := range teamIDs {
		teams[teamID] = struct{}{}
	}
	out := make([]roster.SeasonMember, 0)
	for _, m := range r.members {
		if m.SeasonID != seasonID {
			continue
		}
		if _, ok := teams[m.TeamID]; !ok {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *RosterRepository) ListPlayers(_ context.Context, playerIDs []string) ([]roster.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]roster.Player, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		if p, ok := r.players[playerID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *RosterRepository) IsCoach(_ context.Context, userID, teamID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.coaches[userID][teamID]
	return ok, nil
}

func (r *RosterRepository) ListCoachTeams(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.coaches[userID]))
	for teamID := range r.coaches[userID] {
		out = append(out, teamID)
	}
	sort.Strings(out)
	return out, nil
}
