package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	basecache "github.com/riskibarqy/korfbal-live/internal/platform/cache"
)

const DefaultRosterTTL = 5 * time.Minute

// RosterRepository keeps roster reads in process memory. Rosters change
// between matches, not during them, so a short TTL is enough.
type RosterRepository struct {
	next    roster.Repository
	members *basecache.Store[[]roster.SeasonMember]
	players *basecache.Store[[]roster.Player]
	coaches *basecache.Store[[]string]
}

func NewRosterRepository(next roster.Repository, ttl time.Duration, opts ...basecache.Option) *RosterRepository {
	if ttl <= 0 {
		ttl = DefaultRosterTTL
	}
	return &RosterRepository{
		next:    next,
		members: basecache.NewStore[[]roster.SeasonMember](ttl, opts...),
		players: basecache.NewStore[[]roster.Player](ttl, opts...),
		coaches: basecache.NewStore[[]string](ttl, opts...),
	}
}

func (r *RosterRepository) ListSeasonMembers(ctx context.Context, seasonID string, teamIDs []string) ([]roster.SeasonMember, error) {
	key := "roster:members:" + seasonID + ":" + idsKey(teamIDs)
	items, err := r.members.GetOrLoad(ctx, key, func(ctx context.Context) ([]roster.SeasonMember, error) {
		return r.next.ListSeasonMembers(ctx, seasonID, teamIDs)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

func (r *RosterRepository) ListPlayers(ctx context.Context, playerIDs []string) ([]roster.Player, error) {
	key := "roster:players:" + idsKey(playerIDs)
	items, err := r.players.GetOrLoad(ctx, key, func(ctx context.Context) ([]roster.Player, error) {
		return r.next.ListPlayers(ctx, playerIDs)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

func (r *RosterRepository) ListCoachTeams(ctx context.Context, userID string) ([]string, error) {
	items, err := r.coaches.GetOrLoad(ctx, "roster:coach:"+userID, func(ctx context.Context) ([]string, error) {
		return r.next.ListCoachTeams(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// IsCoach is answered from the cached coach team list.
func (r *RosterRepository) IsCoach(ctx context.Context, userID, teamID string) (bool, error) {
	teams, err := r.ListCoachTeams(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(teams, teamID), nil
}

// InvalidateCoach drops the cached coach list after a coach assignment changes.
func (r *RosterRepository) InvalidateCoach(ctx context.Context, userID string) {
	r.coaches.Delete(ctx, "roster:coach:"+userID)
}

func idsKey(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), ",")
}
