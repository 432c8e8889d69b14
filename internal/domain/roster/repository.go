package roster

import "context"

// Repository exposes roster reads used by projections and access checks.
type Repository interface {
	ListSeasonMembers(ctx context.Context, seasonID string, teamIDs []string) ([]SeasonMember, error)
	ListPlayers(ctx context.Context, playerIDs []string) ([]Player, error)
	IsCoach(ctx context.Context, userID, teamID string) (bool, error)
	ListCoachTeams(ctx context.Context, userID string) ([]string, error)
}
