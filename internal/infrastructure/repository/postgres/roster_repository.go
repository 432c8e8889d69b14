package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	qb "github.com/riskibarqy/korfbal-live/internal/platform/querybuilder"
)

type seasonMemberTableModel struct {
	TeamID   string `db:"team_id"`
	SeasonID string `db:"season_id"`
	PlayerID string `db:"player_id"`
}

type playerTableModel struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

type RosterRepository struct {
	db *sqlx.DB
}

func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) ListSeasonMembers(ctx context.Context, seasonID string, teamIDs []string) ([]roster.SeasonMember, error) {
	query, args, err := qb.Select("team_id", "season_id", "player_id").
		From("season_members").
		Where(
			qb.Eq("season_id", seasonID),
			qb.In("team_id", anySlice(teamIDs)),
		).
		OrderBy("team_id", "player_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select season members query: %w", err)
	}

	var rows []seasonMemberTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(fmt.Errorf("select season members season=%s: %w", seasonID, err))
	}

	out := make([]roster.SeasonMember, 0, len(rows))
	for _, row := range rows {
		out = append(out, roster.SeasonMember{TeamID: row.TeamID, SeasonID: row.SeasonID, PlayerID: row.PlayerID})
	}
	return out, nil
}

func (r *RosterRepository) ListPlayers(ctx context.Context, playerIDs []string) ([]roster.Player, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}
	query, args, err := qb.Select("id", "name").
		From("players").
		Where(qb.In("id", anySlice(playerIDs))).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(fmt.Errorf("select players: %w", err))
	}

	out := make([]roster.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, roster.Player{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

func (r *RosterRepository) IsCoach(ctx context.Context, userID, teamID string) (bool, error) {
	query, args, err := qb.Select("COUNT(1)").
		From("team_coaches").
		Where(qb.Eq("user_id", userID), qb.Eq("team_id", teamID)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build is coach query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, classify(fmt.Errorf("check coach user=%s team=%s: %w", userID, teamID, err))
	}
	return count > 0, nil
}

func (r *RosterRepository) ListCoachTeams(ctx context.Context, userID string) ([]string, error) {
	query, args, err := qb.Select("team_id").
		From("team_coaches").
		Where(qb.Eq("user_id", userID)).
		OrderBy("team_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list coach teams query: %w", err)
	}

	var teams []string
	if err := r.db.SelectContext(ctx, &teams, query, args...); err != nil {
		return nil, classify(fmt.Errorf("list coach teams user=%s: %w", userID, err))
	}
	return teams, nil
}
