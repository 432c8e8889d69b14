package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/memory"
)

// BootstrapSeed loads the demo fixtures into an empty database.
func BootstrapSeed(ctx context.Context, db *sqlx.DB, now time.Time) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM matches`); err != nil {
		return fmt.Errorf("count matches for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	members, players, coaches := memory.SeedRoster()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer rollback(tx)

	for _, teamID := range []string{memory.TeamIDHome, memory.TeamIDAway} {
		if err := namedExec(ctx, tx, `
INSERT INTO teams (id, name) VALUES (:id, :name)
ON CONFLICT (id) DO NOTHING`, map[string]any{"id": teamID, "name": teamID}); err != nil {
			return fmt.Errorf("seed team %s: %w", teamID, err)
		}
	}
	for _, p := range players {
		if err := namedExec(ctx, tx, `
INSERT INTO players (id, name) VALUES (:id, :name)
ON CONFLICT (id) DO NOTHING`, map[string]any{"id": p.ID, "name": p.Name}); err != nil {
			return fmt.Errorf("seed player %s: %w", p.ID, err)
		}
	}
	for _, m := range members {
		if err := namedExec(ctx, tx, `
INSERT INTO season_members (team_id, season_id, player_id) VALUES (:team_id, :season_id, :player_id)
ON CONFLICT DO NOTHING`, map[string]any{"team_id": m.TeamID, "season_id": m.SeasonID, "player_id": m.PlayerID}); err != nil {
			return fmt.Errorf("seed season member %s: %w", m.PlayerID, err)
		}
	}
	for _, c := range coaches {
		if err := namedExec(ctx, tx, `
INSERT INTO team_coaches (team_id, user_id) VALUES (:team_id, :user_id)
ON CONFLICT DO NOTHING`, map[string]any{"team_id": c.TeamID, "user_id": c.UserID}); err != nil {
			return fmt.Errorf("seed coach %s: %w", c.UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}

	store := NewMatchStore(db)
	for _, st := range memory.SeedMatches(now) {
		if err := store.Create(ctx, st.Match, st.Data, st.Groups); err != nil {
			return fmt.Errorf("seed match %s: %w", st.Match.ID, err)
		}
		if err := store.WithinMatch(ctx, st.Data.ID, func(ctx context.Context, mtx match.Tx) error {
			return mtx.UpsertMatchPlayers(ctx, st.Players)
		}); err != nil {
			return fmt.Errorf("seed match players %s: %w", st.Match.ID, err)
		}
	}
	return nil
}

func namedExec(ctx context.Context, tx *sqlx.Tx, query string, arg map[string]any) error {
	sqlQuery, args, err := sqlx.Named(query, arg)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(sqlQuery), args...)
	return err
}
