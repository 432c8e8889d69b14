package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/domain/minutes"
	qb "github.com/riskibarqy/korfbal-live/internal/platform/querybuilder"
)

type playerImpactTableModel struct {
	MatchDataID      string    `db:"match_data_id"`
	PlayerID         string    `db:"player_id"`
	AlgorithmVersion string    `db:"algorithm_version"`
	TeamID           string    `db:"team_id"`
	Score            float64   `db:"score"`
	Breakdown        []byte    `db:"breakdown"`
	ComputedAt       time.Time `db:"computed_at"`
}

type playerMinutesTableModel struct {
	MatchDataID      string    `db:"match_data_id"`
	PlayerID         string    `db:"player_id"`
	AlgorithmVersion string    `db:"algorithm_version"`
	MinutesPlayed    float64   `db:"minutes_played"`
	ComputedAt       time.Time `db:"computed_at"`
}

type breakdownLine struct {
	Points float64 `json:"points"`
	Count  int     `json:"count"`
}

// ImpactRepository keeps one row per (match data, player, algorithm version).
// Each recompute replaces the rows of its (match data, version) slice.
type ImpactRepository struct {
	db *sqlx.DB
}

func NewImpactRepository(db *sqlx.DB) *ImpactRepository {
	return &ImpactRepository{db: db}
}

func (r *ImpactRepository) Replace(ctx context.Context, matchDataID string, version impact.Version, rows []impact.Row) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin replace player impacts tx: %w", err))
	}
	defer rollback(tx)

	query, args, err := qb.DeleteFrom("player_impacts").
		Where(qb.Eq("match_data_id", matchDataID), qb.Eq("algorithm_version", string(version))).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete player impacts query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return classify(fmt.Errorf("delete player impacts match_data=%s: %w", matchDataID, err))
	}

	if len(rows) > 0 {
		ins := qb.InsertInto("player_impacts").
			Columns("match_data_id", "player_id", "algorithm_version", "team_id", "score", "breakdown", "computed_at")
		for _, row := range rows {
			breakdown := make(map[string]breakdownLine, len(row.Breakdown))
			for category, line := range row.Breakdown {
				breakdown[string(category)] = breakdownLine{Points: line.Points, Count: line.Count}
			}
			raw, err := sonic.Marshal(breakdown)
			if err != nil {
				return fmt.Errorf("marshal impact breakdown player=%s: %w", row.PlayerID, err)
			}
			ins = ins.Values(matchDataID, row.PlayerID, string(version), row.TeamID, row.Score, string(raw), row.ComputedAt.UTC())
		}
		query, args, err = ins.Suffix(`ON CONFLICT (match_data_id, player_id, algorithm_version)
DO UPDATE SET
    team_id = EXCLUDED.team_id,
    score = EXCLUDED.score,
    breakdown = EXCLUDED.breakdown,
    computed_at = EXCLUDED.computed_at`).ToSQL()
		if err != nil {
			return fmt.Errorf("build insert player impacts query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify(fmt.Errorf("insert player impacts match_data=%s: %w", matchDataID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit replace player impacts tx: %w", err))
	}
	return nil
}

func (r *ImpactRepository) ListByMatch(ctx context.Context, matchDataID string) ([]impact.Row, error) {
	query, args, err := qb.Select("*").
		From("player_impacts").
		Where(qb.Eq("match_data_id", matchDataID)).
		OrderBy("player_id", "algorithm_version").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player impacts query: %w", err)
	}

	var rows []playerImpactTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(fmt.Errorf("select player impacts match_data=%s: %w", matchDataID, err))
	}

	out := make([]impact.Row, 0, len(rows))
	for _, row := range rows {
		var lines map[string]breakdownLine
		if len(row.Breakdown) > 0 {
			if err := sonic.Unmarshal(row.Breakdown, &lines); err != nil {
				return nil, fmt.Errorf("decode impact breakdown player=%s: %w", row.PlayerID, err)
			}
		}
		breakdown := make(impact.Breakdown, len(lines))
		for category, line := range lines {
			breakdown[impact.Category(category)] = impact.Line{Points: line.Points, Count: line.Count}
		}
		out = append(out, impact.Row{
			MatchDataID:      row.MatchDataID,
			PlayerID:         row.PlayerID,
			TeamID:           row.TeamID,
			Score:            row.Score,
			AlgorithmVersion: impact.Version(row.AlgorithmVersion),
			Breakdown:        breakdown,
			ComputedAt:       row.ComputedAt.UTC(),
		})
	}
	return out, nil
}

type MinutesRepository struct {
	db *sqlx.DB
}

func NewMinutesRepository(db *sqlx.DB) *MinutesRepository {
	return &MinutesRepository{db: db}
}

func (r *MinutesRepository) Replace(ctx context.Context, matchDataID, version string, rows []minutes.Row) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin replace player minutes tx: %w", err))
	}
	defer rollback(tx)

	query, args, err := qb.DeleteFrom("player_minutes").
		Where(qb.Eq("match_data_id", matchDataID), qb.Eq("algorithm_version", version)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete player minutes query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return classify(fmt.Errorf("delete player minutes match_data=%s: %w", matchDataID, err))
	}

	if len(rows) > 0 {
		ins := qb.InsertInto("player_minutes").
			Columns("match_data_id", "player_id", "algorithm_version", "minutes_played", "computed_at")
		for _, row := range rows {
			ins = ins.Values(matchDataID, row.PlayerID, version, row.MinutesPlayed, row.ComputedAt.UTC())
		}
		query, args, err = ins.Suffix(`ON CONFLICT (match_data_id, player_id, algorithm_version)
DO UPDATE SET
    minutes_played = EXCLUDED.minutes_played,
    computed_at = EXCLUDED.computed_at`).ToSQL()
		if err != nil {
			return fmt.Errorf("build insert player minutes query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify(fmt.Errorf("insert player minutes match_data=%s: %w", matchDataID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit replace player minutes tx: %w", err))
	}
	return nil
}

func (r *MinutesRepository) ListByMatch(ctx context.Context, matchDataID string) ([]minutes.Row, error) {
	query, args, err := qb.Select("*").
		From("player_minutes").
		Where(qb.Eq("match_data_id", matchDataID)).
		OrderBy("player_id", "algorithm_version").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select player minutes query: %w", err)
	}

	var rows []playerMinutesTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(fmt.Errorf("select player minutes match_data=%s: %w", matchDataID, err))
	}

	out := make([]minutes.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, minutes.Row{
			MatchDataID:      row.MatchDataID,
			PlayerID:         row.PlayerID,
			AlgorithmVersion: row.AlgorithmVersion,
			MinutesPlayed:    row.MinutesPlayed,
			ComputedAt:       row.ComputedAt.UTC(),
		})
	}
	return out, nil
}
