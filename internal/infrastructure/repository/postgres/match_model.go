package postgres

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type matchTableModel struct {
	ID         string    `db:"id"`
	HomeTeamID string    `db:"home_team_id"`
	AwayTeamID string    `db:"away_team_id"`
	SeasonID   string    `db:"season_id"`
	StartTime  time.Time `db:"start_time"`
}

type matchDataTableModel struct {
	ID                string    `db:"id"`
	MatchID           string    `db:"match_id"`
	Status            string    `db:"status"`
	HomeScore         int       `db:"home_score"`
	AwayScore         int       `db:"away_score"`
	Parts             int       `db:"parts"`
	CurrentPart       int       `db:"current_part"`
	PartLengthSeconds int       `db:"part_length_seconds"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// matchOverviewModel is one row of the matches/match_data join.
type matchOverviewModel struct {
	matchTableModel
	DataID            string    `db:"data_id"`
	Status            string    `db:"status"`
	HomeScore         int       `db:"home_score"`
	AwayScore         int       `db:"away_score"`
	Parts             int       `db:"parts"`
	CurrentPart       int       `db:"current_part"`
	PartLengthSeconds int       `db:"part_length_seconds"`
	UpdatedAt         time.Time `db:"updated_at"`
}

type matchPartTableModel struct {
	ID          string     `db:"id"`
	MatchDataID string     `db:"match_data_id"`
	PartNumber  int        `db:"part_number"`
	StartTime   time.Time  `db:"start_time"`
	EndTime     *time.Time `db:"end_time"`
	Active      bool       `db:"active"`
}

type playerGroupTableModel struct {
	ID           string         `db:"id"`
	MatchDataID  string         `db:"match_data_id"`
	TeamID       string         `db:"team_id"`
	StartingType string         `db:"starting_type"`
	CurrentType  string         `db:"current_type"`
	PlayerIDs    pq.StringArray `db:"player_ids"`
}

type matchPlayerTableModel struct {
	MatchDataID string `db:"match_data_id"`
	TeamID      string `db:"team_id"`
	PlayerID    string `db:"player_id"`
}

type matchEventTableModel struct {
	Seq         int64          `db:"seq"`
	ID          string         `db:"id"`
	MatchDataID string         `db:"match_data_id"`
	PartID      sql.NullString `db:"part_id"`
	Kind        string         `db:"kind"`
	EventTime   time.Time      `db:"event_time"`
	Payload     []byte         `db:"payload"`
}

type matchEventInsertModel struct {
	ID          string    `db:"id"`
	MatchDataID string    `db:"match_data_id"`
	PartID      *string   `db:"part_id"`
	Kind        string    `db:"kind"`
	EventTime   time.Time `db:"event_time"`
	Payload     string    `db:"payload"`
}
