package match

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusUpcoming:
		return StatusUpcoming, true
	case StatusActive:
		return StatusActive, true
	case StatusFinished:
		return StatusFinished, true
	default:
		return "", false
	}
}

const (
	DefaultParts             = 2
	DefaultPartLengthSeconds = 1800
	MaxWissels               = 8
	MaxTimeouts              = 2
)

var (
	ErrDataNotFound  = errors.New("match data not found")
	ErrEventNotFound = errors.New("match event not found")
	ErrInvalidData   = errors.New("invalid match data")
)

type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// Match is the scheduled fixture.
type Match struct {
	ID         string
	HomeTeamID string
	AwayTeamID string
	SeasonID   string
	StartTime  time.Time
}

func (m Match) HasTeam(teamID string) bool {
	return teamID != "" && (teamID == m.HomeTeamID || teamID == m.AwayTeamID)
}

// Opponent returns the other team of the match.
func (m Match) Opponent(teamID string) (string, bool) {
	switch teamID {
	case m.HomeTeamID:
		return m.AwayTeamID, true
	case m.AwayTeamID:
		return m.HomeTeamID, true
	default:
		return "", false
	}
}

func (m Match) SideOf(teamID string) (Side, bool) {
	switch teamID {
	case m.HomeTeamID:
		return SideHome, true
	case m.AwayTeamID:
		return SideAway, true
	default:
		return "", false
	}
}

func (m Match) TeamOf(side Side) string {
	if side == SideAway {
		return m.AwayTeamID
	}
	return m.HomeTeamID
}

// Data is the mutable live state of a match.
type Data struct {
	ID                string
	MatchID           string
	Status            Status
	HomeScore         int
	AwayScore         int
	Parts             int
	CurrentPart       int
	PartLengthSeconds int
	UpdatedAt         time.Time
}

func NewData(id, matchID string, now time.Time) Data {
	return Data{
		ID:                id,
		MatchID:           matchID,
		Status:            StatusUpcoming,
		Parts:             DefaultParts,
		CurrentPart:       1,
		PartLengthSeconds: DefaultPartLengthSeconds,
		UpdatedAt:         now.UTC(),
	}
}

func (d Data) Finished() bool {
	return d.Status == StatusFinished
}

func (d Data) Validate() error {
	if d.Parts < 1 {
		return fmt.Errorf("%w: parts must be positive", ErrInvalidData)
	}
	if d.CurrentPart < 1 || d.CurrentPart > d.Parts {
		return fmt.Errorf("%w: current_part %d outside 1..%d", ErrInvalidData, d.CurrentPart, d.Parts)
	}
	if d.PartLengthSeconds <= 0 {
		return fmt.Errorf("%w: part_length_seconds must be positive", ErrInvalidData)
	}
	if _, ok := ParseStatus(string(d.Status)); !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidData, d.Status)
	}
	return nil
}

// Part is a timed segment of play.
type Part struct {
	ID          string
	MatchDataID string
	PartNumber  int
	StartTime   time.Time
	EndTime     *time.Time
	Active      bool
}

// Overview pairs a fixture with its live data for listings.
type Overview struct {
	Match Match
	Data  Data
}
