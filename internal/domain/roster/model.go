package roster

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinPlayerNameLength = 3
	MaxPlayerNameLength = 50
)

var ErrInvalidPlayerName = errors.New("invalid player name")

type Player struct {
	ID   string
	Name string
}

func ValidatePlayerName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < MinPlayerNameLength || n > MaxPlayerNameLength {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidPlayerName, MinPlayerNameLength, MaxPlayerNameLength)
	}
	return nil
}

// MatchPlayer lists a player on one side of a specific match.
type MatchPlayer struct {
	MatchDataID string
	TeamID      string
	PlayerID    string
}

// SeasonMember is a player registered with a team for a season.
type SeasonMember struct {
	TeamID   string
	SeasonID string
	PlayerID string
}

// Coach grants a user edit rights on a team's matches.
type Coach struct {
	TeamID string
	UserID string
}
