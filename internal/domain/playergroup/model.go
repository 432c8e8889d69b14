package playergroup

import (
	"fmt"
	"strings"
)

// Type is the canonical group label.
type Type string

const (
	TypeAanval      Type = "Aanval"
	TypeVerdediging Type = "Verdediging"
	TypeReserve     Type = "Reserve"
)

// AllTypes lists the groups created for each team of a match.
var AllTypes = []Type{TypeAanval, TypeVerdediging, TypeReserve}

// Role is the lowercase field role used by analytics.
type Role string

const (
	RoleAanval      Role = "aanval"
	RoleVerdediging Role = "verdediging"
	RoleReserve     Role = "reserve"
	RoleUnknown     Role = "unknown"
)

const (
	MaxStartingPlayers = 4
	MaxReservePlayers  = 16
)

func ParseType(raw string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "aanval":
		return TypeAanval, true
	case "verdediging":
		return TypeVerdediging, true
	case "reserve":
		return TypeReserve, true
	default:
		return "", false
	}
}

func (t Type) Role() Role {
	switch t {
	case TypeAanval:
		return RoleAanval
	case TypeVerdediging:
		return RoleVerdediging
	case TypeReserve:
		return RoleReserve
	default:
		return RoleUnknown
	}
}

// Swapped exchanges Aanval and Verdediging; other types are unchanged.
func (t Type) Swapped() Type {
	switch t {
	case TypeAanval:
		return TypeVerdediging
	case TypeVerdediging:
		return TypeAanval
	default:
		return t
	}
}

func (t Type) Capacity() int {
	if t == TypeReserve {
		return MaxReservePlayers
	}
	return MaxStartingPlayers
}

// IsField reports whether players in the group are on the court.
func (r Role) IsField() bool {
	return r == RoleAanval || r == RoleVerdediging
}

// Group is one team's set of players sharing a role in a match.
type Group struct {
	ID           string
	TeamID       string
	MatchDataID  string
	StartingType Type
	CurrentType  Type
	PlayerIDs    []string
}

func (g Group) Has(playerID string) bool {
	for _, id := range g.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

func (g Group) Clone() Group {
	g.PlayerIDs = append([]string(nil), g.PlayerIDs...)
	return g
}

func (g *Group) Add(playerID string) error {
	if g.Has(playerID) {
		return nil
	}
	if len(g.PlayerIDs) >= g.StartingType.Capacity() {
		return fmt.Errorf("%w: group %s holds at most %d players", ErrCapacity, g.StartingType, g.StartingType.Capacity())
	}
	g.PlayerIDs = append(g.PlayerIDs, playerID)
	return nil
}

func (g *Group) Remove(playerID string) bool {
	for i, id := range g.PlayerIDs {
		if id == playerID {
			g.PlayerIDs = append(g.PlayerIDs[:i], g.PlayerIDs[i+1:]...)
			return true
		}
	}
	return false
}
