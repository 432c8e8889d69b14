package playergroup

import "errors"

var (
	ErrCapacity      = errors.New("group capacity exceeded")
	ErrGroupNotFound = errors.New("player group not found")
)

// SwapAttackDefence toggles Aanval and Verdediging current types for every
// group in place and returns the indexes it changed.
func SwapAttackDefence(groups []Group) []int {
	changed := make([]int, 0, 4)
	for i := range groups {
		next := groups[i].CurrentType.Swapped()
		if next == groups[i].CurrentType {
			continue
		}
		groups[i].CurrentType = next
		changed = append(changed, i)
	}
	return changed
}

// IndexByCurrentType finds a team's group by its current type.
func IndexByCurrentType(groups []Group, teamID string, t Type) int {
	for i, g := range groups {
		if g.TeamID == teamID && g.CurrentType == t {
			return i
		}
	}
	return -1
}

// IndexByStartingType finds a team's group by its immutable starting type.
func IndexByStartingType(groups []Group, teamID string, t Type) int {
	for i, g := range groups {
		if g.TeamID == teamID && g.StartingType == t {
			return i
		}
	}
	return -1
}

func IndexByID(groups []Group, groupID string) int {
	for i, g := range groups {
		if g.ID == groupID {
			return i
		}
	}
	return -1
}

// IndexOfPlayer returns the team's group holding playerID.
func IndexOfPlayer(groups []Group, teamID, playerID string) int {
	for i, g := range groups {
		if g.TeamID == teamID && g.Has(playerID) {
			return i
		}
	}
	return -1
}

// EndRoles maps each grouped player to the starting role of the group it
// sits in now.
func EndRoles(groups []Group) map[string]Role {
	out := make(map[string]Role)
	for _, g := range groups {
		for _, id := range g.PlayerIDs {
			out[id] = g.StartingType.Role()
		}
	}
	return out
}

// PlayerTeams maps each grouped player to its team.
func PlayerTeams(groups []Group) map[string]string {
	out := make(map[string]string)
	for _, g := range groups {
		for _, id := range g.PlayerIDs {
			out[id] = g.TeamID
		}
	}
	return out
}

// IsSwapped reports whether the current types are inverted relative to
// the starting types.
func IsSwapped(groups []Group, teamID string) bool {
	for _, g := range groups {
		if g.TeamID == teamID && g.StartingType == TypeAanval {
			return g.CurrentType == TypeVerdediging
		}
	}
	return false
}
