package impact

import "strings"

type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"
	V3 Version = "v3"
	V4 Version = "v4"
	V5 Version = "v5"
	V6 Version = "v6"

	Latest = V6
)

// EfficiencyMode selects how shooter efficiency scales goal and miss points.
type EfficiencyMode int

const (
	EfficiencyOff EfficiencyMode = iota
	EfficiencyAllShots
	// EfficiencyOwnShots ignores rows tagged for_team=false.
	EfficiencyOwnShots
)

// Attribution decides which team a shot row counts for.
type Attribution int

const (
	// AttributionForTeamFlip credits shot.team when for_team is set and the
	// opponent otherwise.
	AttributionForTeamFlip Attribution = iota
	// AttributionShotTeam always credits shot.team.
	AttributionShotTeam
)

// Weights is one tagged entry of the version registry.
type Weights struct {
	Version         Version
	MissFor         float64
	ShotAgainst     float64
	GoalAgainst     float64
	MissAgainst     float64
	DoorloopConcede float64
	Efficiency      EfficiencyMode
	StreakCap       bool
	Attribution     Attribution
}

var registry = map[Version]Weights{
	V1: {Version: V1, MissFor: 0.9, ShotAgainst: -0.25, GoalAgainst: -6.2, MissAgainst: 0.55, DoorloopConcede: 0.06},
	V2: {Version: V2, MissFor: 0.6, ShotAgainst: -0.25, GoalAgainst: -6.2, MissAgainst: 0.80, DoorloopConcede: 0.06},
	V3: {Version: V3, MissFor: 0.6, ShotAgainst: -0.25, GoalAgainst: -6.2, MissAgainst: 0.80, DoorloopConcede: 0.06,
		Efficiency: EfficiencyAllShots},
	V4: {Version: V4, MissFor: 0.6, ShotAgainst: -0.25, GoalAgainst: -6.2, MissAgainst: 0.80, DoorloopConcede: 0.06,
		Efficiency: EfficiencyOwnShots},
	V5: {Version: V5, MissFor: 0.6, ShotAgainst: -0.25, GoalAgainst: -6.2, MissAgainst: 0.80, DoorloopConcede: 0.06,
		Efficiency: EfficiencyOwnShots, StreakCap: true},
	V6: {Version: V6, MissFor: 0.20, ShotAgainst: -0.17, GoalAgainst: -2.94, MissAgainst: 0.31, DoorloopConcede: 0,
		Efficiency: EfficiencyOwnShots, StreakCap: true, Attribution: AttributionShotTeam},
}

// Lookup returns the weights for raw, falling back to Latest for unknown
// versions.
func Lookup(raw string) Weights {
	if w, ok := registry[Version(strings.ToLower(strings.TrimSpace(raw)))]; ok {
		return w
	}
	return registry[Latest]
}

func Versions() []Version {
	return []Version{V1, V2, V3, V4, V5, V6}
}

const (
	Base       = 3.2
	streakCap  = 4
	streakStep = 0.12
)

// NormalizeGoalType lowercases and collapses whitespace.
func NormalizeGoalType(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

func TypeWeight(goalType string) float64 {
	t := NormalizeGoalType(goalType)
	switch {
	case strings.Contains(t, "straf"):
		return 0.55
	case strings.Contains(t, "vrije"):
		return 0.65
	case strings.Contains(t, "korte"):
		return 1.35
	case strings.Contains(t, "doorloop"):
		return 1.25
	case strings.Contains(t, "1/2 afstand"), strings.Contains(t, "halve afstand"), strings.Contains(t, "half afstand"):
		return 1.10
	case strings.Contains(t, "afstand"):
		return 0.95
	default:
		return 1.0
	}
}

func isDoorloop(goalType string) bool {
	return strings.Contains(NormalizeGoalType(goalType), "doorloop")
}

func StreakFactor(streak int, capped bool) float64 {
	if streak < 1 {
		streak = 1
	}
	if capped && streak > streakCap {
		streak = streakCap
	}
	return 1 + float64(streak-1)*streakStep
}

func ScorerEfficiencyMult(attempts, goals int) float64 {
	return efficiencyMult(attempts, goals, [4]float64{1.2, 1.1, 1.0, 0.9})
}

func MissEfficiencyMult(attempts, goals int) float64 {
	return efficiencyMult(attempts, goals, [4]float64{0.7, 0.85, 1.0, 1.15})
}

func efficiencyMult(attempts, goals int, steps [4]float64) float64 {
	if attempts < 5 {
		return 1.0
	}
	rate := float64(goals) / float64(attempts)
	switch {
	case rate >= 0.5:
		return steps[0]
	case rate >= 1.0/3.0:
		return steps[1]
	case rate >= 0.2:
		return steps[2]
	default:
		return steps[3]
	}
}
