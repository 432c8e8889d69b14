// Package impact scores each player's contribution to a match from the shot
// log and the role timeline. Results are deterministic for a given input and
// weight version.
package impact

import (
	"math"
	"sort"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/timeline"
)

type Category string

const (
	CategoryShotMissFor      Category = "shot_miss_for"
	CategoryDefShotAgainst   Category = "def_shot_against"
	CategoryDefGoalAgainst   Category = "def_goal_against"
	CategoryDefMissAgainst   Category = "def_miss_against"
	CategoryGoalScored       Category = "goal_scored"
	CategoryDoorloopConceded Category = "doorloop_concede_penalty"
)

var Categories = []Category{
	CategoryShotMissFor,
	CategoryDefShotAgainst,
	CategoryDefGoalAgainst,
	CategoryDefMissAgainst,
	CategoryGoalScored,
	CategoryDoorloopConceded,
}

type Line struct {
	Points float64
	Count  int
}

type Breakdown map[Category]Line

// Features are the weight-independent sums a score is built from; shares
// are already divided by the defender count.
type Features struct {
	GoalPoints      float64
	Goals           int
	MissWeight      float64
	Misses          int
	ShotsAgainst    float64
	GoalsAgainst    float64
	MissesAgainst   float64
	DefendedShots   int
	DefendedGoals   int
	DefendedMisses  int
	DoorloopConcede float64
	DoorloopCount   int
}

// Score is the weighted sum of the features before rounding.
func (f Features) Score(w Weights) float64 {
	return f.GoalPoints -
		w.MissFor*f.MissWeight +
		w.ShotAgainst*f.ShotsAgainst +
		w.GoalAgainst*f.GoalsAgainst +
		w.MissAgainst*f.MissesAgainst -
		w.DoorloopConcede*f.DoorloopConcede
}

func (f Features) Breakdown(w Weights) Breakdown {
	return Breakdown{
		CategoryGoalScored:       {Points: round4(f.GoalPoints), Count: f.Goals},
		CategoryShotMissFor:      {Points: round4(-w.MissFor * f.MissWeight), Count: f.Misses},
		CategoryDefShotAgainst:   {Points: round4(w.ShotAgainst * f.ShotsAgainst), Count: f.DefendedShots},
		CategoryDefGoalAgainst:   {Points: round4(w.GoalAgainst * f.GoalsAgainst), Count: f.DefendedGoals},
		CategoryDefMissAgainst:   {Points: round4(w.MissAgainst * f.MissesAgainst), Count: f.DefendedMisses},
		CategoryDoorloopConceded: {Points: round4(-w.DoorloopConcede * f.DoorloopConcede), Count: f.DoorloopCount},
	}
}

// Shot is one shot row placed on the minute axis.
type Shot struct {
	ID       string
	Seq      int64
	Minute   float64
	PlayerID string
	TeamID   string
	ForTeam  bool
	Scored   bool
	ShotType string
}

type Input struct {
	Version    string
	HomeTeamID string
	AwayTeamID string
	// PlayerTeams maps every known player to its team. Only these players
	// receive rows.
	PlayerTeams map[string]string
	Shots       []Shot
	Timeline    timeline.Timeline
}

type PlayerImpact struct {
	PlayerID  string
	TeamID    string
	Score     float64
	Features  Features
	Breakdown Breakdown
}

type Result struct {
	Version Version
	Players []PlayerImpact
}

// Row is the persisted impact of one player in one match.
type Row struct {
	MatchDataID      string
	PlayerID         string
	TeamID           string
	Score            float64
	AlgorithmVersion Version
	Breakdown        Breakdown
	ComputedAt       time.Time
}

// RoundJS1 rounds half up to one decimal.
func RoundJS1(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

func Compute(in Input) Result {
	w := Lookup(in.Version)

	shots := append([]Shot(nil), in.Shots...)
	sort.SliceStable(shots, func(i, j int) bool {
		if shots[i].Minute != shots[j].Minute {
			return shots[i].Minute < shots[j].Minute
		}
		return shots[i].Seq < shots[j].Seq
	})

	opponent := func(team string) string {
		switch team {
		case in.HomeTeamID:
			return in.AwayTeamID
		case in.AwayTeamID:
			return in.HomeTeamID
		default:
			return ""
		}
	}

	attempts := map[string]int{}
	goals := map[string]int{}
	if w.Efficiency != EfficiencyOff {
		for _, s := range shots {
			if s.PlayerID == "" || (w.Efficiency == EfficiencyOwnShots && !s.ForTeam) {
				continue
			}
			attempts[s.PlayerID]++
			if s.Scored {
				goals[s.PlayerID]++
			}
		}
	}

	players := make([]string, 0, len(in.PlayerTeams))
	for id := range in.PlayerTeams {
		players = append(players, id)
	}
	sort.Strings(players)
	features := make(map[string]*Features, len(players))
	for _, id := range players {
		features[id] = &Features{}
	}

	var (
		goalsBefore int
		streakTeam  string
		streak      int
	)
	for _, s := range shots {
		team := s.TeamID
		if w.Attribution == AttributionForTeamFlip && !s.ForTeam {
			team = opponent(s.TeamID)
		}
		defending := opponent(team)

		defenderRole := playergroup.RoleVerdediging
		if (goalsBefore/2)%2 == 1 {
			defenderRole = playergroup.RoleAanval
		}
		probe := math.Max(0, s.Minute-timeline.EPS)
		defenders := make([]string, 0, 4)
		for _, id := range players {
			if defending != "" && in.PlayerTeams[id] == defending && in.Timeline.RoleAt(id, probe) == defenderRole {
				defenders = append(defenders, id)
			}
		}

		shooter, credited := features[s.PlayerID]
		credited = credited && in.PlayerTeams[s.PlayerID] == team

		if s.Scored {
			if team == streakTeam {
				streak++
			} else {
				streakTeam, streak = team, 1
			}
			mult := 1.0
			if w.Efficiency != EfficiencyOff {
				mult = ScorerEfficiencyMult(attempts[s.PlayerID], goals[s.PlayerID])
			}
			points := Base * TypeWeight(s.ShotType) * StreakFactor(streak, w.StreakCap) * mult
			if credited {
				shooter.GoalPoints += points
				shooter.Goals++
			}
			if isDoorloop(s.ShotType) {
				for _, id := range defenders {
					features[id].DoorloopConcede += points
					features[id].DoorloopCount++
				}
			}
			goalsBefore++
		} else if credited {
			mult := 1.0
			if w.Efficiency != EfficiencyOff {
				mult = MissEfficiencyMult(attempts[s.PlayerID], goals[s.PlayerID])
			}
			shooter.MissWeight += mult
			shooter.Misses++
		}

		if n := len(defenders); n > 0 {
			share := 1 / float64(n)
			for _, id := range defenders {
				f := features[id]
				f.ShotsAgainst += share
				f.DefendedShots++
				if s.Scored {
					f.GoalsAgainst += share
					f.DefendedGoals++
				} else {
					f.MissesAgainst += share
					f.DefendedMisses++
				}
			}
		}
	}

	out := Result{Version: w.Version, Players: make([]PlayerImpact, 0, len(players))}
	for _, id := range players {
		f := *features[id]
		out.Players = append(out.Players, PlayerImpact{
			PlayerID:  id,
			TeamID:    in.PlayerTeams[id],
			Score:     RoundJS1(f.Score(w)),
			Features:  f,
			Breakdown: f.Breakdown(w),
		})
	}
	return out
}
