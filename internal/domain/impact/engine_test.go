package impact

import (
	"math"
	"testing"

	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/timeline"
)

func findPlayer(t *testing.T, res Result, id string) PlayerImpact {
	t.Helper()
	for _, p := range res.Players {
		if p.PlayerID == id {
			return p
		}
	}
	t.Fatalf("player %s missing from result", id)
	return PlayerImpact{}
}

func TestCompute_SingleMissV6(t *testing.T) {
	t.Parallel()

	res := Compute(Input{
		Version:     "v6",
		HomeTeamID:  "home",
		AwayTeamID:  "away",
		PlayerTeams: map[string]string{"P": "home"},
		Shots:       []Shot{{ID: "s1", Minute: 3, PlayerID: "P", TeamID: "home", ForTeam: true}},
		Timeline: timeline.Build(timeline.Input{
			EndRoles:        map[string]playergroup.Role{"P": playergroup.RoleAanval},
			MatchEndMinutes: 60,
		}),
	})

	p := findPlayer(t, res, "P")
	if p.Score != -0.2 {
		t.Fatalf("expected -0.2, got %v", p.Score)
	}
	if line := p.Breakdown[CategoryShotMissFor]; line.Count != 1 || math.Abs(line.Points+0.2) > 1e-9 {
		t.Fatalf("unexpected miss breakdown: %+v", line)
	}
	if res.Version != V6 {
		t.Fatalf("expected v6, got %s", res.Version)
	}
}

func TestCompute_StreakCap(t *testing.T) {
	t.Parallel()

	// 6 goals out of 20 attempts keeps the scorer efficiency multiplier at 1.0.
	var shots []Shot
	for i := 0; i < 6; i++ {
		shots = append(shots, Shot{Seq: int64(i), Minute: float64(i + 1), PlayerID: "P", TeamID: "home", ForTeam: true, Scored: true, ShotType: "Doorloopbal"})
	}
	for i := 0; i < 14; i++ {
		shots = append(shots, Shot{Seq: int64(10 + i), Minute: float64(20 + i), PlayerID: "P", TeamID: "home", ForTeam: true})
	}

	res := Compute(Input{
		Version:     string(V6),
		HomeTeamID:  "home",
		AwayTeamID:  "away",
		PlayerTeams: map[string]string{"P": "home"},
		Shots:       shots,
		Timeline:    timeline.Build(timeline.Input{PlayerIDs: []string{"P"}, MatchEndMinutes: 60}),
	})

	want := 4.0 * (1.00 + 1.12 + 1.24 + 1.36 + 1.36 + 1.36)
	line := findPlayer(t, res, "P").Breakdown[CategoryGoalScored]
	if line.Count != 6 || math.Abs(line.Points-want) > 1e-6 {
		t.Fatalf("goal_scored = %+v, want points %v", line, want)
	}
}

func TestCompute_StreakUncappedBeforeV5(t *testing.T) {
	t.Parallel()

	var shots []Shot
	for i := 0; i < 5; i++ {
		shots = append(shots, Shot{Seq: int64(i), Minute: float64(i + 1), PlayerID: "P", TeamID: "home", ForTeam: true, Scored: true})
	}
	res := Compute(Input{
		Version:     "v2",
		HomeTeamID:  "home",
		AwayTeamID:  "away",
		PlayerTeams: map[string]string{"P": "home"},
		Shots:       shots,
		Timeline:    timeline.Build(timeline.Input{PlayerIDs: []string{"P"}, MatchEndMinutes: 60}),
	})

	want := Base * (1.00 + 1.12 + 1.24 + 1.36 + 1.48)
	if got := findPlayer(t, res, "P").Features.GoalPoints; math.Abs(got-want) > 1e-9 {
		t.Fatalf("goal points = %v, want %v", got, want)
	}
}

func TestCompute_DefendersShareAndGoalSwap(t *testing.T) {
	t.Parallel()

	tl := timeline.Build(timeline.Input{
		EndRoles: map[string]playergroup.Role{
			"h-att":  playergroup.RoleAanval,
			"a-def":  playergroup.RoleVerdediging,
			"a-def2": playergroup.RoleVerdediging,
			"a-att":  playergroup.RoleAanval,
		},
		MatchEndMinutes: 60,
	})
	teams := map[string]string{"h-att": "home", "a-def": "away", "a-def2": "away", "a-att": "away"}
	shots := []Shot{
		{Seq: 1, Minute: 5, PlayerID: "h-att", TeamID: "home", ForTeam: true, Scored: true},
		{Seq: 2, Minute: 6, PlayerID: "h-att", TeamID: "home", ForTeam: true, Scored: true},
		// Two goals in: the away aanval group now defends.
		{Seq: 3, Minute: 7, PlayerID: "h-att", TeamID: "home", ForTeam: true},
	}

	res := Compute(Input{Version: "v6", HomeTeamID: "home", AwayTeamID: "away", PlayerTeams: teams, Shots: shots, Timeline: tl})

	def := findPlayer(t, res, "a-def")
	if def.Features.DefendedGoals != 2 || math.Abs(def.Features.GoalsAgainst-1) > 1e-9 {
		t.Fatalf("expected half of two goals against, got %+v", def.Features)
	}
	if def.Features.DefendedMisses != 0 {
		t.Fatalf("defender must not be credited after the swap, got %+v", def.Features)
	}
	att := findPlayer(t, res, "a-att")
	if att.Features.DefendedMisses != 1 || math.Abs(att.Features.MissesAgainst-1) > 1e-9 {
		t.Fatalf("expected swapped attacker to defend the miss, got %+v", att.Features)
	}
	wantDef := RoundJS1(-0.17*1 + -2.94*1)
	if def.Score != wantDef {
		t.Fatalf("defender score = %v, want %v", def.Score, wantDef)
	}
}

func TestCompute_AttributionByVersion(t *testing.T) {
	t.Parallel()

	// A for_team=false row by a home player: v5 attributes it to the
	// opponent, v6 keeps the shot team.
	input := func(version string) Input {
		return Input{
			Version:     version,
			HomeTeamID:  "home",
			AwayTeamID:  "away",
			PlayerTeams: map[string]string{"P": "home"},
			Shots:       []Shot{{Minute: 1, PlayerID: "P", TeamID: "home", ForTeam: false, Scored: true}},
			Timeline:    timeline.Build(timeline.Input{PlayerIDs: []string{"P"}, MatchEndMinutes: 60}),
		}
	}

	if got := findPlayer(t, Compute(input("v5")), "P").Features.Goals; got != 0 {
		t.Fatalf("v5 must not credit a flipped row, got %d goals", got)
	}
	if got := findPlayer(t, Compute(input("v6")), "P").Features.Goals; got != 1 {
		t.Fatalf("v6 must credit shot team, got %d goals", got)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	t.Parallel()

	tl := timeline.Build(timeline.Input{
		EndRoles:        map[string]playergroup.Role{"a": playergroup.RoleAanval, "b": playergroup.RoleVerdediging, "c": playergroup.RoleVerdediging},
		Subs:            []timeline.Sub{{Minute: 12.5, GroupRole: playergroup.RoleVerdediging, PlayerInID: "c", PlayerOutID: "b"}},
		MatchEndMinutes: 60,
	})
	in := Input{
		Version:     "v6",
		HomeTeamID:  "home",
		AwayTeamID:  "away",
		PlayerTeams: map[string]string{"a": "home", "b": "away", "c": "away"},
		Shots: []Shot{
			{Seq: 2, Minute: 14, PlayerID: "a", TeamID: "home", ForTeam: true, Scored: true, ShotType: "korte kans"},
			{Seq: 1, Minute: 3, PlayerID: "a", TeamID: "home", ForTeam: true},
			{Seq: 3, Minute: 20, PlayerID: "a", TeamID: "home", ForTeam: true, Scored: true, ShotType: "Strafworp"},
		},
		Timeline: tl,
	}

	first := Compute(in)
	for i := 0; i < 10; i++ {
		again := Compute(in)
		for j := range first.Players {
			if first.Players[j].PlayerID != again.Players[j].PlayerID || first.Players[j].Score != again.Players[j].Score {
				t.Fatalf("run %d differs: %+v vs %+v", i, first.Players[j], again.Players[j])
			}
		}
	}
}

func TestTypeWeight(t *testing.T) {
	t.Parallel()

	tests := map[string]float64{
		"Strafworp":     0.55,
		"vrije  worp":   0.65,
		"Korte kans":    1.35,
		"Doorloopbal":   1.25,
		"1/2 afstand":   1.10,
		"Halve Afstand": 1.10,
		"afstandsschot": 0.95,
		"inloopbal":     1.0,
		"":              1.0,
	}
	for input, want := range tests {
		if got := TypeWeight(input); got != want {
			t.Fatalf("TypeWeight(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestEfficiencyMultipliers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempts, goals int
		scorer, miss    float64
	}{
		{attempts: 4, goals: 4, scorer: 1.0, miss: 1.0},
		{attempts: 10, goals: 5, scorer: 1.2, miss: 0.7},
		{attempts: 9, goals: 3, scorer: 1.1, miss: 0.85},
		{attempts: 10, goals: 2, scorer: 1.0, miss: 1.0},
		{attempts: 10, goals: 1, scorer: 0.9, miss: 1.15},
	}
	for _, tc := range tests {
		if got := ScorerEfficiencyMult(tc.attempts, tc.goals); got != tc.scorer {
			t.Fatalf("scorer mult %d/%d = %v, want %v", tc.goals, tc.attempts, got, tc.scorer)
		}
		if got := MissEfficiencyMult(tc.attempts, tc.goals); got != tc.miss {
			t.Fatalf("miss mult %d/%d = %v, want %v", tc.goals, tc.attempts, got, tc.miss)
		}
	}
}

func TestLookup_FallsBackToLatest(t *testing.T) {
	t.Parallel()

	if got := Lookup("v99").Version; got != Latest {
		t.Fatalf("expected fallback to %s, got %s", Latest, got)
	}
	if got := Lookup(" V3 ").Efficiency; got != EfficiencyAllShots {
		t.Fatalf("expected v3 efficiency mode, got %v", got)
	}
}

func TestRoundJS1(t *testing.T) {
	t.Parallel()

	tests := map[float64]float64{0.25: 0.3, -0.25: -0.2, -0.2: -0.2, 1.04: 1.0}
	for input, want := range tests {
		if got := RoundJS1(input); math.Abs(got-want) > 1e-9 {
			t.Fatalf("RoundJS1(%v) = %v, want %v", input, got, want)
		}
	}
}
