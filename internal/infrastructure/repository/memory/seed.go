package memory

import (
	"fmt"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
)

const (
	SeasonID2025 = "season-2025-2026"

	TeamIDHome = "team-dkv"
	TeamIDAway = "team-fortuna"

	MatchIDOpening  = "match-opening"
	MatchIDRematch  = "match-rematch"
	MatchIDFinished = "match-last-season"

	CoachUserID = "user-coach-dkv"
	AdminUserID = "user-admin"
)

// SeedMatches returns an upcoming opener, a later rematch and a finished
// match without events, all relative to now.
func SeedMatches(now time.Time) []match.State {
	now = now.UTC()
	return []match.State{
		seedMatch(MatchIDOpening, TeamIDHome, TeamIDAway, now.Add(time.Hour), now),
		seedMatch(MatchIDRematch, TeamIDAway, TeamIDHome, now.Add(7*24*time.Hour), now),
		finished(seedMatch(MatchIDFinished, TeamIDHome, TeamIDAway, now.Add(-30*24*time.Hour), now)),
	}
}

func finished(st match.State) match.State {
	st.Data.Status = match.StatusFinished
	st.Data.CurrentPart = st.Data.Parts
	return st
}

func seedMatch(matchID, homeTeamID, awayTeamID string, start, now time.Time) match.State {
	dataID := matchID + "-data"
	st := match.State{
		Match: match.Match{
			ID:         matchID,
			HomeTeamID: homeTeamID,
			AwayTeamID: awayTeamID,
			SeasonID:   SeasonID2025,
			StartTime:  start,
		},
		Data: match.NewData(dataID, matchID, now),
	}
	st.Groups = append(st.Groups, SeedGroups(dataID, homeTeamID)...)
	st.Groups = append(st.Groups, SeedGroups(dataID, awayTeamID)...)
	for _, g := range st.Groups {
		for _, playerID := range g.PlayerIDs {
			st.Players = append(st.Players, roster.MatchPlayer{MatchDataID: dataID, TeamID: g.TeamID, PlayerID: playerID})
		}
	}
	return st
}

// SeedGroups builds a team's three groups: four attackers, four defenders
// and two reserves.
func SeedGroups(matchDataID, teamID string) []playergroup.Group {
	groups := make([]playergroup.Group, 0, len(playergroup.AllTypes))
	next := 1
	for _, t := range playergroup.AllTypes {
		size := playergroup.MaxStartingPlayers
		if t == playergroup.TypeReserve {
			size = 2
		}
		g := playergroup.Group{
			ID:           fmt.Sprintf("%s-%s-%s", matchDataID, teamID, t.Role()),
			TeamID:       teamID,
			MatchDataID:  matchDataID,
			StartingType: t,
			CurrentType:  t,
		}
		for i := 0; i < size; i++ {
			g.PlayerIDs = append(g.PlayerIDs, SeedPlayerID(teamID, next))
			next++
		}
		groups = append(groups, g)
	}
	return groups
}

func SeedPlayerID(teamID string, n int) string {
	return fmt.Sprintf("%s-p%02d", teamID, n)
}

func SeedRoster() ([]roster.SeasonMember, []roster.Player, []roster.Coach) {
	members := make([]roster.SeasonMember, 0, 20)
	players := make([]roster.Player, 0, 20)
	for _, teamID := range []string{TeamIDHome, TeamIDAway} {
		for n := 1; n <= 10; n++ {
			playerID := SeedPlayerID(teamID, n)
			members = append(members, roster.SeasonMember{TeamID: teamID, SeasonID: SeasonID2025, PlayerID: playerID})
			players = append(players, roster.Player{ID: playerID, Name: fmt.Sprintf("Speler %s %d", teamID, n)})
		}
	}
	coaches := []roster.Coach{{TeamID: TeamIDHome, UserID: CoachUserID}}
	return members, players, coaches
}
