package usecase

import (
	"math"
	"sort"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/minutes"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/timeline"
	"github.com/riskibarqy/korfbal-live/internal/domain/timer"
)

// analytics is the match state projected onto the minute axis.
type analytics struct {
	Timeline    timeline.Timeline
	Shots       []impact.Shot
	PlayerTeams map[string]string
}

func buildAnalytics(st *match.State) analytics {
	clock := timer.NewClock(st.Data, st.Parts, st.Events)
	playerTeams := playergroup.PlayerTeams(st.Groups)
	for _, p := range st.Players {
		if _, ok := playerTeams[p.PlayerID]; !ok {
			playerTeams[p.PlayerID] = p.TeamID
		}
	}

	known := make(map[string]struct{}, len(playerTeams))
	for playerID := range playerTeams {
		known[playerID] = struct{}{}
	}

	var (
		shots        []impact.Shot
		subs         []timeline.Sub
		eventMinutes []float64
	)
	for _, e := range st.Events {
		switch e.Kind {
		case event.KindShot:
			m := clock.Minute(e.Time, e.PartID)
			eventMinutes = append(eventMinutes, m)
			shots = append(shots, impact.Shot{
				ID:       e.ID,
				Seq:      e.Seq,
				Minute:   m,
				PlayerID: e.Shot.PlayerID,
				TeamID:   e.Shot.TeamID,
				ForTeam:  e.Shot.ForTeam,
				Scored:   e.Shot.Scored,
				ShotType: e.Shot.ShotType,
			})
			if e.Shot.PlayerID != "" {
				known[e.Shot.PlayerID] = struct{}{}
			}
		case event.KindSubstitution:
			if e.Substitution.IsMarker() {
				continue
			}
			m := clock.Minute(e.Time, e.PartID)
			eventMinutes = append(eventMinutes, m)
			role := playergroup.RoleUnknown
			if idx := playergroup.IndexByID(st.Groups, e.Substitution.GroupID); idx >= 0 {
				role = st.Groups[idx].StartingType.Role()
			}
			subs = append(subs, timeline.Sub{
				Minute:      math.Floor(m),
				Seq:         e.Seq,
				GroupRole:   role,
				PlayerInID:  e.Substitution.PlayerInID,
				PlayerOutID: e.Substitution.PlayerOutID,
			})
			known[e.Substitution.PlayerInID] = struct{}{}
			known[e.Substitution.PlayerOutID] = struct{}{}
		}
	}

	playerIDs := make([]string, 0, len(known))
	for playerID := range known {
		playerIDs = append(playerIDs, playerID)
	}
	sort.Strings(playerIDs)

	tl := timeline.Build(timeline.Input{
		PlayerIDs:       playerIDs,
		EndRoles:        playergroup.EndRoles(st.Groups),
		Subs:            subs,
		MatchEndMinutes: minutes.MatchEnd(eventMinutes, timer.PlannedMinutes(st.Data)),
	})
	return analytics{Timeline: tl, Shots: shots, PlayerTeams: playerTeams}
}
