package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/user"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/korfbal-live/internal/platform/id"
)

func newMatchService(t *testing.T) (*MatchService, *memory.MatchStore) {
	t.Helper()
	store := memory.NewMatchStore(memory.SeedMatches(trackerStart))
	members, players, coaches := memory.SeedRoster()
	svc := NewMatchService(store, memory.NewRosterRepository(members, players, coaches), &id.SequenceGenerator{Prefix: "new-"}, nil)
	svc.now = func() time.Time { return trackerStart }
	return svc, store
}

func TestMatchService_Listings(t *testing.T) {
	t.Parallel()

	svc, _ := newMatchService(t)

	next, err := svc.Next(t.Context(), fanPrincipal, false)
	if err != nil || next == nil || next.ID != memory.MatchIDOpening {
		t.Fatalf("expected opening match next, got %+v err=%v", next, err)
	}
	if next.Score != nil {
		t.Fatalf("expected no score on an upcoming match")
	}

	upcoming, err := svc.Upcoming(t.Context(), memory.TeamIDAway, 0)
	if err != nil || len(upcoming) != 2 {
		t.Fatalf("expected 2 upcoming matches, got %d err=%v", len(upcoming), err)
	}
	if !upcoming[0].StartTime.Before(upcoming[1].StartTime) {
		t.Fatalf("expected ascending start times")
	}

	finished, err := svc.Finished(t.Context(), "", memory.SeasonID2025, 100)
	if err != nil || len(finished) != 1 || finished[0].Score == nil {
		t.Fatalf("expected one finished match with a score, got %+v err=%v", finished, err)
	}

	recent, err := svc.Recent(t.Context())
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no matches in the last week, got %d", len(recent))
	}
}

func TestMatchService_NextFollowed(t *testing.T) {
	t.Parallel()

	svc, _ := newMatchService(t)
	if _, err := svc.Next(t.Context(), user.Principal{}, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	next, err := svc.Next(t.Context(), fanPrincipal, true)
	if err != nil || next != nil {
		t.Fatalf("expected no followed match for a fan, got %+v err=%v", next, err)
	}
	next, err = svc.Next(t.Context(), coachPrincipal, true)
	if err != nil || next == nil || next.HomeTeamID != memory.TeamIDHome {
		t.Fatalf("expected coached team match, got %+v err=%v", next, err)
	}
}

func TestMatchService_CreateMatch(t *testing.T) {
	t.Parallel()

	svc, store := newMatchService(t)
	input := CreateMatchInput{
		HomeTeamID: "team-a",
		AwayTeamID: "team-b",
		SeasonID:   memory.SeasonID2025,
		StartTime:  trackerStart.Add(48 * time.Hour),
	}

	if _, err := svc.CreateMatch(t.Context(), coachPrincipal, input); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a coach, got %v", err)
	}
	same := input
	same.AwayTeamID = same.HomeTeamID
	if _, err := svc.CreateMatch(t.Context(), adminPrincipal, same); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for identical teams, got %v", err)
	}

	view, err := svc.CreateMatch(t.Context(), adminPrincipal, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if view.Status != string(match.StatusUpcoming) || view.Parts != match.DefaultParts {
		t.Fatalf("unexpected match view: %+v", view)
	}

	st, err := store.Load(t.Context(), view.MatchDataID)
	if err != nil {
		t.Fatalf("load created match: %v", err)
	}
	if len(st.Groups) != 6 {
		t.Fatalf("expected six groups, got %d", len(st.Groups))
	}
	for _, teamID := range []string{"team-a", "team-b"} {
		for _, typ := range playergroup.AllTypes {
			if playergroup.IndexByStartingType(st.Groups, teamID, typ) < 0 {
				t.Fatalf("missing %s group for %s", typ, teamID)
			}
		}
	}
}
