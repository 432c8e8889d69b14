package cache

import (
	"context"
	"testing"

	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	rostermock "github.com/riskibarqy/korfbal-live/internal/mocks/domain/roster"
	"github.com/stretchr/testify/mock"
)

func TestRosterRepository_CachesReads(t *testing.T) {
	t.Parallel()

	next := rostermock.NewRepository(t)
	next.On("ListSeasonMembers", mock.Anything, "s-1", []string{"t-2", "t-1"}).
		Return([]roster.SeasonMember{{TeamID: "t-1", SeasonID: "s-1", PlayerID: "p-1"}}, nil).Once()
	next.On("ListCoachTeams", mock.Anything, "u-1").Return([]string{"t-1"}, nil).Once()

	repo := NewRosterRepository(next, 0)
	ctx := context.Background()

	for range 2 {
		members, err := repo.ListSeasonMembers(ctx, "s-1", []string{"t-2", "t-1"})
		if err != nil {
			t.Fatalf("list members: %v", err)
		}
		if len(members) != 1 || members[0].PlayerID != "p-1" {
			t.Fatalf("unexpected members: %+v", members)
		}
		members[0].PlayerID = "mutated"
	}

	// Team order does not change the key.
	members, err := repo.ListSeasonMembers(ctx, "s-1", []string{"t-1", "t-2"})
	if err != nil || members[0].PlayerID != "p-1" {
		t.Fatalf("expected cached members, got %+v err=%v", members, err)
	}

	for _, tc := range []struct {
		team string
		want bool
	}{{team: "t-1", want: true}, {team: "t-2", want: false}} {
		ok, err := repo.IsCoach(ctx, "u-1", tc.team)
		if err != nil {
			t.Fatalf("is coach: %v", err)
		}
		if ok != tc.want {
			t.Fatalf("IsCoach(%s) = %v, want %v", tc.team, ok, tc.want)
		}
	}
}

func TestRosterRepository_InvalidateCoach(t *testing.T) {
	t.Parallel()

	next := rostermock.NewRepository(t)
	next.On("ListCoachTeams", mock.Anything, "u-1").Return([]string{"t-1"}, nil).Twice()

	repo := NewRosterRepository(next, 0)
	ctx := context.Background()
	if _, err := repo.ListCoachTeams(ctx, "u-1"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	repo.InvalidateCoach(ctx, "u-1")
	if _, err := repo.ListCoachTeams(ctx, "u-1"); err != nil {
		t.Fatalf("second load: %v", err)
	}
}
