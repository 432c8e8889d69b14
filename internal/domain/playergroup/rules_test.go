package playergroup

import (
	"errors"
	"testing"
)

func teamGroups(teamID string) []Group {
	out := make([]Group, 0, len(AllTypes))
	for _, t := range AllTypes {
		out = append(out, Group{ID: teamID + "-" + string(t), TeamID: teamID, StartingType: t, CurrentType: t})
	}
	return out
}

func TestSwapAttackDefence_TogglesBothTeams(t *testing.T) {
	t.Parallel()

	groups := append(teamGroups("home"), teamGroups("away")...)

	changed := SwapAttackDefence(groups)
	if len(changed) != 4 {
		t.Fatalf("expected 4 groups to change, got %d", len(changed))
	}
	for _, team := range []string{"home", "away"} {
		if !IsSwapped(groups, team) {
			t.Fatalf("expected team %s to be swapped", team)
		}
		if idx := IndexByCurrentType(groups, team, TypeReserve); groups[idx].StartingType != TypeReserve {
			t.Fatalf("reserve must never move")
		}
	}

	SwapAttackDefence(groups)
	for _, g := range groups {
		if g.CurrentType != g.StartingType {
			t.Fatalf("double swap must restore starting types, group %s", g.ID)
		}
	}
}

func TestGroupAdd_EnforcesCapacity(t *testing.T) {
	t.Parallel()

	g := Group{StartingType: TypeAanval}
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		if err := g.Add(id); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := g.Add("p4"); err != nil {
		t.Fatalf("re-adding a member must be a no-op, got %v", err)
	}
	if err := g.Add("p5"); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}

	reserve := Group{StartingType: TypeReserve}
	for i := 0; i < MaxReservePlayers; i++ {
		if err := reserve.Add(string(rune('a' + i))); err != nil {
			t.Fatalf("reserve add %d: %v", i, err)
		}
	}
	if err := reserve.Add("overflow"); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected reserve cap, got %v", err)
	}
}

func TestEndRoles_UseStartingType(t *testing.T) {
	t.Parallel()

	groups := teamGroups("home")
	groups[0].PlayerIDs = []string{"p1"}
	groups[1].PlayerIDs = []string{"p2"}
	groups[2].PlayerIDs = []string{"p3"}
	SwapAttackDefence(groups)

	roles := EndRoles(groups)
	if roles["p1"] != RoleAanval || roles["p2"] != RoleVerdediging || roles["p3"] != RoleReserve {
		t.Fatalf("unexpected end roles: %+v", roles)
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()

	if got, ok := ParseType(" verdediging "); !ok || got != TypeVerdediging {
		t.Fatalf("unexpected parse: %q %v", got, ok)
	}
	if _, ok := ParseType("keeper"); ok {
		t.Fatalf("expected unknown type")
	}
}
