package event

import (
	"errors"
	"testing"
	"time"
)

func TestLast_UsesSeqAsTiebreaker(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "b", Seq: 2, Time: at},
		{ID: "a", Seq: 1, Time: at},
		{ID: "c", Seq: 3, Time: at.Add(-time.Minute)},
	}

	last, ok := Last(events)
	if !ok || last.ID != "b" {
		t.Fatalf("expected b as last event, got %+v", last)
	}

	Sort(events)
	if events[0].ID != "c" || events[1].ID != "a" || events[2].ID != "b" {
		t.Fatalf("unexpected order: %s %s %s", events[0].ID, events[1].ID, events[2].ID)
	}
}

func TestSelect_FiltersKindAndRange(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "shot-1", Kind: KindShot, Time: t0},
		{ID: "sub-1", Kind: KindSubstitution, Time: t0.Add(time.Minute)},
		{ID: "shot-2", Kind: KindShot, Time: t0.Add(2 * time.Minute)},
		{ID: "shot-3", Kind: KindShot, Time: t0.Add(3 * time.Minute)},
	}

	got := Select(events, Filter{
		Kinds: []Kind{KindShot},
		From:  t0.Add(time.Minute),
		To:    t0.Add(3 * time.Minute),
	})
	if len(got) != 1 || got[0].ID != "shot-2" {
		t.Fatalf("unexpected selection: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	before := at.Add(-time.Second)

	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{
			name:  "valid shot",
			event: Event{MatchDataID: "md", PartID: "p1", Kind: KindShot, Time: at, Shot: &Shot{TeamID: "home"}},
		},
		{
			name:  "substitution between parts",
			event: Event{MatchDataID: "md", Kind: KindSubstitution, Time: at, Substitution: &Substitution{GroupID: "g"}},
		},
		{
			name:    "shot without part",
			event:   Event{MatchDataID: "md", Kind: KindShot, Time: at, Shot: &Shot{TeamID: "home"}},
			wantErr: true,
		},
		{
			name:    "pause ending before start",
			event:   Event{MatchDataID: "md", PartID: "p1", Kind: KindPause, Time: at, Pause: &Pause{EndTime: &before}},
			wantErr: true,
		},
		{
			name:    "missing payload",
			event:   Event{MatchDataID: "md", PartID: "p1", Kind: KindAttack, Time: at},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			event:   Event{MatchDataID: "md", PartID: "p1", Kind: "penalty", Time: at},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.event.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidEvent) {
					t.Fatalf("expected ErrInvalidEvent, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPauseLength(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	if got := (Pause{Active: true}).Length(start); got != 0 {
		t.Fatalf("active pause length must be zero, got %s", got)
	}
	if got := (Pause{EndTime: &end}).Length(start); got != 90*time.Second {
		t.Fatalf("unexpected closed pause length: %s", got)
	}
}

func TestClone_DoesNotShareEndTime(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	original := Event{Kind: KindPause, Pause: &Pause{EndTime: &end}}
	clone := original.Clone()
	*clone.Pause.EndTime = end.Add(time.Hour)

	if !original.Pause.EndTime.Equal(end) {
		t.Fatalf("clone mutated original end time")
	}
}
