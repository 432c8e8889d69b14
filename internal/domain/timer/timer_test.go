package timer

import (
	"testing"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
)

var kickoff = time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func baseData() match.Data {
	return match.Data{ID: "md", Parts: 2, CurrentPart: 1, PartLengthSeconds: 1800}
}

func TestCompute_States(t *testing.T) {
	t.Parallel()

	part := match.Part{ID: "p1", PartNumber: 1, StartTime: kickoff, Active: true}
	closed := event.Event{ID: "pz1", Kind: event.KindPause, PartID: "p1", Time: kickoff.Add(5 * time.Minute),
		Pause: &event.Pause{EndTime: ptr(kickoff.Add(6 * time.Minute))}}
	running := event.Event{ID: "pz2", Kind: event.KindPause, PartID: "p1", Time: kickoff.Add(10 * time.Minute),
		Pause: &event.Pause{Active: true}}

	tests := []struct {
		name        string
		parts       []match.Part
		events      []event.Event
		at          time.Time
		wantType    Type
		wantElapsed time.Duration
	}{
		{name: "no active part", at: kickoff, wantType: TypeDeactive},
		{
			name:        "running with closed pause",
			parts:       []match.Part{part},
			events:      []event.Event{closed},
			at:          kickoff.Add(8 * time.Minute),
			wantType:    TypeActive,
			wantElapsed: 7 * time.Minute,
		},
		{
			name:        "paused freezes elapsed",
			parts:       []match.Part{part},
			events:      []event.Event{closed, running},
			at:          kickoff.Add(15 * time.Minute),
			wantType:    TypePause,
			wantElapsed: 9 * time.Minute,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			snap := Compute(baseData(), tc.parts, tc.events, tc.at)
			if snap.Type != tc.wantType {
				t.Fatalf("type = %s, want %s", snap.Type, tc.wantType)
			}
			if snap.Elapsed != tc.wantElapsed {
				t.Fatalf("elapsed = %s, want %s", snap.Elapsed, tc.wantElapsed)
			}
		})
	}
}

func TestClock_MinuteAndLabels(t *testing.T) {
	t.Parallel()

	p1End := kickoff.Add(33 * time.Minute)
	p2Start := kickoff.Add(45 * time.Minute)
	parts := []match.Part{
		{ID: "p1", PartNumber: 1, StartTime: kickoff, EndTime: &p1End},
		{ID: "p2", PartNumber: 2, StartTime: p2Start, Active: true},
	}
	events := []event.Event{
		{ID: "pz", Kind: event.KindPause, PartID: "p1", Time: kickoff.Add(10 * time.Minute),
			Pause: &event.Pause{EndTime: ptr(kickoff.Add(12 * time.Minute))}},
	}
	clock := NewClock(baseData(), parts, events)

	tests := []struct {
		name       string
		at         time.Time
		partID     string
		wantMinute float64
		wantLabel  string
	}{
		{name: "before pause", at: kickoff.Add(9 * time.Minute), partID: "p1", wantMinute: 9, wantLabel: "9"},
		{name: "after pause", at: kickoff.Add(20 * time.Minute), partID: "p1", wantMinute: 18, wantLabel: "18"},
		{name: "stoppage time", at: kickoff.Add(32*time.Minute + 40*time.Second), partID: "p1", wantMinute: 30 + 40.0/60, wantLabel: "30+1"},
		{name: "second part", at: p2Start.Add(5 * time.Minute), partID: "p2", wantMinute: 35, wantLabel: "35"},
		{name: "half time", at: kickoff.Add(40 * time.Minute), wantMinute: 31, wantLabel: LabelHalfTime},
		{name: "unknown part falls back", at: kickoff.Add(40 * time.Minute), partID: "missing", wantMinute: 31, wantLabel: LabelHalfTime},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := clock.Minute(tc.at, tc.partID); !approx(got, tc.wantMinute) {
				t.Fatalf("minute = %v, want %v", got, tc.wantMinute)
			}
			if got := clock.Label(tc.at, tc.partID); got != tc.wantLabel {
				t.Fatalf("label = %q, want %q", got, tc.wantLabel)
			}
		})
	}
}

func TestClock_LabelWithPartialMinutePartLength(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.PartLengthSeconds = 1530
	p1 := match.Part{ID: "p1", PartNumber: 1, StartTime: kickoff, Active: true}
	clock := NewClock(data, []match.Part{p1}, nil)

	tests := []struct {
		at   time.Duration
		want string
	}{
		{at: 25 * time.Minute, want: "25"},
		{at: 25*time.Minute + 30*time.Second, want: "26"},
		{at: 25*time.Minute + 42*time.Second, want: "26"},
		{at: 28 * time.Minute, want: "26+2"},
	}
	for _, tc := range tests {
		if got := clock.Label(kickoff.Add(tc.at), "p1"); got != tc.want {
			t.Fatalf("label at %s = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestClock_IntermissionAfterLaterPart(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.Parts = 4
	p1End := kickoff.Add(30 * time.Minute)
	p2Start := kickoff.Add(35 * time.Minute)
	p2End := kickoff.Add(65 * time.Minute)
	parts := []match.Part{
		{ID: "p1", PartNumber: 1, StartTime: kickoff, EndTime: &p1End},
		{ID: "p2", PartNumber: 2, StartTime: p2Start, EndTime: &p2End},
	}
	clock := NewClock(data, parts, nil)

	if got := clock.Label(kickoff.Add(70*time.Minute), ""); got != LabelIntermission {
		t.Fatalf("expected %q after part 2, got %q", LabelIntermission, got)
	}
	if got := clock.Minute(kickoff.Add(70*time.Minute), ""); !approx(got, 60) {
		t.Fatalf("expected minute 60 after part 2, got %v", got)
	}
}

func TestPlannedMinutes(t *testing.T) {
	t.Parallel()

	if got := PlannedMinutes(baseData()); got != 60 {
		t.Fatalf("expected 60 planned minutes, got %v", got)
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
