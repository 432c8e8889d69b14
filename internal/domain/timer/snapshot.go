package timer

import (
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
)

type Type string

const (
	TypeDeactive Type = "deactive"
	TypeActive   Type = "active"
	TypePause    Type = "pause"
)

// Snapshot is the authoritative clock state at one instant.
type Snapshot struct {
	Type              Type
	PartNumber        int
	PartStart         time.Time
	PauseStartedAt    time.Time
	PartLength        time.Duration
	PauseElapsedTotal time.Duration
	Elapsed           time.Duration
	At                time.Time
}

func (s Snapshot) Running() bool {
	return s.Type == TypeActive
}

// Compute derives the snapshot at instant at. Closed pauses of the active part
// count towards PauseElapsedTotal; a running pause freezes Elapsed at its
// start.
func Compute(data match.Data, parts []match.Part, events []event.Event, at time.Time) Snapshot {
	at = at.UTC()
	snap := Snapshot{Type: TypeDeactive, At: at}

	var active *match.Part
	for i := range parts {
		if parts[i].Active {
			active = &parts[i]
			break
		}
	}
	if active == nil {
		return snap
	}

	snap.PartNumber = active.PartNumber
	snap.PartStart = active.StartTime.UTC()
	snap.PartLength = time.Duration(data.PartLengthSeconds) * time.Second

	var running *event.Event
	for i := range events {
		e := events[i]
		if e.Kind != event.KindPause || e.Pause == nil {
			continue
		}
		if e.Pause.Active {
			running = &events[i]
			continue
		}
		if e.PartID == active.ID {
			snap.PauseElapsedTotal += e.Pause.Length(e.Time)
		}
	}

	elapsed := at.Sub(active.StartTime) - snap.PauseElapsedTotal
	if running != nil {
		snap.Type = TypePause
		snap.PauseStartedAt = running.Time.UTC()
		if d := at.Sub(running.Time); d > 0 {
			elapsed -= d
		}
	} else {
		snap.Type = TypeActive
	}
	if elapsed < 0 {
		elapsed = 0
	}
	snap.Elapsed = elapsed
	return snap
}
