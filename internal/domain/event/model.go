package event

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Kind string

const (
	KindShot         Kind = "shot"
	KindSubstitution Kind = "substitution"
	KindPause        Kind = "pause"
	KindAttack       Kind = "attack"
	KindTimeout      Kind = "timeout"
)

var ErrInvalidEvent = errors.New("invalid match event")

// Event is one entry of a match's append-only event log. Exactly one payload
// pointer matching Kind is set.
type Event struct {
	ID          string
	Seq         int64
	MatchDataID string
	// PartID is empty for events recorded between parts.
	PartID string
	Kind   Kind
	Time   time.Time

	Shot         *Shot
	Substitution *Substitution
	Pause        *Pause
	Attack       *Attack
	Timeout      *Timeout
}

// Shot is an attempt on the korf. ForTeam is a tracker UI tag; TeamID is the
// team recorded on the row.
type Shot struct {
	PlayerID string
	TeamID   string
	ForTeam  bool
	Scored   bool
	ShotType string
}

// Substitution moves PlayerOutID to the reserve and PlayerInID into GroupID.
// Both players empty marks an opponent substitution.
type Substitution struct {
	GroupID     string
	PlayerInID  string
	PlayerOutID string
}

func (s Substitution) IsMarker() bool {
	return s.PlayerInID == "" && s.PlayerOutID == ""
}

// Pause stops the clock inside a part. Event.Time is the pause start.
type Pause struct {
	EndTime *time.Time
	Active  bool
}

// Length is zero while the pause is active.
func (p Pause) Length(start time.Time) time.Duration {
	if p.Active || p.EndTime == nil {
		return 0
	}
	if d := p.EndTime.Sub(start); d > 0 {
		return d
	}
	return 0
}

type Attack struct {
	TeamID string
}

// Timeout is attributed to TeamID and backed by the pause PauseID.
type Timeout struct {
	TeamID  string
	PauseID string
	// OwnsPause is set when the timeout opened PauseID itself.
	OwnsPause bool
}

func (e Event) IsGoal() bool {
	return e.Kind == KindShot && e.Shot != nil && e.Shot.Scored
}

func (e Event) IsActivePause() bool {
	return e.Kind == KindPause && e.Pause != nil && e.Pause.Active
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.MatchDataID) == "" {
		return fmt.Errorf("%w: match_data_id is required", ErrInvalidEvent)
	}
	if e.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrInvalidEvent)
	}

	var ok bool
	switch e.Kind {
	case KindShot:
		ok = e.Shot != nil && e.Shot.TeamID != ""
	case KindSubstitution:
		ok = e.Substitution != nil && e.Substitution.GroupID != ""
	case KindPause:
		ok = e.Pause != nil && (e.Pause.Active || e.Pause.EndTime != nil)
		if ok && e.Pause.EndTime != nil && e.Pause.EndTime.Before(e.Time) {
			return fmt.Errorf("%w: pause ends before it starts", ErrInvalidEvent)
		}
	case KindAttack:
		ok = e.Attack != nil && e.Attack.TeamID != ""
	case KindTimeout:
		ok = e.Timeout != nil && e.Timeout.TeamID != "" && e.Timeout.PauseID != ""
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: %s payload is incomplete", ErrInvalidEvent, e.Kind)
	}
	if e.Kind != KindSubstitution && e.PartID == "" {
		return fmt.Errorf("%w: %s requires a match part", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// Less orders by time with the store sequence as tiebreaker.
func Less(a, b Event) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.Seq < b.Seq
}

func Sort(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return Less(events[i], events[j]) })
}

// Last returns the latest event by (time, seq).
func Last(events []Event) (Event, bool) {
	if len(events) == 0 {
		return Event{}, false
	}
	last := events[0]
	for _, e := range events[1:] {
		if Less(last, e) {
			last = e
		}
	}
	return last, true
}

// Filter selects events by kind and a half-open time range. Zero values are
// unbounded.
type Filter struct {
	Kinds []Kind
	From  time.Time
	To    time.Time
}

func (f Filter) Match(e Event) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == e.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.Time.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Time.Before(f.To) {
		return false
	}
	return true
}

// Select returns the matching events in (time, seq) order.
func Select(events []Event, f Filter) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	Sort(out)
	return out
}

func ScoredGoals(events []Event) int {
	n := 0
	for _, e := range events {
		if e.IsGoal() {
			n++
		}
	}
	return n
}

// ActivePause returns the single active pause, if any.
func ActivePause(events []Event) (Event, bool) {
	for _, e := range events {
		if e.IsActivePause() {
			return e, true
		}
	}
	return Event{}, false
}

func FindByID(events []Event, id string) (Event, bool) {
	for _, e := range events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// Clone deep-copies the payload pointers.
func (e Event) Clone() Event {
	out := e
	if e.Shot != nil {
		v := *e.Shot
		out.Shot = &v
	}
	if e.Substitution != nil {
		v := *e.Substitution
		out.Substitution = &v
	}
	if e.Pause != nil {
		v := *e.Pause
		if e.Pause.EndTime != nil {
			end := *e.Pause.EndTime
			v.EndTime = &end
		}
		out.Pause = &v
	}
	if e.Attack != nil {
		v := *e.Attack
		out.Attack = &v
	}
	if e.Timeout != nil {
		v := *e.Timeout
		out.Timeout = &v
	}
	return out
}
