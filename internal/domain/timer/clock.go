package timer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
)

const (
	LabelHalfTime     = "Rust"
	LabelIntermission = "Pauze"
)

type span struct {
	start time.Time
	end   *time.Time
}

// Clock converts absolute event times into match minutes.
type Clock struct {
	partLength time.Duration
	parts      []match.Part
	byID       map[string]int
	pauses     map[string][]span
}

func NewClock(data match.Data, parts []match.Part, events []event.Event) *Clock {
	c := &Clock{
		partLength: time.Duration(data.PartLengthSeconds) * time.Second,
		parts:      append([]match.Part(nil), parts...),
		byID:       make(map[string]int, len(parts)),
		pauses:     make(map[string][]span),
	}
	sort.SliceStable(c.parts, func(i, j int) bool { return c.parts[i].PartNumber < c.parts[j].PartNumber })
	for i, p := range c.parts {
		c.byID[p.ID] = i
	}
	for _, e := range events {
		if e.Kind != event.KindPause || e.Pause == nil || e.PartID == "" {
			continue
		}
		c.pauses[e.PartID] = append(c.pauses[e.PartID], span{start: e.Time, end: e.Pause.EndTime})
	}
	return c
}

func (c *Clock) part(partID string) (match.Part, bool) {
	if partID == "" {
		return match.Part{}, false
	}
	i, ok := c.byID[partID]
	if !ok {
		return match.Part{}, false
	}
	return c.parts[i], true
}

// pausedBefore sums the pause time of part that falls inside
// [part start, at].
func (c *Clock) pausedBefore(p match.Part, at time.Time) time.Duration {
	var total time.Duration
	for _, s := range c.pauses[p.ID] {
		from := s.start
		if from.Before(p.StartTime) {
			from = p.StartTime
		}
		to := at
		if s.end != nil && s.end.Before(at) {
			to = *s.end
		}
		if to.After(from) {
			total += to.Sub(from)
		}
	}
	return total
}

// lastEndedBefore returns the part that most recently ended at or before at.
func (c *Clock) lastEndedBefore(at time.Time) (match.Part, bool) {
	var (
		best  match.Part
		found bool
	)
	for _, p := range c.parts {
		if p.EndTime == nil || p.EndTime.After(at) {
			continue
		}
		if !found || p.EndTime.After(*best.EndTime) {
			best, found = p, true
		}
	}
	return best, found
}

func (c *Clock) minuteIn(p match.Part, at time.Time) float64 {
	return c.offsetIn(p, at).Minutes()
}

// offsetIn is the match time of at, counted from the first kickoff.
func (c *Clock) offsetIn(p match.Part, at time.Time) time.Duration {
	return at.Sub(p.StartTime) + time.Duration(p.PartNumber-1)*c.partLength - c.pausedBefore(p, at)
}

// Minute is the unrounded match minute of an event. Events outside any part
// sit at the end minute of the part that ended before them.
func (c *Clock) Minute(at time.Time, partID string) float64 {
	if p, ok := c.part(partID); ok {
		return math.Max(0, c.minuteIn(p, at))
	}
	p, ok := c.lastEndedBefore(at)
	if !ok {
		return 0
	}
	return math.Max(0, c.minuteIn(p, *p.EndTime))
}

// Label renders the display minute, "30+2" style once a part overruns and
// "Rust" or "Pauze" for events between parts.
func (c *Clock) Label(at time.Time, partID string) string {
	p, ok := c.part(partID)
	if !ok {
		if last, ended := c.lastEndedBefore(at); ended && last.PartNumber == 1 {
			return LabelHalfTime
		}
		return LabelIntermission
	}

	offset := max(c.offsetIn(p, at), 0)
	base := int(math.Round(offset.Minutes()))
	partEnd := time.Duration(p.PartNumber) * c.partLength
	if offset <= partEnd {
		return fmt.Sprintf("%d", base)
	}
	// The overrun is anchored on the rounded planned end so both halves of
	// the label add up to base.
	end := int(math.Round(partEnd.Minutes()))
	if overflow := base - end; overflow > 0 {
		return fmt.Sprintf("%d+%d", end, overflow)
	}
	return fmt.Sprintf("%d", base)
}

// PlannedMinutes is the sum of all planned part lengths.
func PlannedMinutes(data match.Data) float64 {
	return float64(data.Parts*data.PartLengthSeconds) / 60
}
