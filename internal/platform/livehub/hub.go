// Package livehub fans live match changes out to viewers. One topic exists per
// (match, role); publishes are ordered per topic and never block on slow
// subscribers.
package livehub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
)

var ErrClosed = errors.New("live hub is closed")

type Role string

const (
	RoleDetail  Role = "detail"
	RoleTracker Role = "tracker"
	RoleTimer   Role = "timer"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleDetail, RoleTracker, RoleTimer:
		return Role(raw), true
	default:
		return "", false
	}
}

type Kind string

const (
	KindStateChanged        Kind = "state_changed"
	KindTimerUpdate         Kind = "timer_update"
	KindPlayerGroupsChanged Kind = "player_groups_changed"
)

type Key struct {
	MatchID string
	Role    Role
}

// Message is one change notification. Seq increases by one per publish on the
// same key.
type Message struct {
	MatchID string    `json:"match_id"`
	Role    Role      `json:"role"`
	Kind    Kind      `json:"kind"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Observer receives hub lifecycle signals, typically for metrics.
type Observer interface {
	Published(role Role, kind Kind)
	SubscriberAdded(role Role)
	SubscriberRemoved(role Role, dropped bool)
}

type nopObserver struct{}

func (nopObserver) Published(Role, Kind)         {}
func (nopObserver) SubscriberAdded(Role)         {}
func (nopObserver) SubscriberRemoved(Role, bool) {}

type topic struct {
	seq           uint64
	lastChangedAt time.Time
	subs          map[*Subscription]struct{}
	changed       chan struct{}
}

type Hub struct {
	mu     sync.Mutex
	topics map[Key]*topic
	closed bool

	clock      clockwork.Clock
	bufferSize int
	observer   Observer
	logger     *logging.Logger
}

type Option func(*Hub)

func WithClock(clock clockwork.Clock) Option {
	return func(h *Hub) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithBufferSize sets the per-subscriber queue length. A subscriber whose
// queue is full when a message arrives is dropped.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(h *Hub) {
		if observer != nil {
			h.observer = observer
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		topics:     make(map[Key]*topic),
		clock:      clockwork.NewRealClock(),
		bufferSize: 16,
		observer:   nopObserver{},
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("livehub")
	return h
}

func (h *Hub) topicLocked(key Key) *topic {
	t, ok := h.topics[key]
	if !ok {
		t = &topic{
			subs:    make(map[*Subscription]struct{}),
			changed: make(chan struct{}),
		}
		h.topics[key] = t
	}
	return t
}

// Publish records a change on key and delivers it to every subscriber.
// Publishing on a closed hub is a no-op that returns the zero Message.
func (h *Hub) Publish(key Key, kind Kind, payload any) Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Message{}
	}

	t := h.topicLocked(key)
	t.seq++
	now := h.clock.Now().UTC()
	t.lastChangedAt = now
	msg := Message{
		MatchID: key.MatchID,
		Role:    key.Role,
		Kind:    kind,
		Seq:     t.seq,
		At:      now,
		Payload: payload,
	}

	for sub := range t.subs {
		select {
		case sub.ch <- msg:
		default:
			delete(t.subs, sub)
			sub.closeLocked()
			h.observer.SubscriberRemoved(key.Role, true)
			h.logger.Warn("dropping slow subscriber", "match_id", key.MatchID, "role", string(key.Role))
		}
	}

	close(t.changed)
	t.changed = make(chan struct{})
	h.observer.Published(key.Role, kind)
	return msg
}

// Subscribe registers a new subscriber on key. Close the subscription when
// done; a dropped subscription has its channel closed by the hub.
func (h *Hub) Subscribe(key Key) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	ch := make(chan Message, h.bufferSize)
	sub := &Subscription{C: ch, ch: ch, key: key, hub: h}
	h.topicLocked(key).subs[sub] = struct{}{}
	h.observer.SubscriberAdded(key.Role)
	return sub, nil
}

// Seq returns the latest sequence published on key, 0 if none.
func (h *Hub) Seq(key Key) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[key]; ok {
		return t.seq
	}
	return 0
}

func (h *Hub) LastChangedAt(key Key) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[key]
	if !ok || t.seq == 0 {
		return time.Time{}, false
	}
	return t.lastChangedAt, true
}

// Wait blocks until a message with sequence greater than afterSeq is
// published on key, the timeout elapses or ctx ends. It reports whether a
// change happened and the sequence observed.
func (h *Hub) Wait(ctx context.Context, key Key, afterSeq uint64, timeout time.Duration) (bool, uint64, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false, 0, ErrClosed
	}
	t := h.topicLocked(key)
	if t.seq > afterSeq {
		seq := t.seq
		h.mu.Unlock()
		return true, seq, nil
	}
	changed := t.changed
	h.mu.Unlock()

	if timeout <= 0 {
		return false, afterSeq, nil
	}

	timer := h.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-changed:
		return true, h.Seq(key), nil
	case <-timer.Chan():
		return false, afterSeq, nil
	case <-ctx.Done():
		return false, afterSeq, ctx.Err()
	}
}

// SubscriberCount is the number of live subscriptions on key.
func (h *Hub) SubscriberCount(key Key) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[key]; ok {
		return len(t.subs)
	}
	return 0
}

// Close drops every subscriber and wakes all waiters.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for key, t := range h.topics {
		for sub := range t.subs {
			sub.closeLocked()
			h.observer.SubscriberRemoved(key.Role, false)
		}
		t.subs = nil
		close(t.changed)
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[sub.key]
	if !ok {
		return
	}
	if _, ok := t.subs[sub]; !ok {
		return
	}
	delete(t.subs, sub)
	sub.closeLocked()
	h.observer.SubscriberRemoved(sub.key.Role, false)
}

type Subscription struct {
	C <-chan Message

	ch     chan Message
	key    Key
	hub    *Hub
	closed bool
}

func (s *Subscription) Key() Key {
	return s.key
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// closeLocked must run with the hub lock held.
func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
