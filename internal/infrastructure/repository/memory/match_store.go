package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
)

// MatchStore keeps match state in process. Commands on one match serialise
// on a per-match mutex and run against a private copy that replaces the
// stored state only when fn succeeds.
type MatchStore struct {
	mu        sync.RWMutex
	byMatchID map[string]string
	states    map[string]*match.State
	locks     map[string]*sync.Mutex
	seq       int64
}

func NewMatchStore(states []match.State) *MatchStore {
	s := &MatchStore{
		byMatchID: make(map[string]string, len(states)),
		states:    make(map[string]*match.State, len(states)),
		locks:     make(map[string]*sync.Mutex, len(states)),
	}
	for _, st := range states {
		s.put(st.Clone())
	}
	return s
}

func (s *MatchStore) put(st match.State) {
	for _, e := range st.Events {
		if e.Seq > s.seq {
			s.seq = e.Seq
		}
	}
	s.byMatchID[st.Match.ID] = st.Data.ID
	s.states[st.Data.ID] = &st
	if _, ok := s.locks[st.Data.ID]; !ok {
		s.locks[st.Data.ID] = &sync.Mutex{}
	}
}

func (s *MatchStore) GetByID(_ context.Context, matchID string) (match.Match, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dataID, ok := s.byMatchID[matchID]
	if !ok {
		return match.Match{}, false, nil
	}
	return s.states[dataID].Match, true, nil
}

func (s *MatchStore) GetData(_ context.Context, matchID string) (match.Data, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dataID, ok := s.byMatchID[matchID]
	if !ok {
		return match.Data{}, false, nil
	}
	return s.states[dataID].Data, true, nil
}

func (s *MatchStore) List(_ context.Context, query match.Query) ([]match.Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make(map[string]struct{}, len(query.TeamIDs))
	for _, teamID := range query.TeamIDs {
		teams[teamID] = struct{}{}
	}
	statuses := make(map[match.Status]struct{}, len(query.Statuses))
	for _, status := range query.Statuses {
		statuses[status] = struct{}{}
	}

	out := make([]match.Overview, 0, len(s.states))
	for _, st := range s.states {
		m := st.Match
		if len(teams) > 0 {
			_, home := teams[m.HomeTeamID]
			_, away := teams[m.AwayTeamID]
			if !home && !away {
				continue
			}
		}
		if query.SeasonID != "" && m.SeasonID != query.SeasonID {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[st.Data.Status]; !ok {
				continue
			}
		}
		if !query.From.IsZero() && m.StartTime.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && !m.StartTime.Before(query.To) {
			continue
		}
		out = append(out, match.Overview{Match: m, Data: st.Data})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Match, out[j].Match
		if !a.StartTime.Equal(b.StartTime) {
			if query.Descending {
				return a.StartTime.After(b.StartTime)
			}
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (s *MatchStore) Create(_ context.Context, m match.Match, data match.Data, groups []playergroup.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMatchID[m.ID]; exists {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	st := match.State{Match: m, Data: data}
	for _, g := range groups {
		st.Groups = append(st.Groups, g.Clone())
	}
	s.put(st)
	return nil
}

func (s *MatchStore) Load(_ context.Context, matchDataID string) (match.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[matchDataID]
	if !ok {
		return match.State{}, fmt.Errorf("%w: %s", match.ErrDataNotFound, matchDataID)
	}
	return st.Clone(), nil
}

func (s *MatchStore) WithinMatch(ctx context.Context, matchDataID string, fn func(ctx context.Context, tx match.Tx) error) error {
	s.mu.RLock()
	lock, ok := s.locks[matchDataID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", match.ErrDataNotFound, matchDataID)
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	working := s.states[matchDataID].Clone()
	s.mu.RUnlock()

	tx := &memoryTx{store: s, state: &working}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.states[matchDataID] = tx.state
	if tx.seq > s.seq {
		s.seq = tx.seq
	}
	s.mu.Unlock()

	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

func (s *MatchStore) nextSeq(floor int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if floor > s.seq {
		return floor + 1
	}
	return s.seq + 1
}

type memoryTx struct {
	store *MatchStore
	state *match.State
	seq   int64
	hooks []func()
}

func (tx *memoryTx) State() *match.State {
	return tx.state
}

func (tx *memoryTx) SaveData(_ context.Context, data match.Data) error {
	if err := data.Validate(); err != nil {
		return err
	}
	tx.state.Data = data
	return nil
}

func (tx *memoryTx) SavePart(_ context.Context, part match.Part) error {
	tx.state.PutPart(part)
	return nil
}

func (tx *memoryTx) SaveGroup(_ context.Context, group playergroup.Group) error {
	tx.state.PutGroup(group.Clone())
	return nil
}

func (tx *memoryTx) AppendEvent(_ context.Context, e event.Event) (event.Event, error) {
	if err := e.Validate(); err != nil {
		return event.Event{}, err
	}
	tx.seq = tx.store.nextSeq(tx.seq)
	e.Seq = tx.seq
	tx.state.PutEvent(e.Clone())
	return e, nil
}

func (tx *memoryTx) UpdateEvent(_ context.Context, e event.Event) error {
	if _, ok := event.FindByID(tx.state.Events, e.ID); !ok {
		return fmt.Errorf("%w: %s", match.ErrEventNotFound, e.ID)
	}
	tx.state.PutEvent(e.Clone())
	return nil
}

func (tx *memoryTx) DeleteEvent(_ context.Context, eventID string) error {
	if !tx.state.RemoveEvent(eventID) {
		return fmt.Errorf("%w: %s", match.ErrEventNotFound, eventID)
	}
	return nil
}

func (tx *memoryTx) UpsertMatchPlayers(_ context.Context, players []roster.MatchPlayer) error {
	tx.state.PutPlayers(players)
	return nil
}

func (tx *memoryTx) AfterCommit(fn func()) {
	tx.hooks = append(tx.hooks, fn)
}
