package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/memory"
)

type mapCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	deletes int
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.values, key)
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []string
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, task, _ string, _ time.Duration, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

type analyticsFixture struct {
	*trackerFixture
	impacts     *memory.ImpactRepository
	minutesRepo *memory.MinutesRepository
	cache       *mapCache
	enqueuer    *recordingEnqueuer
	dispatches  *memory.DispatchRepository
	projections *ProjectionService
	derivation  *DerivationService
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()

	f := &analyticsFixture{
		trackerFixture: newTrackerFixture(t),
		impacts:        memory.NewImpactRepository(),
		minutesRepo:    memory.NewMinutesRepository(),
		cache:          newMapCache(),
		enqueuer:       &recordingEnqueuer{},
		dispatches:     memory.NewDispatchRepository(),
	}
	members, players, coaches := memory.SeedRoster()
	rosters := memory.NewRosterRepository(members, players, coaches)

	f.projections = NewProjectionService(f.store, f.store, rosters, f.impacts, f.minutesRepo, f.cache, f.enqueuer, ProjectionConfig{}, nil)
	f.projections.now = f.clock.Now
	f.derivation = NewDerivationService(f.store, f.impacts, f.minutesRepo, f.cache, f.hub, f.dispatches, DerivationConfig{}, nil)
	f.derivation.now = f.clock.Now
	return f
}

// playOpening runs a short first half: a home goal, a miss, a goal conceded
// by a home defender, a substitution, an attack and a timeout.
func (f *analyticsFixture) playOpening(t *testing.T) {
	t.Helper()
	f.apply(t, CommandInput{Command: CommandStartPause})
	f.apply(t, CommandInput{Command: CommandGoalReg, PlayerID: homePlayer(1), GoalType: "Afstandsschot"})
	f.apply(t, CommandInput{Command: CommandShotReg, PlayerID: homePlayer(2)})
	f.apply(t, CommandInput{Command: CommandGoalReg, PlayerID: homePlayer(5), GoalType: "Strafworp", ForTeam: boolPtr(false)})
	f.apply(t, CommandInput{Command: CommandSubstituteReg, PlayerOutID: homePlayer(1), PlayerInID: homePlayer(9)})
	f.apply(t, CommandInput{Command: CommandNewAttack})
	f.apply(t, CommandInput{Command: CommandTimeout})
	f.apply(t, CommandInput{Command: CommandStartPause})
}

func TestProjectionService_EventsSkipsMissesAttacksAndTimeoutPauses(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	f.playOpening(t)

	view, err := f.projections.Events(t.Context(), memory.MatchIDOpening)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if view.HomeTeamID != memory.TeamIDHome || len(view.MatchParts) != 1 {
		t.Fatalf("unexpected header: home=%s parts=%d", view.HomeTeamID, len(view.MatchParts))
	}

	want := []string{EventTypeGoal, EventTypeGoal, EventTypeSubstitute, EventTypeIntermission}
	if len(view.Events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(view.Events), view.Events)
	}
	for i, typ := range want {
		if view.Events[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, view.Events[i].Type)
		}
	}
	timeout := view.Events[3]
	if !timeout.Timeout || timeout.Active == nil || *timeout.Active {
		t.Fatalf("expected closed timeout intermission, got %+v", timeout)
	}
	if view.Events[1].TeamID != memory.TeamIDAway {
		t.Fatalf("expected conceded goal to count for away, got %s", view.Events[1].TeamID)
	}
}

func TestProjectionService_StatsTalliesShotsPerPlayer(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	f.playOpening(t)

	stats, err := f.projections.Stats(t.Context(), memory.MatchIDOpening)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Score.Home != 1 || stats.Score.Away != 1 {
		t.Fatalf("unexpected score: %+v", stats.Score)
	}
	if len(stats.GoalTypes) != 2 {
		t.Fatalf("expected 2 goal types, got %+v", stats.GoalTypes)
	}
	if gt := stats.GoalTypes[0]; gt.GoalType != "Afstandsschot" || gt.Home != 1 || gt.Away != 0 {
		t.Fatalf("unexpected first goal type: %+v", gt)
	}
	if gt := stats.GoalTypes[1]; gt.GoalType != "Strafworp" || gt.Home != 0 || gt.Away != 1 {
		t.Fatalf("unexpected second goal type: %+v", gt)
	}

	lines := make(map[string]PlayerStatLine, len(stats.Players))
	for _, l := range stats.Players {
		lines[l.PlayerID] = l
	}
	if len(lines) != 20 {
		t.Fatalf("expected 20 player lines, got %d", len(lines))
	}
	scorer := lines[homePlayer(1)]
	if scorer.ShotsFor != 1 || scorer.GoalsFor != 1 || scorer.TeamSide != "home" || scorer.Name == "" {
		t.Fatalf("unexpected scorer line: %+v", scorer)
	}
	if miss := lines[homePlayer(2)]; miss.ShotsFor != 1 || miss.GoalsFor != 0 {
		t.Fatalf("unexpected miss line: %+v", miss)
	}
	defender := lines[homePlayer(5)]
	if defender.ShotsAgainst != 1 || defender.GoalsAgainst != 1 || defender.TeamSide != "home" {
		t.Fatalf("unexpected defender line: %+v", defender)
	}
	if scorer.ImpactScore != nil || scorer.MinutesPlayed != nil {
		t.Fatalf("expected no derived values before recompute, got %+v", scorer)
	}

	if err := f.derivation.RecomputeAll(t.Context(), memory.MatchIDOpening+"-data"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	stats, err = f.projections.Stats(t.Context(), memory.MatchIDOpening)
	if err != nil {
		t.Fatalf("stats after recompute: %v", err)
	}
	for _, l := range stats.Players {
		if l.PlayerID == homePlayer(2) && (l.ImpactScore == nil || l.MinutesPlayed == nil) {
			t.Fatalf("expected derived values after recompute, got %+v", l)
		}
	}
}

func TestProjectionService_ImpactsServeCachedLatestVersion(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	f.playOpening(t)
	dataID := memory.MatchIDOpening + "-data"

	if _, err := f.derivation.RecomputeImpact(t.Context(), dataID); err != nil {
		t.Fatalf("recompute impact: %v", err)
	}

	view, err := f.projections.Impacts(t.Context(), memory.MatchIDOpening, true)
	if err != nil {
		t.Fatalf("impacts: %v", err)
	}
	if view.Stale || view.AlgorithmVersion != string(impact.Latest) || len(view.Impacts) == 0 {
		t.Fatalf("unexpected impacts view: stale=%v version=%s n=%d", view.Stale, view.AlgorithmVersion, len(view.Impacts))
	}
	if f.enqueuer.count() != 0 {
		t.Fatalf("expected no recompute for fresh rows")
	}
	key := BreakdownCacheKey(dataID, impact.Latest)
	if !f.cache.has(key) {
		t.Fatalf("expected rendered breakdown under %s", key)
	}

	if _, err := f.derivation.RecomputeImpact(t.Context(), dataID); err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	if f.cache.has(key) {
		t.Fatalf("expected recompute to invalidate %s", key)
	}
}

func TestProjectionService_StaleImpactsEnqueueOnce(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	f.playOpening(t)
	dataID := memory.MatchIDOpening + "-data"

	st, err := f.store.Load(t.Context(), dataID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.impacts.Replace(t.Context(), dataID, impact.V5, ComputeImpactRows(&st, impact.V5, f.clock.Now())); err != nil {
		t.Fatalf("seed v5 rows: %v", err)
	}

	view, err := f.projections.Impacts(t.Context(), memory.MatchIDOpening, false)
	if err != nil {
		t.Fatalf("impacts: %v", err)
	}
	if !view.Stale || view.AlgorithmVersion != string(impact.V5) || len(view.Impacts) == 0 {
		t.Fatalf("expected stale v5 rows, got stale=%v version=%s n=%d", view.Stale, view.AlgorithmVersion, len(view.Impacts))
	}
	if got := f.enqueuer.count(); got != 1 {
		t.Fatalf("expected exactly one recompute enqueue, got %d", got)
	}
	for _, item := range view.Impacts {
		if item.Breakdown != nil {
			t.Fatalf("expected no breakdown without the flag")
		}
	}
}

func TestProjectionService_MixedStaleVersionsReportNewest(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	f.playOpening(t)
	dataID := memory.MatchIDOpening + "-data"

	st, err := f.store.Load(t.Context(), dataID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.impacts.Replace(t.Context(), dataID, impact.V4, ComputeImpactRows(&st, impact.V4, f.clock.Now())); err != nil {
		t.Fatalf("seed v4 rows: %v", err)
	}
	v5 := ComputeImpactRows(&st, impact.V5, f.clock.Now())
	sort.Slice(v5, func(i, j int) bool { return v5[i].PlayerID < v5[j].PlayerID })
	if err := f.impacts.Replace(t.Context(), dataID, impact.V5, v5[len(v5)/2:]); err != nil {
		t.Fatalf("seed v5 rows: %v", err)
	}

	view, err := f.projections.Impacts(t.Context(), memory.MatchIDOpening, false)
	if err != nil {
		t.Fatalf("impacts: %v", err)
	}
	if !view.Stale || view.AlgorithmVersion != string(impact.V5) {
		t.Fatalf("expected stale view reporting v5, got stale=%v version=%s", view.Stale, view.AlgorithmVersion)
	}
	if len(view.Impacts) != len(v5) {
		t.Fatalf("expected one impact per player, got %d want %d", len(view.Impacts), len(v5))
	}
}

func TestProjectionService_LiveIncludesDerivedComputedAt(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	f.playOpening(t)

	before, err := f.projections.Live(t.Context(), memory.MatchIDOpening)
	if err != nil {
		t.Fatalf("live: %v", err)
	}

	f.clock.Advance(time.Minute)
	if _, err := f.derivation.RecomputeImpact(t.Context(), memory.MatchIDOpening+"-data"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	after, err := f.projections.Live(t.Context(), memory.MatchIDOpening)
	if err != nil {
		t.Fatalf("live after recompute: %v", err)
	}
	if !after.LastChangedAt.After(before.LastChangedAt) || !after.LastChangedAt.Equal(f.clock.Now().UTC()) {
		t.Fatalf("expected last_changed_at to follow computed_at: before=%s after=%s", before.LastChangedAt, after.LastChangedAt)
	}
	if after.Score.Home != 1 || after.Score.Away != 1 {
		t.Fatalf("unexpected live score: %+v", after.Score)
	}
}

func TestProjectionService_UnknownMatch(t *testing.T) {
	t.Parallel()

	f := newAnalyticsFixture(t)
	if _, err := f.projections.Events(t.Context(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.projections.Stats(t.Context(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
