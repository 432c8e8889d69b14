package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/minutes"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	"github.com/riskibarqy/korfbal-live/internal/domain/timer"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/platform/resilience"
	"github.com/sourcegraph/conc/pool"
)

const unknownGoalType = "unknown"

type MatchEventsView struct {
	MatchID     string      `json:"match_id"`
	MatchDataID string      `json:"match_data_id"`
	HomeTeamID  string      `json:"home_team_id"`
	AwayTeamID  string      `json:"away_team_id"`
	MatchParts  []PartView  `json:"match_parts"`
	Events      []EventView `json:"events"`
}

type GoalTypeStat struct {
	GoalType string `json:"goal_type"`
	Home     int    `json:"home"`
	Away     int    `json:"away"`
}

type PlayerStatLine struct {
	PlayerID      string   `json:"player_id"`
	Name          string   `json:"name,omitempty"`
	TeamSide      string   `json:"team_side"`
	ShotsFor      int      `json:"shots_for"`
	ShotsAgainst  int      `json:"shots_against"`
	GoalsFor      int      `json:"goals_for"`
	GoalsAgainst  int      `json:"goals_against"`
	MinutesPlayed *float64 `json:"minutes_played,omitempty"`
	ImpactScore   *float64 `json:"impact_score,omitempty"`
}

type MatchStatsView struct {
	MatchID     string           `json:"match_id"`
	MatchDataID string           `json:"match_data_id"`
	HomeTeamID  string           `json:"home_team_id"`
	AwayTeamID  string           `json:"away_team_id"`
	Score       ScoreView        `json:"score"`
	GoalTypes   []GoalTypeStat   `json:"goal_types"`
	Players     []PlayerStatLine `json:"players"`
}

type BreakdownLineView struct {
	Points float64 `json:"points"`
	Count  int     `json:"count"`
}

type PlayerImpactView struct {
	PlayerID    string                       `json:"player_id_uuid"`
	TeamSide    string                       `json:"team_side"`
	ImpactScore float64                      `json:"impact_score"`
	Breakdown   map[string]BreakdownLineView `json:"breakdown,omitempty"`
}

type ImpactsView struct {
	MatchDataID      string             `json:"match_data_id"`
	Status           string             `json:"status"`
	AlgorithmVersion string             `json:"algorithm_version"`
	Stale            bool               `json:"stale"`
	Impacts          []PlayerImpactView `json:"impacts"`
}

type recomputeEnqueuer interface {
	Enqueue(ctx context.Context, task, matchDataID string, delay time.Duration, dispatchID string) error
}

type ProjectionConfig struct {
	BreakdownTTL time.Duration
}

// ProjectionService renders the read models served to viewers.
type ProjectionService struct {
	matches     match.Repository
	store       match.Store
	rosters     roster.Repository
	impacts     impact.Repository
	minutesRepo minutes.Repository
	cache       BreakdownCache
	recompute   recomputeEnqueuer
	cfg         ProjectionConfig
	logger      *logging.Logger
	now         func() time.Time
	impactLoads resilience.SingleFlight[ImpactsView]
}

func NewProjectionService(
	matches match.Repository,
	store match.Store,
	rosters roster.Repository,
	impacts impact.Repository,
	minutesRepo minutes.Repository,
	cache BreakdownCache,
	recompute recomputeEnqueuer,
	cfg ProjectionConfig,
	logger *logging.Logger,
) *ProjectionService {
	if cache == nil {
		cache = NewNoopBreakdownCache()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BreakdownTTL <= 0 {
		cfg.BreakdownTTL = DefaultBreakdownCacheTTL
	}

	return &ProjectionService{
		matches:     matches,
		store:       store,
		rosters:     rosters,
		impacts:     impacts,
		minutesRepo: minutesRepo,
		cache:       cache,
		recompute:   recompute,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ProjectionService) loadState(ctx context.Context, matchID string) (match.State, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return match.State{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	data, exists, err := s.matches.GetData(ctx, matchID)
	if err != nil {
		return match.State{}, fmt.Errorf("get match data: %w", err)
	}
	if !exists {
		return match.State{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}
	st, err := s.store.Load(ctx, data.ID)
	if err != nil {
		return match.State{}, mapStoreError(err, data.ID)
	}
	return st, nil
}

// Events is the play-by-play: goals, substitutions and intermissions.
func (s *ProjectionService) Events(ctx context.Context, matchID string) (MatchEventsView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.Events")
	defer span.End()

	st, err := s.loadState(ctx, matchID)
	if err != nil {
		return MatchEventsView{}, err
	}

	backing := make(map[string]struct{})
	for _, e := range st.Events {
		if e.Kind == event.KindTimeout && e.Timeout != nil {
			backing[e.Timeout.PauseID] = struct{}{}
		}
	}

	clock := timer.NewClock(st.Data, st.Parts, st.Events)
	out := MatchEventsView{
		MatchID:     st.Match.ID,
		MatchDataID: st.Data.ID,
		HomeTeamID:  st.Match.HomeTeamID,
		AwayTeamID:  st.Match.AwayTeamID,
		MatchParts:  newPartViews(st.Parts),
		Events:      make([]EventView, 0, len(st.Events)),
	}
	for _, e := range st.Events {
		switch e.Kind {
		case event.KindShot:
			if !e.IsGoal() {
				continue
			}
		case event.KindPause:
			if _, ok := backing[e.ID]; ok {
				continue
			}
		case event.KindAttack:
			continue
		}
		out.Events = append(out.Events, newEventView(&st, clock, e))
	}
	return out, nil
}

// Stats tallies goal types per side and per-player shooting lines.
func (s *ProjectionService) Stats(ctx context.Context, matchID string) (MatchStatsView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.Stats")
	defer span.End()

	st, err := s.loadState(ctx, matchID)
	if err != nil {
		return MatchStatsView{}, err
	}

	var (
		members     []roster.SeasonMember
		impactRows  []impact.Row
		minutesRows []minutes.Row
	)
	loads := pool.New().WithContext(ctx)
	loads.Go(func(ctx context.Context) error {
		var err error
		members, err = s.rosters.ListSeasonMembers(ctx, st.Match.SeasonID, []string{st.Match.HomeTeamID, st.Match.AwayTeamID})
		if err != nil {
			return fmt.Errorf("list season members: %w", err)
		}
		return nil
	})
	loads.Go(func(ctx context.Context) error {
		var err error
		impactRows, err = s.impacts.ListByMatch(ctx, st.Data.ID)
		if err != nil {
			return fmt.Errorf("list impact rows: %w", err)
		}
		return nil
	})
	loads.Go(func(ctx context.Context) error {
		var err error
		minutesRows, err = s.minutesRepo.ListByMatch(ctx, st.Data.ID)
		if err != nil {
			return fmt.Errorf("list minutes rows: %w", err)
		}
		return nil
	})
	if err := loads.Wait(); err != nil {
		return MatchStatsView{}, err
	}

	resolver := newSideResolver(st.Match, st.Players, st.Groups, members, st.Events)
	lines := make(map[string]*PlayerStatLine)
	line := func(playerID string) *PlayerStatLine {
		if l, ok := lines[playerID]; ok {
			return l
		}
		l := &PlayerStatLine{PlayerID: playerID, TeamSide: string(resolver.Side(playerID))}
		lines[playerID] = l
		return l
	}
	for _, p := range st.Players {
		line(p.PlayerID)
	}
	for _, g := range st.Groups {
		for _, playerID := range g.PlayerIDs {
			line(playerID)
		}
	}

	goalTypes := make(map[string]*GoalTypeStat)
	for _, e := range st.Events {
		if e.Kind != event.KindShot || e.Shot == nil {
			continue
		}
		if e.Shot.Scored {
			label := strings.TrimSpace(e.Shot.ShotType)
			if label == "" {
				label = unknownGoalType
			}
			tally, ok := goalTypes[label]
			if !ok {
				tally = &GoalTypeStat{GoalType: label}
				goalTypes[label] = tally
			}
			if side, _ := st.Match.SideOf(e.Shot.TeamID); side == match.SideAway {
				tally.Away++
			} else {
				tally.Home++
			}
		}
		if e.Shot.PlayerID == "" {
			continue
		}
		l := line(e.Shot.PlayerID)
		if e.Shot.ForTeam {
			l.ShotsFor++
			if e.Shot.Scored {
				l.GoalsFor++
			}
		} else {
			l.ShotsAgainst++
			if e.Shot.Scored {
				l.GoalsAgainst++
			}
		}
	}

	for _, row := range latestImpactRows(impactRows) {
		score := row.Score
		line(row.PlayerID).ImpactScore = &score
	}
	for _, row := range minutesRows {
		if row.AlgorithmVersion != minutes.AlgorithmVersion {
			continue
		}
		played := row.MinutesPlayed
		line(row.PlayerID).MinutesPlayed = &played
	}

	ids := make([]string, 0, len(lines))
	for playerID := range lines {
		ids = append(ids, playerID)
	}
	players, err := s.rosters.ListPlayers(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "list player names failed", "match_id", st.Match.ID, "error", err)
	}
	for _, p := range players {
		if l, ok := lines[p.ID]; ok {
			l.Name = p.Name
		}
	}

	out := MatchStatsView{
		MatchID:     st.Match.ID,
		MatchDataID: st.Data.ID,
		HomeTeamID:  st.Match.HomeTeamID,
		AwayTeamID:  st.Match.AwayTeamID,
		Score:       scoreOf(&st),
		GoalTypes:   make([]GoalTypeStat, 0, len(goalTypes)),
		Players:     make([]PlayerStatLine, 0, len(lines)),
	}
	for _, tally := range goalTypes {
		out.GoalTypes = append(out.GoalTypes, *tally)
	}
	sort.Slice(out.GoalTypes, func(i, j int) bool { return out.GoalTypes[i].GoalType < out.GoalTypes[j].GoalType })
	for _, l := range lines {
		out.Players = append(out.Players, *l)
	}
	sort.Slice(out.Players, func(i, j int) bool {
		a, b := out.Players[i], out.Players[j]
		if a.TeamSide != b.TeamSide {
			return a.TeamSide == string(match.SideHome)
		}
		return a.PlayerID < b.PlayerID
	})
	return out, nil
}

// latestImpactRows keeps each player's row of the newest version present.
func versionRanks() map[impact.Version]int {
	rank := make(map[impact.Version]int)
	for i, v := range impact.Versions() {
		rank[v] = i
	}
	return rank
}

func latestImpactRows(rows []impact.Row) []impact.Row {
	rank := versionRanks()
	best := make(map[string]impact.Row)
	for _, row := range rows {
		current, ok := best[row.PlayerID]
		if !ok || rank[row.AlgorithmVersion] > rank[current.AlgorithmVersion] {
			best[row.PlayerID] = row
		}
	}
	out := make([]impact.Row, 0, len(best))
	for _, row := range best {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Impacts serves persisted impact rows. Missing or stale rows trigger one
// background recompute; the request never computes inline.
// Concurrent readers of the same match share one load.
func (s *ProjectionService) Impacts(ctx context.Context, matchID string, withBreakdown bool) (ImpactsView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.Impacts")
	defer span.End()

	key := fmt.Sprintf("%s|%t", matchID, withBreakdown)
	view, err, _ := s.impactLoads.Do(ctx, key, func(ctx context.Context) (ImpactsView, error) {
		return s.loadImpacts(ctx, matchID, withBreakdown)
	})
	return view, err
}

func (s *ProjectionService) loadImpacts(ctx context.Context, matchID string, withBreakdown bool) (ImpactsView, error) {
	st, err := s.loadState(ctx, matchID)
	if err != nil {
		return ImpactsView{}, err
	}

	key := BreakdownCacheKey(st.Data.ID, impact.Latest)
	if withBreakdown {
		if view, ok := s.cachedImpacts(ctx, key); ok {
			view.Status = string(st.Data.Status)
			return view, nil
		}
	}

	rows, err := s.impacts.ListByMatch(ctx, st.Data.ID)
	if err != nil {
		return ImpactsView{}, fmt.Errorf("list impact rows: %w", err)
	}
	rows = latestImpactRows(rows)

	view := ImpactsView{
		MatchDataID:      st.Data.ID,
		Status:           string(st.Data.Status),
		AlgorithmVersion: string(impact.Latest),
		Impacts:          make([]PlayerImpactView, 0, len(rows)),
	}
	// A stale view reports the newest version among the rows it serves.
	rank := versionRanks()
	var newest impact.Version
	for _, row := range rows {
		if row.AlgorithmVersion != impact.Latest {
			view.Stale = true
		}
		if newest == "" || rank[row.AlgorithmVersion] > rank[newest] {
			newest = row.AlgorithmVersion
		}
	}
	if view.Stale {
		view.AlgorithmVersion = string(newest)
	}
	if view.Stale || (len(rows) == 0 && len(st.Events) > 0) {
		s.enqueueRecompute(ctx, st.Data)
	}

	var resolver *sideResolver
	for _, row := range rows {
		side, ok := st.Match.SideOf(row.TeamID)
		if !ok {
			if resolver == nil {
				resolver = newSideResolver(st.Match, st.Players, st.Groups, nil, st.Events)
			}
			side = resolver.Side(row.PlayerID)
		}
		item := PlayerImpactView{
			PlayerID:    row.PlayerID,
			TeamSide:    string(side),
			ImpactScore: row.Score,
		}
		if withBreakdown {
			item.Breakdown = make(map[string]BreakdownLineView, len(row.Breakdown))
			for category, l := range row.Breakdown {
				item.Breakdown[string(category)] = BreakdownLineView{Points: l.Points, Count: l.Count}
			}
		}
		view.Impacts = append(view.Impacts, item)
	}

	if withBreakdown && !view.Stale && len(view.Impacts) > 0 {
		s.storeImpacts(ctx, key, view)
	}
	return view, nil
}

func (s *ProjectionService) cachedImpacts(ctx context.Context, key string) (ImpactsView, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "read breakdown cache failed", "key", key, "error", err)
		return ImpactsView{}, false
	}
	if !ok {
		return ImpactsView{}, false
	}
	var view ImpactsView
	if err := sonic.Unmarshal(raw, &view); err != nil {
		s.logger.WarnContext(ctx, "decode breakdown cache failed", "key", key, "error", err)
		return ImpactsView{}, false
	}
	return view, true
}

func (s *ProjectionService) storeImpacts(ctx context.Context, key string, view ImpactsView) {
	raw, err := sonic.Marshal(view)
	if err != nil {
		s.logger.WarnContext(ctx, "encode breakdown cache failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cfg.BreakdownTTL); err != nil {
		s.logger.WarnContext(ctx, "write breakdown cache failed", "key", key, "error", err)
	}
}

func (s *ProjectionService) enqueueRecompute(ctx context.Context, data match.Data) {
	if s.recompute == nil {
		return
	}
	dispatchID := dedupKey(TaskRecomputeImpact, data.ID, data.UpdatedAt) + "-read"
	if err := s.recompute.Enqueue(ctx, TaskRecomputeImpact, data.ID, 0, dispatchID); err != nil {
		s.logger.WarnContext(ctx, "enqueue stale impact recompute failed", "match_data_id", data.ID, "error", err)
	}
}

// Live is the scoreboard snapshot. Its change stamp also covers derived rows.
func (s *ProjectionService) Live(ctx context.Context, matchID string) (LiveState, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ProjectionService.Live")
	defer span.End()

	st, err := s.loadState(ctx, matchID)
	if err != nil {
		return LiveState{}, err
	}
	state := buildLiveState(&st, s.now())

	rows, err := s.impacts.ListByMatch(ctx, st.Data.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "list impact rows for live stamp failed", "match_data_id", st.Data.ID, "error", err)
		return state, nil
	}
	for _, row := range rows {
		if row.ComputedAt.After(state.LastChangedAt) {
			state.LastChangedAt = row.ComputedAt.UTC()
		}
	}
	return state, nil
}
