package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	"github.com/riskibarqy/korfbal-live/internal/domain/user"
	"github.com/riskibarqy/korfbal-live/internal/platform/id"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
)

const (
	DefaultMatchListLimit = 10
	MaxMatchListLimit     = 50
	RecentMatchWindow     = 7 * 24 * time.Hour
)

type MatchView struct {
	ID          string     `json:"id"`
	MatchDataID string     `json:"match_data_id"`
	HomeTeamID  string     `json:"home_team_id"`
	AwayTeamID  string     `json:"away_team_id"`
	SeasonID    string     `json:"season_id,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	Status      string     `json:"status"`
	CurrentPart int        `json:"current_part"`
	Parts       int        `json:"parts"`
	Score       *ScoreView `json:"score,omitempty"`
}

func newMatchView(o match.Overview) MatchView {
	view := MatchView{
		ID:          o.Match.ID,
		MatchDataID: o.Data.ID,
		HomeTeamID:  o.Match.HomeTeamID,
		AwayTeamID:  o.Match.AwayTeamID,
		SeasonID:    o.Match.SeasonID,
		StartTime:   o.Match.StartTime,
		Status:      string(o.Data.Status),
		CurrentPart: o.Data.CurrentPart,
		Parts:       o.Data.Parts,
	}
	if o.Data.Finished() {
		view.Score = &ScoreView{Home: o.Data.HomeScore, Away: o.Data.AwayScore}
	}
	return view
}

func newMatchViews(items []match.Overview) []MatchView {
	out := make([]MatchView, 0, len(items))
	for _, o := range items {
		out = append(out, newMatchView(o))
	}
	return out
}

type CreateMatchInput struct {
	HomeTeamID        string
	AwayTeamID        string
	SeasonID          string
	StartTime         time.Time
	Parts             int
	PartLengthSeconds int
}

// MatchService serves fixture listings and match creation.
type MatchService struct {
	matches match.Repository
	rosters roster.Repository
	ids     id.Generator
	logger  *logging.Logger
	now     func() time.Time
}

func NewMatchService(matches match.Repository, rosters roster.Repository, ids id.Generator, logger *logging.Logger) *MatchService {
	if logger == nil {
		logger = logging.Default()
	}
	return &MatchService{
		matches: matches,
		rosters: rosters,
		ids:     ids,
		logger:  logger,
		now:     time.Now,
	}
}

func normalizeListLimit(limit int) int {
	if limit <= 0 {
		return DefaultMatchListLimit
	}
	if limit > MaxMatchListLimit {
		return MaxMatchListLimit
	}
	return limit
}

func teamFilter(teamID string) []string {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil
	}
	return []string{teamID}
}

// Next is the earliest match not yet finished. With followed set it only
// considers teams the caller coaches; nil means there is none.
func (s *MatchService) Next(ctx context.Context, principal user.Principal, followed bool) (*MatchView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Next")
	defer span.End()

	query := match.Query{
		Statuses: []match.Status{match.StatusActive, match.StatusUpcoming},
		Limit:    1,
	}
	if followed {
		if !principal.IsAuthenticated() {
			return nil, fmt.Errorf("%w: login required for followed matches", ErrUnauthorized)
		}
		teams, err := s.rosters.ListCoachTeams(ctx, principal.UserID)
		if err != nil {
			return nil, fmt.Errorf("list coach teams: %w", err)
		}
		if len(teams) == 0 {
			return nil, nil
		}
		query.TeamIDs = teams
	}

	items, err := s.matches.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list next match: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	view := newMatchView(items[0])
	return &view, nil
}

func (s *MatchService) Upcoming(ctx context.Context, teamID string, limit int) ([]MatchView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Upcoming")
	defer span.End()

	items, err := s.matches.List(ctx, match.Query{
		TeamIDs:  teamFilter(teamID),
		Statuses: []match.Status{match.StatusUpcoming},
		Limit:    normalizeListLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming matches: %w", err)
	}
	return newMatchViews(items), nil
}

// Recent lists matches that started within the last week, newest first.
func (s *MatchService) Recent(ctx context.Context) ([]MatchView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Recent")
	defer span.End()

	now := s.now().UTC()
	items, err := s.matches.List(ctx, match.Query{
		From:       now.Add(-RecentMatchWindow),
		To:         now,
		Descending: true,
		Limit:      MaxMatchListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list recent matches: %w", err)
	}
	return newMatchViews(items), nil
}

func (s *MatchService) Finished(ctx context.Context, teamID, seasonID string, limit int) ([]MatchView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.Finished")
	defer span.End()

	items, err := s.matches.List(ctx, match.Query{
		TeamIDs:    teamFilter(teamID),
		SeasonID:   strings.TrimSpace(seasonID),
		Statuses:   []match.Status{match.StatusFinished},
		Descending: true,
		Limit:      normalizeListLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list finished matches: %w", err)
	}
	return newMatchViews(items), nil
}

// CreateMatch stores a fixture, its live data and the six empty groups.
func (s *MatchService) CreateMatch(ctx context.Context, principal user.Principal, input CreateMatchInput) (MatchView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.CreateMatch")
	defer span.End()

	if err := RequireAdmin(principal); err != nil {
		return MatchView{}, err
	}
	input.HomeTeamID = strings.TrimSpace(input.HomeTeamID)
	input.AwayTeamID = strings.TrimSpace(input.AwayTeamID)
	input.SeasonID = strings.TrimSpace(input.SeasonID)
	switch {
	case input.HomeTeamID == "" || input.AwayTeamID == "":
		return MatchView{}, fmt.Errorf("%w: home_team_id and away_team_id are required", ErrInvalidInput)
	case input.HomeTeamID == input.AwayTeamID:
		return MatchView{}, fmt.Errorf("%w: a team cannot play itself", ErrInvalidInput)
	case input.StartTime.IsZero():
		return MatchView{}, fmt.Errorf("%w: start_time is required", ErrInvalidInput)
	}

	matchID, err := s.ids.NewID()
	if err != nil {
		return MatchView{}, fmt.Errorf("generate match id: %w", err)
	}
	dataID, err := s.ids.NewID()
	if err != nil {
		return MatchView{}, fmt.Errorf("generate match data id: %w", err)
	}

	m := match.Match{
		ID:         matchID,
		HomeTeamID: input.HomeTeamID,
		AwayTeamID: input.AwayTeamID,
		SeasonID:   input.SeasonID,
		StartTime:  input.StartTime.UTC(),
	}
	data := match.NewData(dataID, matchID, s.now())
	if input.Parts > 0 {
		data.Parts = input.Parts
	}
	if input.PartLengthSeconds > 0 {
		data.PartLengthSeconds = input.PartLengthSeconds
	}
	if err := data.Validate(); err != nil {
		return MatchView{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	groups := make([]playergroup.Group, 0, 2*len(playergroup.AllTypes))
	for _, teamID := range []string{m.HomeTeamID, m.AwayTeamID} {
		for _, groupType := range playergroup.AllTypes {
			groupID, err := s.ids.NewID()
			if err != nil {
				return MatchView{}, fmt.Errorf("generate group id: %w", err)
			}
			groups = append(groups, playergroup.Group{
				ID:           groupID,
				TeamID:       teamID,
				MatchDataID:  dataID,
				StartingType: groupType,
				CurrentType:  groupType,
			})
		}
	}

	if err := s.matches.Create(ctx, m, data, groups); err != nil {
		return MatchView{}, fmt.Errorf("create match: %w", err)
	}
	s.logger.InfoContext(ctx, "match created", "match_id", m.ID, "match_data_id", dataID, "home_team_id", m.HomeTeamID, "away_team_id", m.AwayTeamID)
	return newMatchView(match.Overview{Match: m, Data: data}), nil
}
