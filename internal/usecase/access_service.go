package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	"github.com/riskibarqy/korfbal-live/internal/domain/user"
)

// AccessService decides who may edit a match: admins, and coaches of either
// team for that team's side.
type AccessService struct {
	verifier TokenVerifier
	matches  match.Repository
	rosters  roster.Repository
}

func NewAccessService(verifier TokenVerifier, matches match.Repository, rosters roster.Repository) *AccessService {
	return &AccessService{verifier: verifier, matches: matches, rosters: rosters}
}

func (s *AccessService) Authenticate(ctx context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	if s.verifier == nil {
		return user.Principal{}, fmt.Errorf("%w: token verifier is not configured", ErrDependencyUnavailable)
	}
	principal, err := s.verifier.VerifyAccessToken(ctx, token)
	if err != nil {
		return user.Principal{}, err
	}
	if !principal.IsAuthenticated() {
		return user.Principal{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return principal, nil
}

func (s *AccessService) getMatch(ctx context.Context, matchID string) (match.Match, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	m, exists, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !exists {
		return match.Match{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}
	return m, nil
}

// CanEdit reports whether principal may edit any side of the match.
func (s *AccessService) CanEdit(ctx context.Context, principal user.Principal, matchID string) (bool, error) {
	m, err := s.getMatch(ctx, matchID)
	if err != nil {
		return false, err
	}
	if !principal.IsAuthenticated() {
		return false, nil
	}
	if principal.IsAdmin {
		return true, nil
	}
	teams, err := s.editableTeams(ctx, principal, m)
	if err != nil {
		return false, err
	}
	return len(teams) > 0, nil
}

func (s *AccessService) editableTeams(ctx context.Context, principal user.Principal, m match.Match) ([]string, error) {
	if principal.IsAdmin {
		return []string{m.HomeTeamID, m.AwayTeamID}, nil
	}
	out := make([]string, 0, 2)
	for _, teamID := range []string{m.HomeTeamID, m.AwayTeamID} {
		ok, err := s.rosters.IsCoach(ctx, principal.UserID, teamID)
		if err != nil {
			return nil, fmt.Errorf("check coach team=%s: %w", teamID, err)
		}
		if ok {
			out = append(out, teamID)
		}
	}
	return out, nil
}

// AuthorizeTeam requires principal to edit teamID's side of the match.
func (s *AccessService) AuthorizeTeam(ctx context.Context, principal user.Principal, matchID, teamID string) error {
	if !principal.IsAuthenticated() {
		return fmt.Errorf("%w: login required", ErrUnauthorized)
	}
	m, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	teamID = strings.TrimSpace(teamID)
	if !m.HasTeam(teamID) {
		return fmt.Errorf("%w: team=%s is not playing match=%s", ErrNotFound, teamID, m.ID)
	}
	if principal.IsAdmin {
		return nil
	}
	ok, err := s.rosters.IsCoach(ctx, principal.UserID, teamID)
	if err != nil {
		return fmt.Errorf("check coach team=%s: %w", teamID, err)
	}
	if !ok {
		return fmt.Errorf("%w: user is not a coach of team=%s", ErrForbidden, teamID)
	}
	return nil
}

// ResolveGoalTeam picks the editing team for goal edits. An explicit team is
// authorised as is; otherwise the first coached team of the match is used.
func (s *AccessService) ResolveGoalTeam(ctx context.Context, principal user.Principal, matchID, teamID string) (string, error) {
	if strings.TrimSpace(teamID) != "" {
		if err := s.AuthorizeTeam(ctx, principal, matchID, teamID); err != nil {
			return "", err
		}
		return strings.TrimSpace(teamID), nil
	}
	if !principal.IsAuthenticated() {
		return "", fmt.Errorf("%w: login required", ErrUnauthorized)
	}
	m, err := s.getMatch(ctx, matchID)
	if err != nil {
		return "", err
	}
	if principal.IsAdmin {
		return "", fmt.Errorf("%w: team_id is required for admins", ErrInvalidInput)
	}
	teams, err := s.editableTeams(ctx, principal, m)
	if err != nil {
		return "", err
	}
	if len(teams) == 0 {
		return "", fmt.Errorf("%w: user coaches neither team of match=%s", ErrForbidden, m.ID)
	}
	return teams[0], nil
}

func RequireAdmin(principal user.Principal) error {
	if !principal.IsAuthenticated() {
		return fmt.Errorf("%w: login required", ErrUnauthorized)
	}
	if !principal.IsAdmin {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	return nil
}
