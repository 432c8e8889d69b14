package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/timer"
)

// CreateGoal inserts a goal retroactively. Without an explicit time the goal
// lands at the current moment of the active part.
func (s *TrackerService) CreateGoal(ctx context.Context, input GoalInput) (EventView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TrackerService.CreateGoal")
	defer span.End()

	playerID := strings.TrimSpace(input.PlayerID)
	if playerID == "" {
		return EventView{}, fmt.Errorf("%w: player_id is required", ErrInvalidInput)
	}
	return s.editGoal(ctx, "create_goal", input, func(ctx context.Context, sc *commandScope) (event.Event, error) {
		part, at, err := partForGoal(sc, input.Time)
		if err != nil {
			return event.Event{}, err
		}
		forTeam := forTeamOf(input.ForTeam)
		created, err := s.appendEvent(ctx, sc, event.Event{
			Kind:   event.KindShot,
			PartID: part.ID,
			Time:   at,
			Shot: &event.Shot{
				PlayerID: playerID,
				TeamID:   sc.attributedTeam(forTeam),
				ForTeam:  forTeam,
				Scored:   true,
				ShotType: strings.TrimSpace(input.GoalType),
			},
		})
		if err != nil {
			return event.Event{}, err
		}
		if event.ScoredGoals(sc.st.Events)%2 == 0 {
			if err := s.swapRoles(ctx, sc); err != nil {
				return event.Event{}, err
			}
		}
		return created, nil
	})
}

// UpdateGoal edits scorer, type, side or time. The goal count is unchanged so
// no role swap happens.
func (s *TrackerService) UpdateGoal(ctx context.Context, input GoalInput) (EventView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TrackerService.UpdateGoal")
	defer span.End()

	return s.editGoal(ctx, "update_goal", input, func(ctx context.Context, sc *commandScope) (event.Event, error) {
		goal, err := findGoal(sc, input.EventID)
		if err != nil {
			return event.Event{}, err
		}

		updated := goal.Clone()
		if playerID := strings.TrimSpace(input.PlayerID); playerID != "" {
			updated.Shot.PlayerID = playerID
		}
		if goalType := strings.TrimSpace(input.GoalType); goalType != "" {
			updated.Shot.ShotType = goalType
		}
		if input.ForTeam != nil {
			updated.Shot.ForTeam = *input.ForTeam
			updated.Shot.TeamID = sc.attributedTeam(*input.ForTeam)
		}
		if input.Time != nil {
			part, at, err := partForGoal(sc, input.Time)
			if err != nil {
				return event.Event{}, err
			}
			updated.PartID = part.ID
			updated.Time = at
		}
		if err := updated.Validate(); err != nil {
			return event.Event{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if err := sc.tx.UpdateEvent(ctx, updated); err != nil {
			return event.Event{}, fmt.Errorf("update goal: %w", err)
		}
		return updated, nil
	})
}

func (s *TrackerService) DeleteGoal(ctx context.Context, input GoalInput) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.TrackerService.DeleteGoal")
	defer span.End()

	_, err := s.editGoal(ctx, "delete_goal", input, func(ctx context.Context, sc *commandScope) (event.Event, error) {
		goal, err := findGoal(sc, input.EventID)
		if err != nil {
			return event.Event{}, err
		}
		if err := sc.tx.DeleteEvent(ctx, goal.ID); err != nil {
			return event.Event{}, fmt.Errorf("delete goal: %w", err)
		}
		if event.ScoredGoals(sc.st.Events)%2 == 1 {
			if err := s.swapRoles(ctx, sc); err != nil {
				return event.Event{}, err
			}
		}
		return goal, nil
	})
	return err
}

// editGoal runs fn in the match transaction and renders the touched event.
// Finished matches stay editable; their stored score is backfilled.
func (s *TrackerService) editGoal(ctx context.Context, command string, input GoalInput, fn func(ctx context.Context, sc *commandScope) (event.Event, error)) (EventView, error) {
	started := s.now()
	view, err := s.runGoalEdit(ctx, input, fn)
	s.observer.ObserveCommand(command, commandOutcome(err), s.now().Sub(started))
	if err != nil && commandOutcome(err) == "error" {
		s.logger.ErrorContext(ctx, "goal edit failed", "command", command, "match_id", input.MatchID, "error", err)
	}
	return view, err
}

func (s *TrackerService) runGoalEdit(ctx context.Context, input GoalInput, fn func(ctx context.Context, sc *commandScope) (event.Event, error)) (EventView, error) {
	_, data, err := s.resolve(ctx, input.MatchID, input.TeamID)
	if err != nil {
		return EventView{}, err
	}

	var view EventView
	_, err = s.execute(ctx, data.ID, strings.TrimSpace(input.TeamID), s.now().UTC(), func(ctx context.Context, sc *commandScope) error {
		touched, err := fn(ctx, sc)
		if err != nil {
			return err
		}
		if sc.st.Data.Finished() {
			sc.finished = true
			if err := backfillScore(ctx, sc); err != nil {
				return fmt.Errorf("backfill score: %w", err)
			}
		}
		view = newEventView(sc.st, timer.NewClock(sc.st.Data, sc.st.Parts, sc.st.Events), touched)
		return nil
	})
	if err != nil {
		return EventView{}, err
	}
	return view, nil
}

func findGoal(sc *commandScope, eventID string) (event.Event, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return event.Event{}, fmt.Errorf("%w: event_id is required", ErrInvalidInput)
	}
	goal, ok := event.FindByID(sc.st.Events, eventID)
	if !ok || !goal.IsGoal() {
		return event.Event{}, fmt.Errorf("%w: goal=%s", ErrNotFound, eventID)
	}
	return goal, nil
}

// partForGoal finds the part a goal time falls in. A nil time means now,
// which needs a running part.
func partForGoal(sc *commandScope, at *time.Time) (match.Part, time.Time, error) {
	if at == nil {
		part, ok := sc.st.ActivePart()
		if !ok {
			return match.Part{}, time.Time{}, fmt.Errorf("%w: time is required when no part is running", ErrInvalidInput)
		}
		return part, atInPart(sc, part), nil
	}

	value := at.UTC()
	for _, part := range sc.st.Parts {
		if value.Before(part.StartTime) {
			continue
		}
		if part.EndTime == nil || !value.After(*part.EndTime) {
			return part, value, nil
		}
	}
	return match.Part{}, time.Time{}, fmt.Errorf("%w: no part covers %s", ErrInvalidInput, value.Format(time.RFC3339))
}
