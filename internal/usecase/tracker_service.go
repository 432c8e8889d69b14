package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	"github.com/riskibarqy/korfbal-live/internal/domain/timer"
	"github.com/riskibarqy/korfbal-live/internal/platform/id"
	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

const (
	CommandStartPause           = "start_pause"
	CommandPartEnd              = "part_end"
	CommandShotReg              = "shot_reg"
	CommandGoalReg              = "goal_reg"
	CommandSubstituteReg        = "substitute_reg"
	CommandSubstituteAgainstReg = "substitute_against_reg"
	CommandTimeout              = "timeout"
	CommandNewAttack            = "new_attack"
	CommandRemoveLastEvent      = "remove_last_event"
	CommandAssignGroup          = "assign_group"
)

type CommandInput struct {
	MatchID      string
	TeamID       string
	Command      string
	ClientTimeMS *int64
	PlayerID     string
	PlayerInID   string
	PlayerOutID  string
	GoalType     string
	ForTeam      *bool
	GroupID      string
	PlayerIDs    []string
}

// GoalInput drives the goal edit endpoints. TeamID is the editing team; the
// goal counts for it unless ForTeam is false.
type GoalInput struct {
	MatchID  string
	TeamID   string
	EventID  string
	PlayerID string
	GoalType string
	ForTeam  *bool
	Time     *time.Time
}

type TrackerConfig struct {
	MaxClockSkew  time.Duration
	RetryAttempts uint
}

type derivationScheduler interface {
	ScheduleAll(ctx context.Context, matchDataID string, stamp time.Time)
	ScheduleFinished(ctx context.Context, matchDataID string, stamp time.Time)
}

// TrackerService is the match state machine. Every command runs inside one
// store transaction holding the match lock; notifications and derivation
// scheduling happen only after commit.
type TrackerService struct {
	matches   match.Repository
	store     match.Store
	ids       id.Generator
	hub       LiveHub
	scheduler derivationScheduler
	observer  CommandObserver
	cfg       TrackerConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewTrackerService(
	matches match.Repository,
	store match.Store,
	ids id.Generator,
	hub LiveHub,
	scheduler derivationScheduler,
	cfg TrackerConfig,
	logger *logging.Logger,
) *TrackerService {
	if hub == nil {
		hub = noopLiveHub{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = DefaultMaxClockSkew
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}

	return &TrackerService{
		matches:   matches,
		store:     store,
		ids:       ids,
		hub:       hub,
		scheduler: scheduler,
		observer:  noopObserver{},
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TrackerService) SetObserver(observer CommandObserver) {
	if observer != nil {
		s.observer = observer
	}
}

// commandScope carries one command through its transaction.
type commandScope struct {
	tx         match.Tx
	st         *match.State
	teamID     string
	opponentID string
	at         time.Time

	timerChanged  bool
	groupsChanged bool
	finished      bool
}

type commandFunc func(ctx context.Context, sc *commandScope, input CommandInput) error

func (s *TrackerService) commands() map[string]commandFunc {
	return map[string]commandFunc{
		CommandStartPause:           s.startPause,
		CommandPartEnd:              s.partEnd,
		CommandShotReg:              s.shotReg,
		CommandGoalReg:              s.goalReg,
		CommandSubstituteReg:        s.substituteReg,
		CommandSubstituteAgainstReg: s.substituteAgainstReg,
		CommandTimeout:              s.timeout,
		CommandNewAttack:            s.newAttack,
		CommandRemoveLastEvent:      s.removeLastEvent,
		CommandAssignGroup:          s.assignGroup,
	}
}

// State returns the tracker snapshot without mutating anything.
func (s *TrackerService) State(ctx context.Context, matchID, teamID string) (TrackerState, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TrackerService.State")
	defer span.End()

	_, data, err := s.resolve(ctx, matchID, teamID)
	if err != nil {
		return TrackerState{}, err
	}
	st, err := s.store.Load(ctx, data.ID)
	if err != nil {
		return TrackerState{}, mapStoreError(err, data.ID)
	}
	return buildTrackerState(&st, strings.TrimSpace(teamID), s.now()), nil
}

// Apply validates and applies one tracker command.
func (s *TrackerService) Apply(ctx context.Context, input CommandInput) (state TrackerState, err error) {
	command := strings.TrimSpace(input.Command)
	ctx, span := startUsecaseSpan(ctx, "usecase.TrackerService.Apply",
		attribute.String("match.id", input.MatchID),
		attribute.String("team.id", input.TeamID),
		attribute.String("tracker.command", command),
	)
	defer func() { endSpan(span, err) }()

	started := s.now()
	state, err = s.apply(ctx, command, input)
	s.observer.ObserveCommand(command, commandOutcome(err), s.now().Sub(started))
	if err != nil && commandOutcome(err) == "error" {
		s.logger.ErrorContext(ctx, "tracker command failed", "command", command, "match_id", input.MatchID, "error", err)
	}
	return state, err
}

func (s *TrackerService) apply(ctx context.Context, command string, input CommandInput) (TrackerState, error) {
	fn, ok := s.commands()[command]
	if !ok {
		return TrackerState{}, fmt.Errorf("%w: unknown command %q", ErrInvalidInput, command)
	}
	_, data, err := s.resolve(ctx, input.MatchID, input.TeamID)
	if err != nil {
		return TrackerState{}, err
	}

	at := effectiveTime(s.now(), input.ClientTimeMS, s.cfg.MaxClockSkew)
	return s.execute(ctx, data.ID, strings.TrimSpace(input.TeamID), at, func(ctx context.Context, sc *commandScope) error {
		return fn(ctx, sc, input)
	})
}

func (s *TrackerService) resolve(ctx context.Context, matchID, teamID string) (match.Match, match.Data, error) {
	matchID = strings.TrimSpace(matchID)
	teamID = strings.TrimSpace(teamID)
	if matchID == "" || teamID == "" {
		return match.Match{}, match.Data{}, fmt.Errorf("%w: match_id and team_id are required", ErrInvalidInput)
	}

	m, exists, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, match.Data{}, fmt.Errorf("get match: %w", err)
	}
	if !exists {
		return match.Match{}, match.Data{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}
	if !m.HasTeam(teamID) {
		return match.Match{}, match.Data{}, fmt.Errorf("%w: team=%s does not play match=%s", ErrNotFound, teamID, matchID)
	}

	data, exists, err := s.matches.GetData(ctx, m.ID)
	if err != nil {
		return match.Match{}, match.Data{}, fmt.Errorf("get match data: %w", err)
	}
	if !exists {
		return match.Match{}, match.Data{}, fmt.Errorf("%w: match data for match=%s", ErrNotFound, matchID)
	}
	return m, data, nil
}

// execute runs fn inside the match transaction, retrying transient
// infrastructure faults with bounded backoff.
func (s *TrackerService) execute(ctx context.Context, matchDataID, teamID string, at time.Time, fn func(ctx context.Context, sc *commandScope) error) (TrackerState, error) {
	op := func() (TrackerState, error) {
		var state TrackerState
		err := s.store.WithinMatch(ctx, matchDataID, func(ctx context.Context, tx match.Tx) error {
			st := tx.State()
			opponentID, ok := st.Match.Opponent(teamID)
			if !ok {
				return fmt.Errorf("%w: team=%s does not play this match", ErrNotFound, teamID)
			}
			sc := &commandScope{tx: tx, st: st, teamID: teamID, opponentID: opponentID, at: at}
			if err := fn(ctx, sc); err != nil {
				return err
			}

			st.Data.UpdatedAt = s.now().UTC()
			if err := tx.SaveData(ctx, st.Data); err != nil {
				return fmt.Errorf("save match data: %w", err)
			}

			snapshot := st.Clone()
			effects := *sc
			tx.AfterCommit(func() {
				s.afterCommit(context.WithoutCancel(ctx), &snapshot, effects)
			})
			state = buildTrackerState(&snapshot, teamID, s.now())
			return nil
		})
		if err != nil {
			err = mapStoreError(err, matchDataID)
			if errors.Is(err, ErrTransient) {
				return TrackerState{}, err
			}
			return TrackerState{}, backoff.Permanent(err)
		}
		return state, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(newCommandBackOff()),
		backoff.WithMaxTries(s.cfg.RetryAttempts),
	)
}

func newCommandBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return b
}

func mapStoreError(err error, matchDataID string) error {
	switch {
	case errors.Is(err, match.ErrDataNotFound):
		return fmt.Errorf("%w: match data=%s", ErrNotFound, matchDataID)
	case errors.Is(err, match.ErrEventNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, event.ErrInvalidEvent), errors.Is(err, match.ErrInvalidData):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, playergroup.ErrCapacity):
		return fmt.Errorf("%w: %v", ErrCapacityExceeded, err)
	default:
		return err
	}
}

func (s *TrackerService) afterCommit(ctx context.Context, st *match.State, effects commandScope) {
	detail := livehub.Key{MatchID: st.Match.ID, Role: livehub.RoleDetail}
	tracker := livehub.Key{MatchID: st.Match.ID, Role: livehub.RoleTracker}

	s.hub.Publish(detail, livehub.KindStateChanged, nil)
	s.hub.Publish(tracker, livehub.KindStateChanged, nil)
	if effects.timerChanged {
		snap := timer.Compute(st.Data, st.Parts, st.Events, s.now())
		s.hub.Publish(livehub.Key{MatchID: st.Match.ID, Role: livehub.RoleTimer}, livehub.KindTimerUpdate, newTimerView(snap))
	}
	if effects.groupsChanged {
		s.hub.Publish(tracker, livehub.KindPlayerGroupsChanged, nil)
	}

	if s.scheduler == nil {
		return
	}
	s.scheduler.ScheduleAll(ctx, st.Data.ID, st.Data.UpdatedAt)
	if effects.finished {
		s.scheduler.ScheduleFinished(ctx, st.Data.ID, st.Data.UpdatedAt)
	}
}

func commandOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "bad_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	default:
		return "error"
	}
}

func (s *TrackerService) newID() (string, error) {
	value, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return value, nil
}

func (s *TrackerService) appendEvent(ctx context.Context, sc *commandScope, e event.Event) (event.Event, error) {
	eventID, err := s.newID()
	if err != nil {
		return event.Event{}, err
	}
	e.ID = eventID
	e.MatchDataID = sc.st.Data.ID
	if err := e.Validate(); err != nil {
		return event.Event{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	saved, err := sc.tx.AppendEvent(ctx, e)
	if err != nil {
		return event.Event{}, fmt.Errorf("append %s event: %w", e.Kind, err)
	}
	return saved, nil
}

// atInPart keeps in-part events from predating their part.
func atInPart(sc *commandScope, part match.Part) time.Time {
	if sc.at.Before(part.StartTime) {
		return part.StartTime
	}
	return sc.at
}

func forTeamOf(v *bool) bool {
	return v == nil || *v
}

func (sc *commandScope) attributedTeam(forTeam bool) string {
	if forTeam {
		return sc.teamID
	}
	return sc.opponentID
}

func requireNotFinished(sc *commandScope) error {
	if sc.st.Data.Finished() {
		return fmt.Errorf("%w: match is finished", ErrInvalidState)
	}
	return nil
}

// requireLive guards writes that need a running clock.
func requireLive(sc *commandScope) (match.Part, error) {
	if err := requireNotFinished(sc); err != nil {
		return match.Part{}, err
	}
	if sc.st.Data.Status != match.StatusActive {
		return match.Part{}, fmt.Errorf("%w: match is not active", ErrInvalidState)
	}
	if _, paused := event.ActivePause(sc.st.Events); paused {
		return match.Part{}, fmt.Errorf("%w: match is paused", ErrConflict)
	}
	part, ok := sc.st.ActivePart()
	if !ok {
		return match.Part{}, fmt.Errorf("%w: no active part", ErrInvalidState)
	}
	return part, nil
}

func (s *TrackerService) closePause(ctx context.Context, sc *commandScope, pause event.Event) error {
	pause = pause.Clone()
	end := sc.at
	if end.Before(pause.Time) {
		end = pause.Time
	}
	pause.Pause.Active = false
	pause.Pause.EndTime = &end
	if err := sc.tx.UpdateEvent(ctx, pause); err != nil {
		return fmt.Errorf("close pause: %w", err)
	}
	sc.timerChanged = true
	return nil
}

func (s *TrackerService) endPart(ctx context.Context, sc *commandScope, part match.Part) error {
	end := sc.at
	if end.Before(part.StartTime) {
		end = part.StartTime
	}
	part.Active = false
	part.EndTime = &end
	if err := sc.tx.SavePart(ctx, part); err != nil {
		return fmt.Errorf("end part: %w", err)
	}
	return nil
}

// swapRoles exchanges Aanval and Verdediging for both teams.
func (s *TrackerService) swapRoles(ctx context.Context, sc *commandScope) error {
	for _, idx := range playergroup.SwapAttackDefence(sc.st.Groups) {
		if err := sc.tx.SaveGroup(ctx, sc.st.Groups[idx]); err != nil {
			return fmt.Errorf("save swapped group: %w", err)
		}
	}
	sc.groupsChanged = true
	return nil
}

func backfillScore(ctx context.Context, sc *commandScope) error {
	sc.st.Data.HomeScore, sc.st.Data.AwayScore = sc.st.Score()
	return sc.tx.SaveData(ctx, sc.st.Data)
}

func (s *TrackerService) startPause(ctx context.Context, sc *commandScope, _ CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	st := sc.st
	sc.timerChanged = true

	pause, paused := event.ActivePause(st.Events)
	part, hasPart := st.ActivePart()
	switch {
	case !hasPart:
		for _, p := range st.Parts {
			if p.PartNumber == st.Data.CurrentPart {
				return fmt.Errorf("%w: part %d already played", ErrInvalidState, p.PartNumber)
			}
		}
		if paused {
			if err := s.closePause(ctx, sc, pause); err != nil {
				return err
			}
		}
		partID, err := s.newID()
		if err != nil {
			return err
		}
		if err := sc.tx.SavePart(ctx, match.Part{
			ID:          partID,
			MatchDataID: st.Data.ID,
			PartNumber:  st.Data.CurrentPart,
			StartTime:   sc.at,
			Active:      true,
		}); err != nil {
			return fmt.Errorf("start part: %w", err)
		}
		if st.Data.CurrentPart == 1 {
			st.Data.Status = match.StatusActive
		}
		return nil
	case paused:
		return s.closePause(ctx, sc, pause)
	default:
		_, err := s.appendEvent(ctx, sc, event.Event{
			Kind:   event.KindPause,
			PartID: part.ID,
			Time:   atInPart(sc, part),
			Pause:  &event.Pause{Active: true},
		})
		return err
	}
}

func (s *TrackerService) partEnd(ctx context.Context, sc *commandScope, _ CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	st := sc.st

	// Any open pause is closed, even one left behind on an inactive part.
	closedPause := false
	if pause, paused := event.ActivePause(st.Events); paused {
		if err := s.closePause(ctx, sc, pause); err != nil {
			return err
		}
		closedPause = true
	}

	part, hasPart := st.ActivePart()
	if st.Data.CurrentPart < st.Data.Parts {
		if !hasPart {
			if closedPause {
				return nil
			}
			return fmt.Errorf("%w: no active part to end", ErrInvalidState)
		}
		if err := s.endPart(ctx, sc, part); err != nil {
			return err
		}
		st.Data.CurrentPart++
		sc.timerChanged = true
		return nil
	}

	if st.Data.Status == match.StatusUpcoming {
		return fmt.Errorf("%w: match has not started", ErrInvalidState)
	}
	if hasPart {
		if err := s.endPart(ctx, sc, part); err != nil {
			return err
		}
	}
	st.Data.Status = match.StatusFinished
	sc.timerChanged = true
	sc.finished = true
	return backfillScore(ctx, sc)
}

func (s *TrackerService) shotReg(ctx context.Context, sc *commandScope, input CommandInput) error {
	return s.registerShot(ctx, sc, input, false)
}

func (s *TrackerService) goalReg(ctx context.Context, sc *commandScope, input CommandInput) error {
	return s.registerShot(ctx, sc, input, true)
}

func (s *TrackerService) registerShot(ctx context.Context, sc *commandScope, input CommandInput, scored bool) error {
	part, err := requireLive(sc)
	if err != nil {
		return err
	}
	playerID := strings.TrimSpace(input.PlayerID)
	if playerID == "" {
		return fmt.Errorf("%w: player_id is required", ErrInvalidInput)
	}

	forTeam := forTeamOf(input.ForTeam)
	if _, err := s.appendEvent(ctx, sc, event.Event{
		Kind:   event.KindShot,
		PartID: part.ID,
		Time:   atInPart(sc, part),
		Shot: &event.Shot{
			PlayerID: playerID,
			TeamID:   sc.attributedTeam(forTeam),
			ForTeam:  forTeam,
			Scored:   scored,
			ShotType: strings.TrimSpace(input.GoalType),
		},
	}); err != nil {
		return err
	}

	if scored && event.ScoredGoals(sc.st.Events)%2 == 0 {
		return s.swapRoles(ctx, sc)
	}
	return nil
}

func (s *TrackerService) substituteReg(ctx context.Context, sc *commandScope, input CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	st := sc.st
	playerIn := strings.TrimSpace(input.PlayerInID)
	playerOut := strings.TrimSpace(input.PlayerOutID)
	if playerIn == "" || playerOut == "" {
		return fmt.Errorf("%w: player_in_id and player_out_id are required", ErrInvalidInput)
	}
	if playerIn == playerOut {
		return fmt.Errorf("%w: player cannot replace itself", ErrInvalidInput)
	}

	own, _ := substitutionCounts(st, sc.teamID, sc.opponentID)
	if own >= match.MaxWissels {
		return fmt.Errorf("%w: at most %d substitutions per team", ErrCapacityExceeded, match.MaxWissels)
	}

	fieldIdx := playergroup.IndexOfPlayer(st.Groups, sc.teamID, playerOut)
	if fieldIdx < 0 || st.Groups[fieldIdx].StartingType == playergroup.TypeReserve {
		return fmt.Errorf("%w: player_out is not on the field", ErrInvalidInput)
	}
	reserveIdx := playergroup.IndexByStartingType(st.Groups, sc.teamID, playergroup.TypeReserve)
	if reserveIdx < 0 || !st.Groups[reserveIdx].Has(playerIn) {
		return fmt.Errorf("%w: player_in is not in the reserve", ErrInvalidInput)
	}

	field, reserve := &st.Groups[fieldIdx], &st.Groups[reserveIdx]
	field.Remove(playerOut)
	reserve.Remove(playerIn)
	if err := field.Add(playerIn); err != nil {
		return err
	}
	if err := reserve.Add(playerOut); err != nil {
		return err
	}
	for _, g := range []playergroup.Group{*field, *reserve} {
		if err := sc.tx.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("save group after substitution: %w", err)
		}
	}
	sc.groupsChanged = true

	partID := ""
	at := sc.at
	if part, ok := st.ActivePart(); ok {
		partID = part.ID
		at = atInPart(sc, part)
	}
	_, err := s.appendEvent(ctx, sc, event.Event{
		Kind:   event.KindSubstitution,
		PartID: partID,
		Time:   at,
		Substitution: &event.Substitution{
			GroupID:     field.ID,
			PlayerInID:  playerIn,
			PlayerOutID: playerOut,
		},
	})
	return err
}

func (s *TrackerService) substituteAgainstReg(ctx context.Context, sc *commandScope, _ CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	st := sc.st
	_, against := substitutionCounts(st, sc.teamID, sc.opponentID)
	if against >= match.MaxWissels {
		return fmt.Errorf("%w: at most %d opponent substitutions", ErrCapacityExceeded, match.MaxWissels)
	}
	reserveIdx := playergroup.IndexByStartingType(st.Groups, sc.opponentID, playergroup.TypeReserve)
	if reserveIdx < 0 {
		return fmt.Errorf("%w: opponent reserve group is missing", ErrInvalidState)
	}

	partID := ""
	at := sc.at
	if part, ok := st.ActivePart(); ok {
		partID = part.ID
		at = atInPart(sc, part)
	}
	_, err := s.appendEvent(ctx, sc, event.Event{
		Kind:         event.KindSubstitution,
		PartID:       partID,
		Time:         at,
		Substitution: &event.Substitution{GroupID: st.Groups[reserveIdx].ID},
	})
	return err
}

// timeout links to the running pause when the clock is already stopped.
func (s *TrackerService) timeout(ctx context.Context, sc *commandScope, input CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	if sc.st.Data.Status != match.StatusActive {
		return fmt.Errorf("%w: match is not active", ErrInvalidState)
	}
	part, ok := sc.st.ActivePart()
	if !ok {
		return fmt.Errorf("%w: no active part", ErrInvalidState)
	}

	at := atInPart(sc, part)
	pause, paused := event.ActivePause(sc.st.Events)
	owns := !paused
	if paused {
		if at.Before(pause.Time) {
			at = pause.Time
		}
	} else {
		created, err := s.appendEvent(ctx, sc, event.Event{
			Kind:   event.KindPause,
			PartID: part.ID,
			Time:   at,
			Pause:  &event.Pause{Active: true},
		})
		if err != nil {
			return err
		}
		pause = created
	}

	_, err := s.appendEvent(ctx, sc, event.Event{
		Kind:    event.KindTimeout,
		PartID:  part.ID,
		Time:    at,
		Timeout: &event.Timeout{TeamID: sc.attributedTeam(forTeamOf(input.ForTeam)), PauseID: pause.ID, OwnsPause: owns},
	})
	sc.timerChanged = true
	return err
}

func (s *TrackerService) newAttack(ctx context.Context, sc *commandScope, _ CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	if sc.st.Data.Status != match.StatusActive {
		return fmt.Errorf("%w: match is not active", ErrInvalidState)
	}
	part, ok := sc.st.ActivePart()
	if !ok {
		return fmt.Errorf("%w: no active part", ErrInvalidState)
	}
	_, err := s.appendEvent(ctx, sc, event.Event{
		Kind:   event.KindAttack,
		PartID: part.ID,
		Time:   atInPart(sc, part),
		Attack: &event.Attack{TeamID: sc.teamID},
	})
	return err
}

func (s *TrackerService) removeLastEvent(ctx context.Context, sc *commandScope, _ CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	st := sc.st
	last, ok := event.Last(st.Events)
	if !ok {
		return fmt.Errorf("%w: no event to remove", ErrInvalidInput)
	}

	switch last.Kind {
	case event.KindShot:
		if err := sc.tx.DeleteEvent(ctx, last.ID); err != nil {
			return fmt.Errorf("delete shot: %w", err)
		}
		if last.IsGoal() && event.ScoredGoals(st.Events)%2 == 1 {
			return s.swapRoles(ctx, sc)
		}
		return nil
	case event.KindSubstitution:
		if !last.Substitution.IsMarker() {
			if err := s.revertSubstitution(ctx, sc, *last.Substitution); err != nil {
				return err
			}
		}
		return sc.tx.DeleteEvent(ctx, last.ID)
	case event.KindPause:
		sc.timerChanged = true
		if last.Pause.Active {
			return sc.tx.DeleteEvent(ctx, last.ID)
		}
		if _, paused := event.ActivePause(st.Events); paused {
			return fmt.Errorf("%w: another pause is active", ErrConflict)
		}
		if part, ok := st.ActivePart(); !ok || part.ID != last.PartID {
			return fmt.Errorf("%w: pause belongs to a closed part", ErrConflict)
		}
		reopened := last.Clone()
		reopened.Pause.Active = true
		reopened.Pause.EndTime = nil
		return sc.tx.UpdateEvent(ctx, reopened)
	case event.KindTimeout:
		sc.timerChanged = true
		if err := sc.tx.DeleteEvent(ctx, last.ID); err != nil {
			return fmt.Errorf("delete timeout: %w", err)
		}
		if !last.Timeout.OwnsPause {
			return nil
		}
		if pause, ok := event.FindByID(st.Events, last.Timeout.PauseID); ok {
			return sc.tx.DeleteEvent(ctx, pause.ID)
		}
		return nil
	default:
		return sc.tx.DeleteEvent(ctx, last.ID)
	}
}

func (s *TrackerService) revertSubstitution(ctx context.Context, sc *commandScope, sub event.Substitution) error {
	st := sc.st
	fieldIdx := playergroup.IndexByID(st.Groups, sub.GroupID)
	if fieldIdx < 0 {
		return fmt.Errorf("%w: substitution group is missing", ErrConflict)
	}
	reserveIdx := playergroup.IndexByStartingType(st.Groups, st.Groups[fieldIdx].TeamID, playergroup.TypeReserve)
	if reserveIdx < 0 || !st.Groups[fieldIdx].Has(sub.PlayerInID) || !st.Groups[reserveIdx].Has(sub.PlayerOutID) {
		return fmt.Errorf("%w: substitution can no longer be reverted", ErrConflict)
	}

	field, reserve := &st.Groups[fieldIdx], &st.Groups[reserveIdx]
	field.Remove(sub.PlayerInID)
	reserve.Remove(sub.PlayerOutID)
	if err := field.Add(sub.PlayerOutID); err != nil {
		return err
	}
	if err := reserve.Add(sub.PlayerInID); err != nil {
		return err
	}
	for _, g := range []playergroup.Group{*field, *reserve} {
		if err := sc.tx.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("save group after revert: %w", err)
		}
	}
	sc.groupsChanged = true
	return nil
}

// assignGroup replaces a group's players. Players move out of the team's
// other groups.
func (s *TrackerService) assignGroup(ctx context.Context, sc *commandScope, input CommandInput) error {
	if err := requireNotFinished(sc); err != nil {
		return err
	}
	st := sc.st
	idx := playergroup.IndexByID(st.Groups, strings.TrimSpace(input.GroupID))
	if idx < 0 || st.Groups[idx].TeamID != sc.teamID {
		return fmt.Errorf("%w: group does not belong to team", ErrNotFound)
	}

	playerIDs, err := normalizeIDs(input.PlayerIDs)
	if err != nil {
		return err
	}
	if capacity := st.Groups[idx].StartingType.Capacity(); len(playerIDs) > capacity {
		return fmt.Errorf("%w: group %s holds at most %d players", ErrCapacityExceeded, st.Groups[idx].StartingType, capacity)
	}

	assigned := make(map[string]struct{}, len(playerIDs))
	for _, playerID := range playerIDs {
		assigned[playerID] = struct{}{}
	}
	for i := range st.Groups {
		if i == idx || st.Groups[i].TeamID != sc.teamID {
			continue
		}
		changed := false
		for playerID := range assigned {
			if st.Groups[i].Remove(playerID) {
				changed = true
			}
		}
		if changed {
			if err := sc.tx.SaveGroup(ctx, st.Groups[i]); err != nil {
				return fmt.Errorf("save group: %w", err)
			}
		}
	}

	st.Groups[idx].PlayerIDs = playerIDs
	if err := sc.tx.SaveGroup(ctx, st.Groups[idx]); err != nil {
		return fmt.Errorf("save group: %w", err)
	}

	players := make([]roster.MatchPlayer, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		players = append(players, rosterEntry(st.Data.ID, sc.teamID, playerID))
	}
	if err := sc.tx.UpsertMatchPlayers(ctx, players); err != nil {
		return fmt.Errorf("upsert match players: %w", err)
	}
	sc.groupsChanged = true
	return nil
}

func rosterEntry(matchDataID, teamID, playerID string) roster.MatchPlayer {
	return roster.MatchPlayer{MatchDataID: matchDataID, TeamID: teamID, PlayerID: playerID}
}

func normalizeIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		value := strings.TrimSpace(raw)
		if value == "" {
			return nil, fmt.Errorf("%w: ids must not be empty", ErrInvalidInput)
		}
		if _, ok := seen[value]; ok {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidInput, value)
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out, nil
}
