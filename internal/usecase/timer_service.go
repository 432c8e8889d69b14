package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/timer"
)

type TimerService struct {
	matches match.Repository
	store   match.Store
	now     func() time.Time
}

func NewTimerService(matches match.Repository, store match.Store) *TimerService {
	return &TimerService{matches: matches, store: store, now: time.Now}
}

// Snapshot is the timer of a match as of now. Timer pushes after commands
// carry the same view.
func (s *TimerService) Snapshot(ctx context.Context, matchID string) (TimerView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TimerService.Snapshot")
	defer span.End()

	data, exists, err := s.matches.GetData(ctx, matchID)
	if err != nil {
		return TimerView{}, fmt.Errorf("get match data: %w", err)
	}
	if !exists {
		return TimerView{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}
	st, err := s.store.Load(ctx, data.ID)
	if err != nil {
		return TimerView{}, mapStoreError(err, data.ID)
	}
	return newTimerView(timer.Compute(st.Data, st.Parts, st.Events, s.now())), nil
}
