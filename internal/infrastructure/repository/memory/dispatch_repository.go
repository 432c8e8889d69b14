package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/riskibarqy/korfbal-live/internal/domain/jobscheduler"
)

// DispatchRepository keeps the latest transition per dispatch id.
type DispatchRepository struct {
	mu     sync.RWMutex
	events map[string]jobscheduler.DispatchEvent
}

func NewDispatchRepository() *DispatchRepository {
	return &DispatchRepository{events: make(map[string]jobscheduler.DispatchEvent)}
}

func (r *DispatchRepository) UpsertEvent(_ context.Context, event jobscheduler.DispatchEvent) error {
	dispatchID := strings.TrimSpace(event.DispatchID)
	if dispatchID == "" {
		return fmt.Errorf("dispatch id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[dispatchID] = event
	return nil
}

func (r *DispatchRepository) Get(dispatchID string) (jobscheduler.DispatchEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	event, ok := r.events[dispatchID]
	return event, ok
}
