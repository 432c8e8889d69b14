package jobscheduler

import (
	"context"
	"time"
)

type DispatchStatus string

const (
	StatusSent      DispatchStatus = "sent"
	StatusCompleted DispatchStatus = "completed"
	StatusFailed    DispatchStatus = "failed"
)

// DispatchEvent is one transition of a derivation job in the dispatch ledger.
type DispatchEvent struct {
	DispatchID   string
	Task         string
	JobPath      string
	MatchDataID  string
	Status       DispatchStatus
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}

// Repository is the dispatch ledger. Events are keyed by DispatchID and a
// later status replaces an earlier one.
type Repository interface {
	UpsertEvent(ctx context.Context, event DispatchEvent) error
}
