package match

import (
	"context"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/event"
	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
)

// Query filters match listings. Zero values are unbounded.
type Query struct {
	TeamIDs    []string
	SeasonID   string
	Statuses   []Status
	From       time.Time
	To         time.Time
	Descending bool
	Limit      int
}

// Repository exposes fixture reads and creation.
type Repository interface {
	GetByID(ctx context.Context, matchID string) (Match, bool, error)
	GetData(ctx context.Context, matchID string) (Data, bool, error)
	List(ctx context.Context, query Query) ([]Overview, error)
	Create(ctx context.Context, m Match, data Data, groups []playergroup.Group) error
}

// Store owns the live state of matches. WithinMatch serialises commands on
// one match: fn runs inside a single transaction holding the match lock.
type Store interface {
	WithinMatch(ctx context.Context, matchDataID string, fn func(ctx context.Context, tx Tx) error) error
	Load(ctx context.Context, matchDataID string) (State, error)
}

// Tx is the write side of one locked match. Every write is mirrored into
// State so later steps of the same command observe it. Callers assign ids;
// AppendEvent assigns the store sequence.
type Tx interface {
	State() *State
	SaveData(ctx context.Context, data Data) error
	SavePart(ctx context.Context, part Part) error
	SaveGroup(ctx context.Context, group playergroup.Group) error
	AppendEvent(ctx context.Context, e event.Event) (event.Event, error)
	UpdateEvent(ctx context.Context, e event.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
	UpsertMatchPlayers(ctx context.Context, players []roster.MatchPlayer) error
	// AfterCommit registers fn to run once the transaction commits.
	AfterCommit(fn func())
}
