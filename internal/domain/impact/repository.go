package impact

import "context"

// Repository persists derived impact rows, unique per (match data, player,
// version).
type Repository interface {
	// Replace makes rows the complete set for (matchDataID, version). Rows of
	// players missing from rows are removed.
	Replace(ctx context.Context, matchDataID string, version Version, rows []Row) error
	ListByMatch(ctx context.Context, matchDataID string) ([]Row, error)
}
