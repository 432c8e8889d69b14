package minutes

import "context"

type Repository interface {
	Replace(ctx context.Context, matchDataID, version string, rows []Row) error
	ListByMatch(ctx context.Context, matchDataID string) ([]Row, error)
}
