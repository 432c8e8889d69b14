package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/domain/minutes"
)

// ImpactRepository keeps one row per (match data, player, algorithm version).
type ImpactRepository struct {
	mu   sync.RWMutex
	rows map[string]map[string]impact.Row
}

func NewImpactRepository() *ImpactRepository {
	return &ImpactRepository{rows: make(map[string]map[string]impact.Row)}
}

func (r *ImpactRepository) Replace(_ context.Context, matchDataID string, version impact.Version, rows []impact.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make(map[string]impact.Row, len(r.rows[matchDataID])+len(rows))
	for key, row := range r.rows[matchDataID] {
		if row.AlgorithmVersion != version {
			kept[key] = row
		}
	}
	for _, row := range rows {
		row.MatchDataID = matchDataID
		row.AlgorithmVersion = version
		kept[row.PlayerID+"|"+string(version)] = row
	}
	r.rows[matchDataID] = kept
	return nil
}

func (r *ImpactRepository) ListByMatch(_ context.Context, matchDataID string) ([]impact.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]impact.Row, 0, len(r.rows[matchDataID]))
	for _, row := range r.rows[matchDataID] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayerID != out[j].PlayerID {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].AlgorithmVersion < out[j].AlgorithmVersion
	})
	return out, nil
}

type MinutesRepository struct {
	mu   sync.RWMutex
	rows map[string]map[string]minutes.Row
}

func NewMinutesRepository() *MinutesRepository {
	return &MinutesRepository{rows: make(map[string]map[string]minutes.Row)}
}

func (r *MinutesRepository) Replace(_ context.Context, matchDataID, version string, rows []minutes.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make(map[string]minutes.Row, len(r.rows[matchDataID])+len(rows))
	for key, row := range r.rows[matchDataID] {
		if row.AlgorithmVersion != version {
			kept[key] = row
		}
	}
	for _, row := range rows {
		row.MatchDataID = matchDataID
		row.AlgorithmVersion = version
		kept[row.PlayerID+"|"+version] = row
	}
	r.rows[matchDataID] = kept
	return nil
}

func (r *MinutesRepository) ListByMatch(_ context.Context, matchDataID string) ([]minutes.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]minutes.Row, 0, len(r.rows[matchDataID]))
	for _, row := range r.rows[matchDataID] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}
