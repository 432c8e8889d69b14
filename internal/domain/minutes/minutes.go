// Package minutes derives minutes played from a role timeline.
package minutes

import (
	"math"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/playergroup"
	"github.com/riskibarqy/korfbal-live/internal/domain/timeline"
)

const AlgorithmVersion = "v1"

// Row is the persisted minutes of one player, unique per
// (match data, player, algorithm version).
type Row struct {
	MatchDataID      string
	PlayerID         string
	AlgorithmVersion string
	MinutesPlayed    float64
	ComputedAt       time.Time
}

// MatchEnd is max(1, latest event minute). Without event minutes the
// fallback is used when positive.
func MatchEnd(eventMinutes []float64, fallback float64) float64 {
	end := 0.0
	for _, m := range eventMinutes {
		if !math.IsNaN(m) && m > end {
			end = m
		}
	}
	if len(eventMinutes) == 0 && fallback > 0 {
		end = fallback
	}
	return math.Max(1, end)
}

// Played sums the player's non-reserve time inside [0, tl.End], rounded to
// two decimals.
func Played(tl timeline.Timeline, playerID string) float64 {
	total := 0.0
	for _, iv := range tl.Intervals(playerID) {
		if iv.Role == playergroup.RoleReserve {
			continue
		}
		start := math.Max(iv.Start, 0)
		end := math.Min(iv.End, tl.End)
		if end > start {
			total += end - start
		}
	}
	total = math.Min(total, tl.End)
	return math.Round(total*100) / 100
}

// Compute returns minutes played for every player in the timeline.
func Compute(tl timeline.Timeline) map[string]float64 {
	out := make(map[string]float64)
	for _, id := range tl.Players() {
		out[id] = Played(tl, id)
	}
	return out
}
