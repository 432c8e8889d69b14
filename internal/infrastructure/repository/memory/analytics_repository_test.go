package memory

import (
	"context"
	"testing"

	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/domain/minutes"
)

func TestImpactRepository_ReplaceScopesToVersion(t *testing.T) {
	t.Parallel()

	repo := NewImpactRepository()
	ctx := context.Background()

	if err := repo.Replace(ctx, "md-1", impact.V5, []impact.Row{{PlayerID: "p-1", Score: 1}, {PlayerID: "p-2", Score: 2}}); err != nil {
		t.Fatalf("seed v5: %v", err)
	}
	if err := repo.Replace(ctx, "md-1", impact.Latest, []impact.Row{{PlayerID: "p-1", Score: 3}, {PlayerID: "p-2", Score: 4}}); err != nil {
		t.Fatalf("seed latest: %v", err)
	}
	if err := repo.Replace(ctx, "md-1", impact.Latest, []impact.Row{{PlayerID: "p-1", Score: 5}}); err != nil {
		t.Fatalf("replace latest: %v", err)
	}

	rows, err := repo.ListByMatch(ctx, "md-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var latest, older int
	for _, row := range rows {
		if row.MatchDataID != "md-1" {
			t.Fatalf("row lost its match data id: %+v", row)
		}
		switch row.AlgorithmVersion {
		case impact.Latest:
			latest++
			if row.PlayerID != "p-1" || row.Score != 5 {
				t.Fatalf("unexpected latest row: %+v", row)
			}
		case impact.V5:
			older++
		}
	}
	if latest != 1 || older != 2 {
		t.Fatalf("expected 1 latest and 2 v5 rows, got latest=%d v5=%d", latest, older)
	}
}

func TestMinutesRepository_ReplaceWithNoRowsClearsMatch(t *testing.T) {
	t.Parallel()

	repo := NewMinutesRepository()
	ctx := context.Background()

	if err := repo.Replace(ctx, "md-1", minutes.AlgorithmVersion, []minutes.Row{{PlayerID: "p-1", MinutesPlayed: 12}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.Replace(ctx, "md-2", minutes.AlgorithmVersion, []minutes.Row{{PlayerID: "p-9", MinutesPlayed: 3}}); err != nil {
		t.Fatalf("seed other match: %v", err)
	}
	if err := repo.Replace(ctx, "md-1", minutes.AlgorithmVersion, nil); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if rows, _ := repo.ListByMatch(ctx, "md-1"); len(rows) != 0 {
		t.Fatalf("expected md-1 cleared, got %+v", rows)
	}
	if rows, _ := repo.ListByMatch(ctx, "md-2"); len(rows) != 1 {
		t.Fatalf("expected md-2 untouched, got %+v", rows)
	}
}
