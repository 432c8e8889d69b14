package match

import "github.com/riskibarqy/korfbal-live/internal/domain/playergroup"

func groupWith(id string, players ...string) playergroup.Group {
	return playergroup.Group{ID: id, StartingType: playergroup.TypeReserve, CurrentType: playergroup.TypeReserve, PlayerIDs: players}
}
