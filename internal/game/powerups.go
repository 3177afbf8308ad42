// internal/game/powerups.go
package game

import "github.com/jason-s-yu/gamehub/internal/models"

// PowerUp is a single-use modifier owned by one player.
type PowerUp struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Used     bool   `json:"used"`
	// UsedInRound is the round (or game number) in which it was consumed.
	UsedInRound int `json:"usedInRound,omitempty"`
}

// PowerUps is the ledger of every power-up handed out in a game.
type PowerUps []PowerUp

// GrantPowerUps gives each seat one of every listed type.
func GrantPowerUps(seats Seats, types ...string) PowerUps {
	out := make(PowerUps, 0, len(seats)*len(types))
	for _, seat := range seats {
		for _, t := range types {
			out = append(out, PowerUp{Type: t, PlayerID: seat.ID})
		}
	}
	return out
}

// Consume returns a copy of the ledger with playerID's unused power-up of
// type typ marked used in round.
func (p PowerUps) Consume(playerID, typ string, round int) (PowerUps, error) {
	for i, pu := range p {
		if pu.PlayerID == playerID && pu.Type == typ && !pu.Used {
			out := append(PowerUps(nil), p...)
			out[i].Used = true
			out[i].UsedInRound = round
			return out, nil
		}
	}
	return nil, models.ErrPowerUpUnavailable
}

// Available lists the unused power-ups of playerID.
func (p PowerUps) Available(playerID string) []PowerUp {
	var out []PowerUp
	for _, pu := range p {
		if pu.PlayerID == playerID && !pu.Used {
			out = append(out, pu)
		}
	}
	return out
}

// UsedIn reports whether playerID consumed a power-up of type typ in round.
func (p PowerUps) UsedIn(playerID, typ string, round int) bool {
	for _, pu := range p {
		if pu.PlayerID == playerID && pu.Type == typ && pu.Used && pu.UsedInRound == round {
			return true
		}
	}
	return false
}

func (p PowerUps) Clone() PowerUps {
	return append(PowerUps(nil), p...)
}
