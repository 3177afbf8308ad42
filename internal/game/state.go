// internal/game/state.go
package game

import (
	"math"

	"github.com/jason-s-yu/gamehub/internal/dependencies/clock"
	"github.com/jason-s-yu/gamehub/internal/dependencies/random"
	"github.com/jason-s-yu/gamehub/internal/models"
)

// State is the value a rule module keeps for one room. Each module's *State
// implements it; callers switch on the concrete type to reach the module.
type State interface {
	GameID() models.GameID
	Phase() string
}

// Transition describes what an applied action did beyond producing a new state.
type Transition struct {
	// TurnAdvances is true when the turn passed to the other seat.
	TurnAdvances bool `json:"turnAdvances"`
	// GameOver is true when the current game (or round, for simultaneous games) ended.
	GameOver bool `json:"gameOver"`
	// MatchOver is true once the whole best-of-N series or quiz is decided.
	MatchOver bool `json:"matchOver"`
}

// Deps are the nondeterministic inputs a rule module may read.
type Deps struct {
	Random random.Random
	Clock  clock.Clock
}

// NowMillis returns the current time of d.Clock in unix milliseconds.
func (d Deps) NowMillis() int64 {
	return d.Clock.Now().UnixMilli()
}

// Seat is one of the two participants of a game.
type Seat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Seats holds the two participants in play order.
type Seats [2]Seat

// SeatsFrom takes the first two room players as the participants.
func SeatsFrom(players []models.Player) (Seats, error) {
	var s Seats
	if len(players) < 2 {
		return s, models.ErrNotEnoughPlayers
	}
	for i := 0; i < 2; i++ {
		s[i] = Seat{ID: players[i].ID, Name: players[i].Name}
	}
	return s, nil
}

// IndexOf returns the seat index of playerID, or -1.
func (s Seats) IndexOf(playerID string) int {
	for i, seat := range s {
		if seat.ID == playerID {
			return i
		}
	}
	return -1
}

func (s Seats) Has(playerID string) bool {
	return s.IndexOf(playerID) >= 0
}

// Other returns the id of the opponent of playerID.
func (s Seats) Other(playerID string) string {
	switch s.IndexOf(playerID) {
	case 0:
		return s[1].ID
	case 1:
		return s[0].ID
	}
	return ""
}

// Name returns the display name for playerID.
func (s Seats) Name(playerID string) string {
	if i := s.IndexOf(playerID); i >= 0 {
		return s[i].Name
	}
	return ""
}

// ValidBestOf reports whether n is an accepted series length.
func ValidBestOf(n int) bool {
	switch n {
	case 1, 3, 5, 7:
		return true
	}
	return false
}

// WinsNeeded is the number of game wins that decides a best-of-N series.
func WinsNeeded(bestOf int) int {
	return int(math.Ceil(float64(bestOf) / 2))
}
