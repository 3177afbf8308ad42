// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameID names the rule module that governs a room.
type GameID string

const (
	GameNumberGuessing GameID = "number-guessing"
	GameWouldYouRather GameID = "would-you-rather"
	GameThisOrThat     GameID = "this-or-that"
	GameTicTacToe      GameID = "tic-tac-toe"
	GameConnect4       GameID = "connect-4"
	GameRPS            GameID = "rock-paper-scissors"
	GameHangman        GameID = "hangman"
)

// Games lists every playable game in display order.
var Games = []GameID{
	GameNumberGuessing,
	GameWouldYouRather,
	GameThisOrThat,
	GameTicTacToe,
	GameConnect4,
	GameRPS,
	GameHangman,
}

// Valid reports whether id names a known game.
func (id GameID) Valid() bool {
	for _, g := range Games {
		if g == id {
			return true
		}
	}
	return false
}

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// Room is the live, in-memory view of a room.
type Room struct {
	ID          string     `json:"id"`
	GameID      GameID     `json:"gameId"`
	Players     []Player   `json:"players"`
	MaxPlayers  int        `json:"maxPlayers"`
	Status      RoomStatus `json:"status"`
	CreatedAt   int64      `json:"createdAt"`
	IsPermanent bool       `json:"isPermanent"`
	OwnerID     string     `json:"ownerId,omitempty"`
	Name        string     `json:"name,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = append([]Player(nil), r.Players...)
	return &c
}

// Player returns the player with the given id.
func (r *Room) Player(id string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// PermanentRoom is the durable identity of an account-owned room.
type PermanentRoom struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"ownerId"`
	Name       string    `json:"name"`
	GameID     GameID    `json:"gameId"`
	MaxPlayers int       `json:"maxPlayers"`
	IsActive   bool      `json:"isActive"`
	LastActive time.Time `json:"lastActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PublicRoom is one row of the public room listing.
type PublicRoom struct {
	PermanentRoom
	OwnerUsername string `json:"ownerUsername"`
	PlayerCount   int    `json:"playerCount"`
}
