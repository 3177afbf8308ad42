package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jason-s-yu/gamehub/internal/models"
)

// Inbound message payloads. Every frame is a JSON object whose "type" field
// selects one of these; the remaining fields sit next to it.

type createRoomMsg struct {
	PlayerName string        `json:"playerName" validate:"required,max=32"`
	GameID     models.GameID `json:"gameId" validate:"required"`
	MaxPlayers int           `json:"maxPlayers" validate:"omitempty,min=2,max=16"`
}

type joinRoomMsg struct {
	RoomID     string `json:"roomId" validate:"required"`
	PlayerName string `json:"playerName" validate:"required,max=32"`
}

type roomMsg struct {
	RoomID string `json:"roomId" validate:"required"`
}

type roomPlayerMsg struct {
	RoomID   string `json:"roomId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
}

type setReadyMsg struct {
	RoomID   string `json:"roomId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	IsReady  bool   `json:"isReady"`
}

type startGameMsg struct {
	RoomID string          `json:"roomId" validate:"required"`
	Config json.RawMessage `json:"config"`
}

type changeGameMsg struct {
	RoomID    string          `json:"roomId" validate:"required"`
	NewGameID models.GameID   `json:"newGameId" validate:"required"`
	Config    json.RawMessage `json:"config"`
}

type guessMsg struct {
	RoomID   string `json:"roomId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Guess    *int   `json:"guess" validate:"required"`
}

type choiceMsg struct {
	RoomID   string `json:"roomId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Choice   string `json:"choice" validate:"required"`
}

type moveMsg struct {
	RoomID   string `json:"roomId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Row      *int   `json:"row" validate:"required"`
	Col      *int   `json:"col" validate:"required"`
}

type columnMsg struct {
	RoomID   string `json:"roomId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Col      *int   `json:"col" validate:"required"`
}

type powerUpMsg struct {
	RoomID      string `json:"roomId" validate:"required"`
	PlayerID    string `json:"playerId" validate:"required"`
	PowerUpType string `json:"powerUpType" validate:"required"`
	TargetRow   *int   `json:"targetRow"`
	TargetCol   *int   `json:"targetCol"`
}

type rpsChoiceMsg struct {
	RoomID      string `json:"roomId" validate:"required"`
	PlayerID    string `json:"playerId" validate:"required"`
	Choice      string `json:"choice" validate:"required"`
	PowerUpType string `json:"powerUpType"`
}

type setWordMsg struct {
	RoomID   string `json:"roomId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Word     string `json:"word" validate:"required,max=40"`
}

type guessLetterMsg struct {
	RoomID      string `json:"roomId" validate:"required"`
	PlayerID    string `json:"playerId" validate:"required"`
	Letter      string `json:"letter" validate:"required"`
	PowerUpType string `json:"powerUpType"`
}

type createPermanentRoomMsg struct {
	Name       string        `json:"name" validate:"required,max=50"`
	GameID     models.GameID `json:"gameId" validate:"required"`
	MaxPlayers int           `json:"maxPlayers" validate:"omitempty,min=2,max=16"`
	PlayerName string        `json:"playerName" validate:"omitempty,max=32"`
}

type getMyRoomMsg struct {
	PlayerName string `json:"playerName" validate:"omitempty,max=32"`
}

type updateRoomNameMsg struct {
	RoomID string `json:"roomId" validate:"required"`
	Name   string `json:"name" validate:"required,max=50"`
}

// decode unmarshals raw into dst and runs its struct validation.
func decode(v *validator.Validate, raw []byte, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return models.Validation("Invalid message format")
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.Validation("Invalid %s: %s", lowerFirst(fe.Field()), describeTag(fe))
		}
		return models.Validation("Invalid message")
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
