package models

// RoomAction is one accepted protocol action, recorded for the historian.
type RoomAction struct {
	RoomID      string                 `json:"room_id"`
	GameID      GameID                 `json:"game_id"`
	ActionIndex int64                  `json:"action_index"`
	PlayerID    string                 `json:"player_id"`
	UserID      string                 `json:"user_id,omitempty"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"`
}
