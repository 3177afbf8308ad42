package models

// Player is a participant of one live room. Players exist only in memory.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsReady bool   `json:"isReady"`
	// UserID links the player to an account when the connection was authenticated.
	UserID string `json:"userId,omitempty"`
}
