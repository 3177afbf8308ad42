// internal/handlers/rooms.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/jason-s-yu/gamehub/internal/scheduler"
)

func (h *Hub) handleCreateRoom(_ context.Context, conn *Connection, raw []byte) error {
	var m createRoomMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	r, p, err := h.dir.CreateRoom(m.GameID, m.PlayerName, m.MaxPlayers, conn.UserID)
	if err != nil {
		return err
	}
	unlock := h.lockRoom(r.ID)
	defer unlock()
	h.attach(conn, r.ID, p.ID)
	conn.Send(Message{"type": "room_created", "room": r, "playerId": p.ID})
	h.record(r.ID, r.GameID, p.ID, "room_created", map[string]interface{}{"maxPlayers": r.MaxPlayers})
	return nil
}

func (h *Hub) handleJoinRoom(_ context.Context, conn *Connection, raw []byte) error {
	var m joinRoomMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.withRoom(m.RoomID, func(*models.Room) error {
		r, p, err := h.dir.JoinRoom(m.RoomID, m.PlayerName, conn.UserID)
		if err != nil {
			return err
		}
		h.attach(conn, r.ID, p.ID)
		conn.Send(Message{"type": "room_joined", "room": r, "playerId": p.ID})
		h.broadcast(r.ID, Message{"type": "player_joined", "player": p, "room": r})
		h.record(r.ID, r.GameID, p.ID, "player_joined", map[string]interface{}{"name": p.Name})
		return nil
	})
}

// handleLeaveRoom is idempotent: leaving a room the player already left, or
// that no longer exists, still answers room_left.
func (h *Hub) handleLeaveRoom(ctx context.Context, conn *Connection, raw []byte) error {
	var m roomPlayerMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	if c, ok := h.owners.Load(m.PlayerID); ok && c != conn {
		return models.ErrNotYourPlayer
	}
	unlock := h.lockRoom(m.RoomID)
	_, err := h.removePlayer(ctx, m.RoomID, m.PlayerID)
	unlock()
	if err != nil && !errors.Is(err, models.ErrPlayerNotFound) {
		return err
	}
	conn.Send(Message{"type": "room_left", "roomId": m.RoomID})
	return nil
}

// removePlayer takes playerID out of roomID and tells whoever is left. A
// seated player leaving mid-game abandons the game. The caller holds the room
// lock.
func (h *Hub) removePlayer(ctx context.Context, roomID, playerID string) (*models.Room, error) {
	before, ok := h.dir.GetRoom(roomID)
	if !ok {
		h.detach(roomID, playerID)
		return nil, nil
	}
	after, err := h.dir.LeaveRoom(ctx, roomID, playerID)
	if err != nil {
		return after, err
	}
	h.record(roomID, before.GameID, playerID, "player_left", nil)
	h.detach(roomID, playerID)
	if after == nil {
		h.logger.Infof("Room %s: closed after last player left", roomID)
		h.dropRoom(roomID, before.IsPermanent)
		return nil, nil
	}
	h.broadcast(roomID, Message{"type": "player_left", "playerId": playerID, "room": after})
	if after.Status == models.RoomPlaying {
		if st, ok := h.games.Get(roomID); ok && seatsOf(st).Has(playerID) {
			after = h.abandonGame(roomID, playerID, after)
		}
	}
	return after, nil
}

// abandonGame discards the running game after a participant left it.
func (h *Hub) abandonGame(roomID, playerID string, r *models.Room) *models.Room {
	h.sched.CancelRoom(roomID)
	h.games.Delete(roomID)
	if updated, err := h.dir.UpdateStatus(roomID, models.RoomWaiting); err == nil {
		r = updated
	}
	h.logger.Infof("Room %s: game abandoned after player %s left", roomID, playerID)
	h.broadcast(roomID, Message{"type": "game_abandoned", "room": r, "playerId": playerID})
	h.record(roomID, r.GameID, playerID, "game_abandoned", nil)
	return r
}

func (h *Hub) handleSetReady(_ context.Context, conn *Connection, raw []byte) error {
	var m setReadyMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.withRoom(m.RoomID, func(*models.Room) error {
		if err := h.ownPlayer(conn, m.PlayerID); err != nil {
			return err
		}
		r, err := h.dir.SetPlayerReady(m.RoomID, m.PlayerID, m.IsReady)
		if err != nil {
			return err
		}
		h.broadcast(r.ID, Message{"type": "room_updated", "room": r})
		return nil
	})
}

func (h *Hub) handleStartGame(_ context.Context, conn *Connection, raw []byte) error {
	var m startGameMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.withRoom(m.RoomID, func(r *models.Room) error {
		if err := member(conn, r.ID); err != nil {
			return err
		}
		if r.Status == models.RoomPlaying {
			return models.ErrGameInProgress
		}
		return h.startGame(r, m.Config, "game_started")
	})
}

// handlePlayAgain restarts the room's game with the config it last used.
func (h *Hub) handlePlayAgain(_ context.Context, conn *Connection, raw []byte) error {
	var m roomMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.withRoom(m.RoomID, func(r *models.Room) error {
		if err := member(conn, r.ID); err != nil {
			return err
		}
		if r.Status == models.RoomPlaying {
			return models.ErrGameInProgress
		}
		cfg, _ := h.configs.Load(r.ID)
		return h.startGame(r, cfg, "game_reset")
	})
}

// startGame seats the first two players in a fresh game. The caller holds
// the room lock.
func (h *Hub) startGame(r *models.Room, cfg json.RawMessage, event string) error {
	seats, err := game.SeatsFrom(r.Players)
	if err != nil {
		return err
	}
	st, err := newGameState(r.GameID, seats, cfg, h.deps)
	if err != nil {
		return err
	}
	h.sched.CancelRoom(r.ID)
	h.games.Set(r.ID, st)
	h.configs.Store(r.ID, cfg)
	updated, err := h.dir.UpdateStatus(r.ID, models.RoomPlaying)
	if err != nil {
		h.games.Delete(r.ID)
		return err
	}
	h.logger.Infof("Room %s: %s started with %s and %s", r.ID, r.GameID, seats[0].ID, seats[1].ID)
	h.broadcast(r.ID, Message{"type": event, "room": updated, "gameState": view(st, false)})
	h.armMoveTimer(r.ID, st)
	h.record(r.ID, r.GameID, seats[0].ID, event, map[string]interface{}{"players": []string{seats[0].ID, seats[1].ID}})
	return nil
}

// handleChangeGame switches the room's game. The old game's state and timers
// go in the same step as the switch.
func (h *Hub) handleChangeGame(_ context.Context, conn *Connection, raw []byte) error {
	var m changeGameMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	return h.withRoom(m.RoomID, func(r *models.Room) error {
		if err := member(conn, r.ID); err != nil {
			return err
		}
		if r.IsPermanent && conn.UserID != r.OwnerID {
			return models.ErrNotRoomOwner
		}
		updated, err := h.dir.ChangeGame(r.ID, m.NewGameID)
		if err != nil {
			return err
		}
		h.sched.CancelRoom(r.ID)
		h.games.Delete(r.ID)
		h.configs.Store(r.ID, m.Config)
		h.logger.Infof("Room %s: game changed from %s to %s", r.ID, r.GameID, m.NewGameID)
		h.broadcast(r.ID, Message{"type": "game_changed", "room": updated, "newGameId": m.NewGameID, "config": m.Config})
		h.record(r.ID, m.NewGameID, "", "game_changed", map[string]interface{}{"from": r.GameID})
		return nil
	})
}

// Permanent rooms

// displayName picks the name an account plays under.
func (h *Hub) displayName(ctx context.Context, owner uuid.UUID, requested string) string {
	if requested != "" {
		return requested
	}
	if h.users != nil {
		if u, err := h.users.GetUserByID(ctx, owner); err == nil {
			return u.Username
		}
	}
	return "Owner"
}

// enterPermanent subscribes conn to a permanent room it was just put in and
// announces it when the room already had company.
func (h *Hub) enterPermanent(conn *Connection, r *models.Room, p models.Player) {
	unlock := h.lockRoom(r.ID)
	defer unlock()
	_, known := h.owners.Load(p.ID)
	h.attach(conn, r.ID, p.ID)
	if !known && len(r.Players) > 1 {
		h.broadcast(r.ID, Message{"type": "player_joined", "player": p, "room": r})
	}
	h.record(r.ID, r.GameID, p.ID, "permanent_room_entered", nil)
}

func (h *Hub) handleCreatePermanentRoom(ctx context.Context, conn *Connection, raw []byte) error {
	userID, err := requireUser(conn)
	if err != nil {
		return err
	}
	var m createPermanentRoomMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		return models.ErrAuthRequired
	}
	r, p, err := h.dir.CreateOrLoadPermanentRoom(ctx, owner, h.displayName(ctx, owner, m.PlayerName), m.Name, m.GameID, m.MaxPlayers)
	if err != nil {
		return err
	}
	h.enterPermanent(conn, r, p)
	conn.Send(Message{"type": "room_created", "room": r, "playerId": p.ID})
	return nil
}

func (h *Hub) handleGetMyRoom(ctx context.Context, conn *Connection, raw []byte) error {
	userID, err := requireUser(conn)
	if err != nil {
		return err
	}
	var m getMyRoomMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		return models.ErrAuthRequired
	}
	r, p, err := h.dir.LoadPermanentRoom(ctx, owner, h.displayName(ctx, owner, m.PlayerName))
	if errors.Is(err, models.ErrRoomNotFound) {
		conn.Send(Message{"type": "my_room_data", "room": nil})
		return nil
	}
	if err != nil {
		return err
	}
	h.enterPermanent(conn, r, p)
	conn.Send(Message{"type": "my_room_data", "room": r, "playerId": p.ID})
	return nil
}

func (h *Hub) handleGetPublicRooms(ctx context.Context, conn *Connection, _ []byte) error {
	rooms, err := h.dir.PublicRooms(ctx)
	if err != nil {
		return err
	}
	conn.Send(Message{"type": "public_rooms_list", "rooms": rooms})
	return nil
}

func (h *Hub) handleUpdateRoomName(ctx context.Context, conn *Connection, raw []byte) error {
	userID, err := requireUser(conn)
	if err != nil {
		return err
	}
	var m updateRoomNameMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		return models.ErrAuthRequired
	}
	return h.withRoom(m.RoomID, func(*models.Room) error {
		r, err := h.dir.UpdateRoomName(ctx, m.RoomID, owner, m.Name)
		if err != nil {
			return err
		}
		h.broadcast(r.ID, Message{"type": "room_name_updated", "room": r})
		return nil
	})
}

func (h *Hub) handleKickPlayer(_ context.Context, conn *Connection, raw []byte) error {
	userID, err := requireUser(conn)
	if err != nil {
		return err
	}
	var m roomPlayerMsg
	if err := h.decode(raw, &m); err != nil {
		return err
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		return models.ErrAuthRequired
	}
	return h.withRoom(m.RoomID, func(before *models.Room) error {
		r, kicked, err := h.dir.KickPlayer(m.RoomID, owner, m.PlayerID)
		if err != nil {
			return err
		}
		h.record(m.RoomID, before.GameID, kicked.ID, "player_kicked", nil)
		if c := h.detach(m.RoomID, kicked.ID); c != nil {
			c.Send(Message{"type": "player_kicked", "roomId": m.RoomID, "reason": "Removed by the room owner"})
		}
		if r == nil {
			h.dropRoom(m.RoomID, before.IsPermanent)
			return nil
		}
		h.broadcast(r.ID, Message{"type": "player_left", "playerId": kicked.ID, "room": r})
		if r.Status == models.RoomPlaying {
			if st, ok := h.games.Get(r.ID); ok && seatsOf(st).Has(kicked.ID) {
				h.abandonGame(r.ID, kicked.ID, r)
			}
		}
		return nil
	})
}

// cancelAdvance drops a pending auto-advance for roomID.
func (h *Hub) cancelAdvance(roomID string) {
	h.sched.Cancel(scheduler.Key{RoomID: roomID, Kind: scheduler.KindAutoAdvance})
}
