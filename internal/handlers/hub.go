// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jason-s-yu/gamehub/internal/cache"
	"github.com/jason-s-yu/gamehub/internal/database"
	"github.com/jason-s-yu/gamehub/internal/game"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/jason-s-yu/gamehub/internal/room"
	"github.com/jason-s-yu/gamehub/internal/scheduler"
	"github.com/puzpuzpuz/xsync"
	"github.com/sirupsen/logrus"
)

// Options tune the hub's timing and flood control.
type Options struct {
	RPSAdvanceDelay            time.Duration
	ThisOrThatAdvanceDelay     time.Duration
	WouldYouRatherAdvanceDelay time.Duration
	MessageRate                float64
	MessageBurst               int
}

func DefaultOptions() Options {
	return Options{
		RPSAdvanceDelay:            3 * time.Second,
		ThisOrThatAdvanceDelay:     2 * time.Second,
		WouldYouRatherAdvanceDelay: 4 * time.Second,
		MessageRate:                20,
		MessageBurst:               40,
	}
}

// publishTimeout bounds a single action log write.
const publishTimeout = 2 * time.Second

// timeoutSlack is added to move deadlines so the rule module already sees
// the clock as expired when the task fires.
const timeoutSlack = 50 * time.Millisecond

type handlerFunc func(ctx context.Context, conn *Connection, raw []byte) error

// Hub routes client messages to the room directory and the rule modules and
// fans results out to each room's connections. Messages for one room are
// handled one at a time.
type Hub struct {
	dir      *room.Directory
	games    *game.Store
	sched    scheduler.Scheduler
	actions  cache.ActionLog
	users    database.UserStore
	deps     game.Deps
	opts     Options
	logger   *logrus.Logger
	validate *validator.Validate
	routes   map[string]handlerFunc

	conns   *xsync.MapOf[string, *Connection]
	groups  *xsync.MapOf[string, *xsync.MapOf[string, *Connection]]
	owners  *xsync.MapOf[string, *Connection] // player id -> owning connection
	locks   *xsync.MapOf[string, *sync.Mutex]
	seq     *xsync.MapOf[string, *atomic.Int64]
	configs *xsync.MapOf[string, json.RawMessage]
}

func NewHub(dir *room.Directory, games *game.Store, sched scheduler.Scheduler, actions cache.ActionLog, users database.UserStore, deps game.Deps, opts Options, logger *logrus.Logger) *Hub {
	if actions == nil {
		actions = cache.NoopActionLog{}
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	h := &Hub{
		dir:      dir,
		games:    games,
		sched:    sched,
		actions:  actions,
		users:    users,
		deps:     deps,
		opts:     opts,
		logger:   logger,
		validate: v,
		conns:    xsync.NewMapOf[*Connection](),
		groups:   xsync.NewMapOf[*xsync.MapOf[string, *Connection]](),
		owners:   xsync.NewMapOf[*Connection](),
		locks:    xsync.NewMapOf[*sync.Mutex](),
		seq:      xsync.NewMapOf[*atomic.Int64](),
		configs:  xsync.NewMapOf[json.RawMessage](),
	}
	h.routes = map[string]handlerFunc{
		"create_room":                h.handleCreateRoom,
		"join_room":                  h.handleJoinRoom,
		"leave_room":                 h.handleLeaveRoom,
		"set_ready":                  h.handleSetReady,
		"start_game":                 h.handleStartGame,
		"play_again":                 h.handlePlayAgain,
		"change_game":                h.handleChangeGame,
		"make_guess":                 h.handleMakeGuess,
		"submit_choice":              h.handleSubmitChoice,
		"next_question":              h.handleNextQuestion,
		"submit_this_or_that_choice": h.handleThisOrThatChoice,
		"make_move":                  h.handleMakeMove,
		"connect_4_make_move":        h.handleConnect4Move,
		"use_power_up":               h.handleUsePowerUp,
		"next_game_in_series":        h.handleNextGameInSeries,
		"rps_submit_choice":          h.handleRPSChoice,
		"hangman_set_word":           h.handleSetWord,
		"hangman_guess_letter":       h.handleGuessLetter,
		"create_permanent_room":      h.handleCreatePermanentRoom,
		"get_my_room":                h.handleGetMyRoom,
		"get_public_rooms":           h.handleGetPublicRooms,
		"update_room_name":           h.handleUpdateRoomName,
		"kick_player":                h.handleKickPlayer,
	}
	return h
}

// Register starts tracking conn.
func (h *Hub) Register(conn *Connection) {
	h.conns.Store(conn.ID, conn)
}

// Disconnect removes every player conn owns from its room, as if each had
// sent leave_room, and closes the connection's outbound queue.
func (h *Hub) Disconnect(ctx context.Context, conn *Connection) {
	for playerID, roomID := range conn.Players() {
		unlock := h.lockRoom(roomID)
		if _, err := h.removePlayer(ctx, roomID, playerID); err != nil && !errors.Is(err, models.ErrPlayerNotFound) {
			h.logger.Warnf("Room %s: failed to remove player %s on disconnect: %v", roomID, playerID, err)
		}
		unlock()
	}
	h.groups.Range(func(_ string, g *xsync.MapOf[string, *Connection]) bool {
		g.Delete(conn.ID)
		return true
	})
	h.conns.Delete(conn.ID)
	conn.close()
}

// Shutdown cancels every pending room task and closes all connections.
func (h *Hub) Shutdown() {
	h.sched.Stop()
	h.conns.Range(func(_ string, c *Connection) bool {
		c.close()
		return true
	})
}

// ConnectionCount is the number of live client sessions.
func (h *Hub) ConnectionCount() int {
	return h.conns.Size()
}

// HandleMessage decodes and runs one inbound frame. Failures are reported to
// conn as an error event and never escape.
func (h *Hub) HandleMessage(ctx context.Context, conn *Connection, raw []byte) {
	if !conn.limiter.Allow() {
		conn.WriteError(models.Capacity("Too many messages, slow down"))
		return
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		conn.WriteError(models.Validation("Invalid message format"))
		return
	}

	entry := h.logger.WithFields(logrus.Fields{"conn": conn.ID, "type": env.Type})
	entry.Debug("handling message")
	if err := h.dispatch(ctx, conn, env.Type, raw); err != nil {
		if models.KindOf(err) == models.KindInternal {
			entry.Errorf("message failed: %v", err)
		} else {
			entry.Warnf("message rejected: %v", err)
		}
		conn.WriteError(err)
	}
}

func (h *Hub) dispatch(ctx context.Context, conn *Connection, typ string, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.Internal(fmt.Errorf("panic handling %s: %v", typ, r))
		}
	}()
	fn, ok := h.routes[typ]
	if !ok {
		return models.Validation("Unknown message type: %s", typ)
	}
	return fn(ctx, conn, raw)
}

func (h *Hub) decode(raw []byte, dst interface{}) error {
	return decode(h.validate, raw, dst)
}

// lockRoom serializes work on one room and returns the unlock func.
func (h *Hub) lockRoom(roomID string) func() {
	mu, ok := h.locks.Load(roomID)
	if !ok {
		mu, _ = h.locks.LoadOrStore(roomID, &sync.Mutex{})
	}
	mu.Lock()
	return mu.Unlock
}

// withRoom runs fn on a snapshot of roomID while holding its lock.
func (h *Hub) withRoom(roomID string, fn func(r *models.Room) error) error {
	unlock := h.lockRoom(roomID)
	defer unlock()
	r, ok := h.dir.GetRoom(roomID)
	if !ok {
		return models.ErrRoomNotFound
	}
	return fn(r)
}

// ownPlayer rejects actions for a player this connection did not create.
func (h *Hub) ownPlayer(conn *Connection, playerID string) error {
	c, ok := h.owners.Load(playerID)
	if !ok || c != conn {
		return models.ErrNotYourPlayer
	}
	return nil
}

// member rejects room-level actions from connections with no player there.
func member(conn *Connection, roomID string) error {
	if !conn.hasPlayerIn(roomID) {
		return models.Authority("You are not in this room")
	}
	return nil
}

// requireUser returns the account behind conn.
func requireUser(conn *Connection) (string, error) {
	if conn.UserID == "" {
		return "", models.ErrAuthRequired
	}
	return conn.UserID, nil
}

// attach makes conn the owner of playerID and subscribes it to roomID.
func (h *Hub) attach(conn *Connection, roomID, playerID string) {
	if prev, ok := h.owners.Load(playerID); ok && prev != conn {
		prev.removePlayer(playerID)
		if !prev.hasPlayerIn(roomID) {
			h.unsubscribe(roomID, prev)
		}
	}
	h.owners.Store(playerID, conn)
	conn.addPlayer(playerID, roomID)
	g, ok := h.groups.Load(roomID)
	if !ok {
		g, _ = h.groups.LoadOrStore(roomID, xsync.NewMapOf[*Connection]())
	}
	g.Store(conn.ID, conn)
}

// detach drops playerID's ownership and, when its connection has nothing
// left in the room, the subscription. It returns the former owner.
func (h *Hub) detach(roomID, playerID string) *Connection {
	c, ok := h.owners.LoadAndDelete(playerID)
	if !ok {
		return nil
	}
	c.removePlayer(playerID)
	if !c.hasPlayerIn(roomID) {
		h.unsubscribe(roomID, c)
	}
	return c
}

func (h *Hub) unsubscribe(roomID string, conn *Connection) {
	if g, ok := h.groups.Load(roomID); ok {
		g.Delete(conn.ID)
	}
}

// broadcast sends msg to every connection subscribed to roomID.
func (h *Hub) broadcast(roomID string, msg Message) {
	g, ok := h.groups.Load(roomID)
	if !ok {
		return
	}
	g.Range(func(_ string, c *Connection) bool {
		if !c.Send(msg) {
			h.logger.Warnf("Room %s: dropped %v for connection %s", roomID, msg["type"], c.ID)
		}
		return true
	})
}

// dropRoom forgets everything the hub keeps for a room that no longer exists.
// The caller holds the room lock. A permanent room comes back under the same
// id, so its mutex stays mapped for anyone already waiting on it.
func (h *Hub) dropRoom(roomID string, permanent bool) {
	h.sched.CancelRoom(roomID)
	h.games.Delete(roomID)
	h.groups.Delete(roomID)
	h.configs.Delete(roomID)
	h.seq.Delete(roomID)
	if !permanent {
		h.locks.Delete(roomID)
	}
}

// record appends an entry to the room's action log. Failures are logged only.
func (h *Hub) record(roomID string, gameID models.GameID, playerID, actionType string, payload map[string]interface{}) {
	counter, ok := h.seq.Load(roomID)
	if !ok {
		counter, _ = h.seq.LoadOrStore(roomID, new(atomic.Int64))
	}
	userID := ""
	if c, ok := h.owners.Load(playerID); ok {
		userID = c.UserID
	}
	action := models.RoomAction{
		RoomID:      roomID,
		GameID:      gameID,
		ActionIndex: counter.Add(1),
		PlayerID:    playerID,
		UserID:      userID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   h.deps.NowMillis(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.actions.Publish(ctx, action); err != nil {
		h.logger.Warnf("Room %s: failed to publish %s: %v", roomID, actionType, err)
	}
}

// schedule runs fn after delay under the room lock, skipping it when the room
// is gone by then.
func (h *Hub) schedule(roomID, kind string, delay time.Duration, fn func(r *models.Room)) {
	h.sched.Schedule(scheduler.Key{RoomID: roomID, Kind: kind}, delay, func() {
		unlock := h.lockRoom(roomID)
		defer unlock()
		r, ok := h.dir.GetRoom(roomID)
		if !ok {
			return
		}
		fn(r)
	})
}

// finishRoom marks the room finished once its game or match has ended.
func (h *Hub) finishRoom(roomID string) *models.Room {
	h.sched.CancelRoom(roomID)
	r, err := h.dir.UpdateStatus(roomID, models.RoomFinished)
	if err != nil {
		h.logger.Warnf("Room %s: failed to mark finished: %v", roomID, err)
		return nil
	}
	h.logger.Infof("Room %s: game finished", roomID)
	return r
}

// update applies fn to the room's game if it is an S, committing the new
// state only when fn succeeds.
func update[S game.State, R any](h *Hub, roomID string, fn func(S) (S, R, error)) (S, R, error) {
	var res R
	st, err := h.games.Update(roomID, func(cur game.State) (game.State, error) {
		s, err := stateAs[S](cur)
		if err != nil {
			return nil, err
		}
		next, r, err := fn(s)
		if err != nil {
			return nil, err
		}
		res = r
		return next, nil
	})
	if err != nil {
		var zero S
		return zero, res, err
	}
	return st.(S), res, nil
}

// currentState returns the room's game as an S.
func currentState[S game.State](h *Hub, roomID string) (S, error) {
	st, ok := h.games.Get(roomID)
	if !ok {
		var zero S
		return zero, models.ErrGameNotFound
	}
	return stateAs[S](st)
}
