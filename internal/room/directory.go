// internal/room/directory.go
package room

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/dependencies/clock"
	"github.com/jason-s-yu/gamehub/internal/dependencies/random"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 6

	DefaultCapacity          = 2
	DefaultPermanentCapacity = 8
	MaxCapacity              = 16

	maxCodeAttempts = 64
)

var errCodeSpaceExhausted = errors.New("could not allocate a free room code")

// Directory holds every live room. All methods are safe for concurrent use
// and hand out copies, so callers never share a *models.Room with it.
type Directory struct {
	mu       sync.RWMutex
	rooms    map[string]*models.Room
	registry Registry
	rnd      random.Random
	clock    clock.Clock
	logger   *logrus.Logger
}

func NewDirectory(registry Registry, rnd random.Random, clk clock.Clock, logger *logrus.Logger) *Directory {
	return &Directory{
		rooms:    make(map[string]*models.Room),
		registry: registry,
		rnd:      rnd,
		clock:    clk,
		logger:   logger,
	}
}

func capacityOr(n, def int) (int, error) {
	if n == 0 {
		return def, nil
	}
	if n < 2 || n > MaxCapacity {
		return 0, models.Validation("maxPlayers must be between 2 and %d", MaxCapacity)
	}
	return n, nil
}

func (d *Directory) newPlayer(name, userID string) models.Player {
	return models.Player{ID: uuid.NewString(), Name: strings.TrimSpace(name), UserID: userID}
}

// newCode must be called with d.mu held.
func (d *Directory) newCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := d.rnd.String(CodeLength, CodeAlphabet)
		if _, taken := d.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", models.Internal(errCodeSpaceExhausted)
}

// CreateRoom opens a temporary room with the creator as its first player.
func (d *Directory) CreateRoom(gameID models.GameID, creatorName string, maxPlayers int, userID string) (*models.Room, models.Player, error) {
	if !gameID.Valid() {
		return nil, models.Player{}, models.ErrUnknownGame
	}
	capacity, err := capacityOr(maxPlayers, DefaultCapacity)
	if err != nil {
		return nil, models.Player{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	code, err := d.newCode()
	if err != nil {
		return nil, models.Player{}, err
	}
	p := d.newPlayer(creatorName, userID)
	r := &models.Room{
		ID:         code,
		GameID:     gameID,
		Players:    []models.Player{p},
		MaxPlayers: capacity,
		Status:     models.RoomWaiting,
		CreatedAt:  d.clock.Now().UnixMilli(),
	}
	d.rooms[code] = r
	d.logger.Infof("Room %s: created for %s by player %s", code, gameID, p.ID)
	return r.Clone(), p, nil
}

// CreateOrLoadPermanentRoom resolves the owner's durable room (creating it or
// updating its name and game) and puts the caller in the live room.
func (d *Directory) CreateOrLoadPermanentRoom(ctx context.Context, ownerID uuid.UUID, displayName, name string, gameID models.GameID, maxPlayers int) (*models.Room, models.Player, error) {
	if !gameID.Valid() {
		return nil, models.Player{}, models.ErrUnknownGame
	}
	capacity, err := capacityOr(maxPlayers, DefaultPermanentCapacity)
	if err != nil {
		return nil, models.Player{}, err
	}
	pr, err := d.registry.UpsertForOwner(ctx, ownerID, strings.TrimSpace(name), gameID, capacity)
	if err != nil {
		return nil, models.Player{}, models.Internal(err)
	}
	r, p, err := d.attachPermanent(pr, ownerID, displayName, capacity, true)
	if err != nil {
		// The upsert marked the room active but its owner is still outside.
		if derr := d.registry.Deactivate(ctx, ownerID); derr != nil {
			d.logger.Errorf("Room %s: failed to mark permanent room inactive: %v", pr.ID, derr)
		}
		return nil, models.Player{}, err
	}
	return r, p, nil
}

// LoadPermanentRoom puts the owner into their durable room. It fails with
// ErrRoomNotFound when the owner has never created one.
func (d *Directory) LoadPermanentRoom(ctx context.Context, ownerID uuid.UUID, displayName string) (*models.Room, models.Player, error) {
	pr, err := d.registry.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, models.Player{}, models.Internal(err)
	}
	if pr == nil {
		return nil, models.Player{}, models.ErrRoomNotFound
	}
	capacity := pr.MaxPlayers
	if capacity == 0 {
		capacity = DefaultPermanentCapacity
	}
	r, p, err := d.attachPermanent(pr, ownerID, displayName, capacity, false)
	if err != nil {
		return nil, models.Player{}, err
	}
	if err := d.registry.Activate(ctx, ownerID); err != nil {
		d.logger.Errorf("Room %s: failed to mark permanent room active: %v", r.ID, err)
	}
	return r, p, nil
}

// attachPermanent joins the owner to the live shell of pr, building the shell
// when it is not in memory. An owner already present keeps their player; a
// returning owner needs a free seat like anyone else.
func (d *Directory) attachPermanent(pr *models.PermanentRoom, ownerID uuid.UUID, displayName string, capacity int, refresh bool) (*models.Room, models.Player, error) {
	id := pr.ID.String()
	owner := ownerID.String()

	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[id]
	if !ok {
		p := d.newPlayer(displayName, owner)
		r = &models.Room{
			ID:          id,
			GameID:      pr.GameID,
			Players:     []models.Player{p},
			MaxPlayers:  capacity,
			Status:      models.RoomWaiting,
			CreatedAt:   d.clock.Now().UnixMilli(),
			IsPermanent: true,
			OwnerID:     owner,
			Name:        pr.Name,
		}
		d.rooms[id] = r
		d.logger.Infof("Room %s: permanent room loaded for owner %s", id, owner)
		return r.Clone(), p, nil
	}

	if refresh {
		r.Name = pr.Name
		if r.Status == models.RoomWaiting {
			r.GameID = pr.GameID
		}
	}
	for _, p := range r.Players {
		if p.UserID == owner {
			return r.Clone(), p, nil
		}
	}
	if len(r.Players) >= r.MaxPlayers {
		return nil, models.Player{}, models.ErrRoomFull
	}
	p := d.newPlayer(displayName, owner)
	r.Players = append(r.Players, p)
	return r.Clone(), p, nil
}

// JoinRoom adds a player to a waiting room with a free seat.
func (d *Directory) JoinRoom(roomID, playerName, userID string) (*models.Room, models.Player, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, models.Player{}, models.ErrRoomNotFound
	}
	if len(r.Players) >= r.MaxPlayers {
		return nil, models.Player{}, models.ErrRoomFull
	}
	if r.Status != models.RoomWaiting {
		return nil, models.Player{}, models.ErrGameInProgress
	}
	p := d.newPlayer(playerName, userID)
	r.Players = append(r.Players, p)
	d.logger.Infof("Room %s: player %s joined (%d/%d)", roomID, p.ID, len(r.Players), r.MaxPlayers)
	return r.Clone(), p, nil
}

// LeaveRoom removes a player. It returns nil when the room no longer exists
// afterwards: temporary rooms are destroyed once empty and empty permanent
// rooms are evicted from memory. An owner leaving a permanent room marks it
// inactive in the registry. Leaving a room that is already gone is a no-op.
func (d *Directory) LeaveRoom(ctx context.Context, roomID, playerID string) (*models.Room, error) {
	d.mu.Lock()
	r, ok := d.rooms[roomID]
	if !ok {
		d.mu.Unlock()
		return nil, nil
	}
	idx := slices.IndexFunc(r.Players, func(p models.Player) bool { return p.ID == playerID })
	if idx < 0 {
		out := r.Clone()
		d.mu.Unlock()
		return out, models.ErrPlayerNotFound
	}
	leaving := r.Players[idx]
	r.Players = slices.Delete(r.Players, idx, idx+1)

	var out *models.Room
	if len(r.Players) == 0 {
		delete(d.rooms, roomID)
		d.logger.Infof("Room %s: last player left, removed from directory", roomID)
	} else {
		out = r.Clone()
	}
	deactivate := r.IsPermanent && r.OwnerID != "" && leaving.UserID == r.OwnerID
	ownerID := r.OwnerID
	d.mu.Unlock()

	if deactivate {
		if id, err := uuid.Parse(ownerID); err == nil {
			if err := d.registry.Deactivate(ctx, id); err != nil {
				d.logger.Errorf("Room %s: failed to deactivate permanent room: %v", roomID, err)
			}
		}
	}
	return out, nil
}

func (d *Directory) mutate(roomID string, fn func(r *models.Room) error) (*models.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// ChangeGame switches the room to another game and resets it to waiting.
// The caller drops the room's stored game state.
func (d *Directory) ChangeGame(roomID string, gameID models.GameID) (*models.Room, error) {
	if !gameID.Valid() {
		return nil, models.ErrUnknownGame
	}
	return d.mutate(roomID, func(r *models.Room) error {
		r.GameID = gameID
		r.Status = models.RoomWaiting
		for i := range r.Players {
			r.Players[i].IsReady = false
		}
		return nil
	})
}

func (d *Directory) SetPlayerReady(roomID, playerID string, ready bool) (*models.Room, error) {
	return d.mutate(roomID, func(r *models.Room) error {
		for i := range r.Players {
			if r.Players[i].ID == playerID {
				r.Players[i].IsReady = ready
				return nil
			}
		}
		return models.ErrPlayerNotFound
	})
}

func (d *Directory) UpdateStatus(roomID string, status models.RoomStatus) (*models.Room, error) {
	return d.mutate(roomID, func(r *models.Room) error {
		r.Status = status
		return nil
	})
}

// UpdateRoomName renames a permanent room. Only its owner may do so.
func (d *Directory) UpdateRoomName(ctx context.Context, roomID string, ownerID uuid.UUID, name string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.Validation("Room name cannot be empty")
	}
	r, ok := d.GetRoom(roomID)
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	if !r.IsPermanent {
		return nil, models.Lifecycle("Only permanent rooms can be renamed")
	}
	if r.OwnerID != ownerID.String() {
		return nil, models.ErrNotRoomOwner
	}
	id, err := uuid.Parse(roomID)
	if err != nil {
		return nil, models.Internal(err)
	}
	if err := d.registry.UpdateName(ctx, id, ownerID, name); err != nil {
		return nil, models.Internal(err)
	}
	return d.mutate(roomID, func(r *models.Room) error {
		r.Name = name
		return nil
	})
}

// KickPlayer removes targetID from a permanent room on the owner's behalf.
// The owner's own players cannot be kicked.
func (d *Directory) KickPlayer(roomID string, ownerID uuid.UUID, targetID string) (*models.Room, models.Player, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, models.Player{}, models.ErrRoomNotFound
	}
	if !r.IsPermanent {
		return nil, models.Player{}, models.Lifecycle("Players can only be kicked from permanent rooms")
	}
	if r.OwnerID != ownerID.String() {
		return nil, models.Player{}, models.ErrNotRoomOwner
	}
	idx := slices.IndexFunc(r.Players, func(p models.Player) bool { return p.ID == targetID })
	if idx < 0 {
		return nil, models.Player{}, models.ErrPlayerNotFound
	}
	kicked := r.Players[idx]
	if kicked.UserID == r.OwnerID {
		return nil, models.Player{}, models.Authority("You cannot kick yourself")
	}
	r.Players = slices.Delete(r.Players, idx, idx+1)
	d.logger.Infof("Room %s: owner kicked player %s", roomID, targetID)
	if len(r.Players) == 0 {
		delete(d.rooms, roomID)
		return nil, kicked, nil
	}
	return r.Clone(), kicked, nil
}

func (d *Directory) GetRoom(roomID string) (*models.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// ListRooms returns every live room, oldest first.
func (d *Directory) ListRooms() []*models.Room {
	d.mu.RLock()
	out := make([]*models.Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		out = append(out, r.Clone())
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

// RoomsForPlayer lists the ids of rooms that contain playerID.
func (d *Directory) RoomsForPlayer(playerID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for id, r := range d.rooms {
		if _, ok := r.Player(playerID); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (d *Directory) GetRoomOwnerID(roomID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r, ok := d.rooms[roomID]; ok {
		return r.OwnerID
	}
	return ""
}

func (d *Directory) IsRoomOwner(roomID, userID string) bool {
	owner := d.GetRoomOwnerID(roomID)
	return owner != "" && owner == userID
}

// ActiveAccountIDs collects the account ids linked to any player in any live
// room.
func (d *Directory) ActiveAccountIDs() []string {
	d.mu.RLock()
	seen := make(map[string]struct{})
	for _, r := range d.rooms {
		for _, p := range r.Players {
			if p.UserID != "" {
				seen[p.UserID] = struct{}{}
			}
		}
	}
	d.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PublicRooms lists active permanent rooms whose owner is connected, with
// live player counts filled in.
func (d *Directory) PublicRooms(ctx context.Context) ([]models.PublicRoom, error) {
	var owners []uuid.UUID
	for _, id := range d.ActiveAccountIDs() {
		if u, err := uuid.Parse(id); err == nil {
			owners = append(owners, u)
		}
	}
	if len(owners) == 0 {
		return []models.PublicRoom{}, nil
	}
	rooms, err := d.registry.ListPublic(ctx, owners)
	if err != nil {
		return nil, models.Internal(err)
	}
	for i := range rooms {
		if r, ok := d.GetRoom(rooms[i].ID.String()); ok {
			rooms[i].PlayerCount = len(r.Players)
			rooms[i].MaxPlayers = r.MaxPlayers
		}
		if rooms[i].MaxPlayers == 0 {
			rooms[i].MaxPlayers = DefaultPermanentCapacity
		}
	}
	return rooms, nil
}
