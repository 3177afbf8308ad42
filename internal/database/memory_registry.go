package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/jason-s-yu/gamehub/internal/room"
)

// MemoryRoomRegistry is the process-local registry used without a database.
// Identities survive room eviction but not a restart.
type MemoryRoomRegistry struct {
	mu      sync.Mutex
	byOwner map[uuid.UUID]*models.PermanentRoom
	users   UserStore
}

var _ room.Registry = (*MemoryRoomRegistry)(nil)

// NewMemoryRoomRegistry resolves owner names for listings through users.
func NewMemoryRoomRegistry(users UserStore) *MemoryRoomRegistry {
	return &MemoryRoomRegistry{byOwner: make(map[uuid.UUID]*models.PermanentRoom), users: users}
}

func (r *MemoryRoomRegistry) UpsertForOwner(_ context.Context, ownerID uuid.UUID, name string, gameID models.GameID, maxPlayers int) (*models.PermanentRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	pr, ok := r.byOwner[ownerID]
	if !ok {
		pr = &models.PermanentRoom{ID: uuid.New(), OwnerID: ownerID, CreatedAt: now}
		r.byOwner[ownerID] = pr
	}
	pr.Name = name
	pr.GameID = gameID
	pr.MaxPlayers = maxPlayers
	pr.IsActive = true
	pr.LastActive = now
	c := *pr
	return &c, nil
}

func (r *MemoryRoomRegistry) GetByOwner(_ context.Context, ownerID uuid.UUID) (*models.PermanentRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.byOwner[ownerID]
	if !ok {
		return nil, nil
	}
	c := *pr
	return &c, nil
}

func (r *MemoryRoomRegistry) UpdateName(_ context.Context, roomID, ownerID uuid.UUID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pr, ok := r.byOwner[ownerID]; ok && pr.ID == roomID {
		pr.Name = name
		pr.LastActive = time.Now()
	}
	return nil
}

func (r *MemoryRoomRegistry) setActive(ownerID uuid.UUID, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pr, ok := r.byOwner[ownerID]; ok {
		pr.IsActive = active
		pr.LastActive = time.Now()
	}
}

func (r *MemoryRoomRegistry) Activate(_ context.Context, ownerID uuid.UUID) error {
	r.setActive(ownerID, true)
	return nil
}

func (r *MemoryRoomRegistry) Deactivate(_ context.Context, ownerID uuid.UUID) error {
	r.setActive(ownerID, false)
	return nil
}

func (r *MemoryRoomRegistry) ListPublic(ctx context.Context, ownerIDs []uuid.UUID) ([]models.PublicRoom, error) {
	r.mu.Lock()
	var rooms []models.PermanentRoom
	for _, id := range ownerIDs {
		if pr, ok := r.byOwner[id]; ok && pr.IsActive {
			rooms = append(rooms, *pr)
		}
	}
	r.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].LastActive.After(rooms[j].LastActive) })
	out := make([]models.PublicRoom, 0, len(rooms))
	for _, pr := range rooms {
		// Rooms whose owner account is gone are skipped, matching the join
		// in the Postgres registry.
		u, err := r.users.GetUserByID(ctx, pr.OwnerID)
		if err != nil {
			continue
		}
		out = append(out, models.PublicRoom{PermanentRoom: pr, OwnerUsername: u.Username})
	}
	return out, nil
}
