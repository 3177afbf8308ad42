package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gamehub/internal/models"
)

// Registry persists the identity of permanent rooms, at most one per owner.
// Lookups return (nil, nil) when nothing is stored.
type Registry interface {
	// UpsertForOwner creates the owner's room or updates its name and game,
	// marking it active either way.
	UpsertForOwner(ctx context.Context, ownerID uuid.UUID, name string, gameID models.GameID, maxPlayers int) (*models.PermanentRoom, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*models.PermanentRoom, error)
	UpdateName(ctx context.Context, roomID, ownerID uuid.UUID, name string) error
	Activate(ctx context.Context, ownerID uuid.UUID) error
	Deactivate(ctx context.Context, ownerID uuid.UUID) error
	// ListPublic returns active rooms whose owner is among ownerIDs, most
	// recently active first.
	ListPublic(ctx context.Context, ownerIDs []uuid.UUID) ([]models.PublicRoom, error)
}
