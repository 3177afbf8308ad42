package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/gamehub/internal/models"
	"github.com/jason-s-yu/gamehub/internal/room"
)

// PostgresRoomRegistry keeps permanent room identities in permanent_rooms.
type PostgresRoomRegistry struct {
	pool *pgxpool.Pool
}

var _ room.Registry = (*PostgresRoomRegistry)(nil)

func NewPostgresRoomRegistry(pool *pgxpool.Pool) *PostgresRoomRegistry {
	return &PostgresRoomRegistry{pool: pool}
}

const permanentRoomColumns = `id, owner_id, name, game_id, max_players, is_active, last_active, created_at`

func scanPermanentRoom(row pgx.Row) (*models.PermanentRoom, error) {
	var pr models.PermanentRoom
	var gameID string
	err := row.Scan(&pr.ID, &pr.OwnerID, &pr.Name, &gameID, &pr.MaxPlayers, &pr.IsActive, &pr.LastActive, &pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	pr.GameID = models.GameID(gameID)
	return &pr, nil
}

func (r *PostgresRoomRegistry) UpsertForOwner(ctx context.Context, ownerID uuid.UUID, name string, gameID models.GameID, maxPlayers int) (*models.PermanentRoom, error) {
	q := `
	INSERT INTO permanent_rooms (id, owner_id, name, game_id, max_players, is_active, last_active)
	VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
	ON CONFLICT (owner_id) DO UPDATE
	SET name = EXCLUDED.name,
	    game_id = EXCLUDED.game_id,
	    max_players = EXCLUDED.max_players,
	    is_active = TRUE,
	    last_active = NOW()
	RETURNING ` + permanentRoomColumns

	var pr *models.PermanentRoom
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		pr, err = scanPermanentRoom(tx.QueryRow(ctx, q, uuid.New(), ownerID, name, string(gameID), maxPlayers))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert permanent room: %w", err)
	}
	return pr, nil
}

func (r *PostgresRoomRegistry) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*models.PermanentRoom, error) {
	q := `SELECT ` + permanentRoomColumns + ` FROM permanent_rooms WHERE owner_id = $1`
	pr, err := scanPermanentRoom(r.pool.QueryRow(ctx, q, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get permanent room: %w", err)
	}
	return pr, nil
}

func (r *PostgresRoomRegistry) UpdateName(ctx context.Context, roomID, ownerID uuid.UUID, name string) error {
	q := `UPDATE permanent_rooms SET name = $1, last_active = NOW() WHERE id = $2 AND owner_id = $3`
	if _, err := r.pool.Exec(ctx, q, name, roomID, ownerID); err != nil {
		return fmt.Errorf("rename permanent room: %w", err)
	}
	return nil
}

func (r *PostgresRoomRegistry) setActive(ctx context.Context, ownerID uuid.UUID, active bool) error {
	q := `UPDATE permanent_rooms SET is_active = $1, last_active = NOW() WHERE owner_id = $2`
	if _, err := r.pool.Exec(ctx, q, active, ownerID); err != nil {
		return fmt.Errorf("set permanent room active=%t: %w", active, err)
	}
	return nil
}

func (r *PostgresRoomRegistry) Activate(ctx context.Context, ownerID uuid.UUID) error {
	return r.setActive(ctx, ownerID, true)
}

func (r *PostgresRoomRegistry) Deactivate(ctx context.Context, ownerID uuid.UUID) error {
	return r.setActive(ctx, ownerID, false)
}

func (r *PostgresRoomRegistry) ListPublic(ctx context.Context, ownerIDs []uuid.UUID) ([]models.PublicRoom, error) {
	ids := make([]string, len(ownerIDs))
	for i, id := range ownerIDs {
		ids[i] = id.String()
	}
	q := `
	SELECT r.id, r.owner_id, r.name, r.game_id, r.max_players, r.is_active, r.last_active, r.created_at, u.username
	FROM permanent_rooms r
	JOIN users u ON u.id = r.owner_id
	WHERE r.is_active AND r.owner_id = ANY($1::uuid[])
	ORDER BY r.last_active DESC
	`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("list public rooms: %w", err)
	}
	defer rows.Close()

	out := []models.PublicRoom{}
	for rows.Next() {
		var pr models.PublicRoom
		var gameID string
		if err := rows.Scan(&pr.ID, &pr.OwnerID, &pr.Name, &gameID, &pr.MaxPlayers, &pr.IsActive, &pr.LastActive, &pr.CreatedAt, &pr.OwnerUsername); err != nil {
			return nil, fmt.Errorf("scan public room: %w", err)
		}
		pr.GameID = models.GameID(gameID)
		out = append(out, pr)
	}
	return out, rows.Err()
}
