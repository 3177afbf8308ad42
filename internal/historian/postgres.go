package historian

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/gamehub/internal/models"
)

// endActions close a room session when they are recorded.
var endActions = map[string]bool{
	"game_finished":     true,
	"match_over":        true,
	"rps_match_over":    true,
	"hangman_game_over": true,
	"game_abandoned":    true,
}

// PostgresSink writes actions to room_actions and keeps room_sessions current.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (p *PostgresSink) WriteBatch(ctx context.Context, actions []models.RoomAction) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, a := range actions {
			if err := insertActionTx(ctx, tx, a); err != nil {
				return fmt.Errorf("insert action %s/%d: %w", a.RoomID, a.ActionIndex, err)
			}
		}
		return nil
	})
}

func insertActionTx(ctx context.Context, tx pgx.Tx, a models.RoomAction) error {
	upsertSessionQ := `
		INSERT INTO room_sessions (room_id, game_id, status, started_at, last_action_at)
		VALUES ($1, $2, 'active', NOW(), NOW())
		ON CONFLICT (room_id)
		DO UPDATE SET game_id = EXCLUDED.game_id, status = 'active', last_action_at = NOW(), ended_at = NULL
	`
	if _, err := tx.Exec(ctx, upsertSessionQ, a.RoomID, string(a.GameID)); err != nil {
		return err
	}

	var userID *uuid.UUID
	if id, err := uuid.Parse(a.UserID); err == nil {
		userID = &id
	}
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}
	createdAt := time.Now()
	if a.Timestamp > 0 {
		createdAt = time.UnixMilli(a.Timestamp)
	}
	insertQ := `
		INSERT INTO room_actions (room_id, game_id, action_index, player_id, user_id, action_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, insertQ, a.RoomID, string(a.GameID), a.ActionIndex, a.PlayerID, userID, a.ActionType, payload, createdAt); err != nil {
		return err
	}

	if endActions[a.ActionType] {
		finalizeQ := `
			UPDATE room_sessions
			SET status = 'completed', ended_at = NOW()
			WHERE room_id = $1 AND status = 'active'
		`
		if _, err := tx.Exec(ctx, finalizeQ, a.RoomID); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresSink) MarkAbandoned(ctx context.Context, roomID string) error {
	q := `
		UPDATE room_sessions
		SET status = 'abandoned', ended_at = NOW()
		WHERE room_id = $1 AND status = 'active'
	`
	_, err := p.pool.Exec(ctx, q, roomID)
	return err
}
