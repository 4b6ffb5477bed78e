package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/game"
)

// SavedGameStore persists full match snapshots in Postgres. It implements
// game.GameStore: the queue is the only caller, so there is no locking here.
type SavedGameStore struct {
	db *pgxpool.Pool
}

func NewSavedGameStore(db *pgxpool.Pool) *SavedGameStore {
	return &SavedGameStore{db: db}
}

// Save upserts the snapshot. An empty id gets a fresh one assigned; the
// effective id is returned either way.
func (s *SavedGameStore) Save(ctx context.Context, id string, snap game.AppSnapshot) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO saved_games (id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET snapshot = $2, updated_at = now()
	`, id, b)
	if err != nil {
		return "", fmt.Errorf("save game %s: %w", id, err)
	}
	return id, nil
}

func (s *SavedGameStore) Load(ctx context.Context, id string) (game.AppSnapshot, bool, error) {
	var b []byte
	err := s.db.QueryRow(ctx, `
		SELECT snapshot FROM saved_games WHERE id = $1
	`, id).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.AppSnapshot{}, false, nil
	}
	if err != nil {
		return game.AppSnapshot{}, false, fmt.Errorf("load game %s: %w", id, err)
	}

	var snap game.AppSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return game.AppSnapshot{}, false, fmt.Errorf("decode game %s: %w", id, err)
	}
	return snap, true, nil
}

func (s *SavedGameStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM saved_games WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete game %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *SavedGameStore) List(ctx context.Context) ([]game.SavedGame, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, snapshot, updated_at
		FROM saved_games
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []game.SavedGame
	for rows.Next() {
		var (
			sg game.SavedGame
			b  []byte
			at time.Time
		)
		if err := rows.Scan(&sg.ID, &b, &at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &sg.Snapshot); err != nil {
			return nil, fmt.Errorf("decode game %s: %w", sg.ID, err)
		}
		sg.UpdatedAt = at
		out = append(out, sg)
	}
	return out, rows.Err()
}
