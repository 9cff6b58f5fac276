package roulette

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dayuer/cacophony-go/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cacophony_roulette_player (
	server_id TEXT    NOT NULL,
	player_id TEXT    NOT NULL,
	name      TEXT    NOT NULL DEFAULT '',
	score     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (server_id, player_id)
);`

// Player is one scoreboard row.
type Player struct {
	ServerID string
	PlayerID string
	Name     string
	Score    int
}

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate(ctx context.Context) error {
	return store.Migrate(ctx, r.db, schema)
}

// Get returns the player row, or ok=false when the player never scored.
func (r *Repo) Get(ctx context.Context, serverID, playerID string) (Player, bool, error) {
	p := Player{ServerID: serverID, PlayerID: playerID}
	err := r.db.QueryRowContext(ctx, `
		SELECT name, score FROM cacophony_roulette_player
		WHERE server_id = ? AND player_id = ?`, serverID, playerID).Scan(&p.Name, &p.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("get player %s: %w", playerID, err)
	}
	return p, true, nil
}

// Put inserts or replaces a player row.
func (r *Repo) Put(ctx context.Context, p Player) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cacophony_roulette_player (server_id, player_id, name, score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (server_id, player_id) DO UPDATE SET name = excluded.name, score = excluded.score`,
		p.ServerID, p.PlayerID, p.Name, p.Score)
	if err != nil {
		return fmt.Errorf("put player %s: %w", p.PlayerID, err)
	}
	return nil
}

// AddScore credits bonus to a player, creating the row when needed.
func (r *Repo) AddScore(ctx context.Context, serverID, playerID, name string, bonus int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cacophony_roulette_player (server_id, player_id, name, score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (server_id, player_id) DO UPDATE SET name = excluded.name, score = score + excluded.score`,
		serverID, playerID, name, bonus)
	if err != nil {
		return fmt.Errorf("credit player %s: %w", playerID, err)
	}
	return nil
}

// Top returns the best players of a server.
func (r *Repo) Top(ctx context.Context, serverID string, limit int) ([]Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT player_id, name, score FROM cacophony_roulette_player
		WHERE server_id = ?
		ORDER BY score DESC, name ASC
		LIMIT ?`, serverID, limit)
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}
	defer rows.Close()

	var out []Player
	for rows.Next() {
		p := Player{ServerID: serverID}
		if err := rows.Scan(&p.PlayerID, &p.Name, &p.Score); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
