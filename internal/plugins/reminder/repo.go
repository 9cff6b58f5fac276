package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dayuer/cacophony-go/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cacophony_remind (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	transport   TEXT    NOT NULL,
	server_id   TEXT    NOT NULL,
	channel_id  TEXT    NOT NULL,
	author_id   TEXT    NOT NULL,
	author_name TEXT    NOT NULL DEFAULT '',
	due_at      INTEGER NOT NULL,
	description TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS cacophony_remind_due ON cacophony_remind (due_at);`

// Reminder is one stored reminder.
type Reminder struct {
	ID          int64
	Transport   string
	ServerID    string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	DueAt       time.Time
	Description string
}

// Repo persists reminders in SQLite.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate(ctx context.Context) error {
	return store.Migrate(ctx, r.db, schema)
}

// Add stores rem and returns its id.
func (r *Repo) Add(ctx context.Context, rem Reminder) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cacophony_remind
			(transport, server_id, channel_id, author_id, author_name, due_at, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rem.Transport, rem.ServerID, rem.ChannelID, rem.AuthorID, rem.AuthorName,
		rem.DueAt.Unix(), rem.Description)
	if err != nil {
		return 0, fmt.Errorf("add reminder: %w", err)
	}
	return res.LastInsertId()
}

// DeleteOwned deletes reminder id only if it belongs to author on that
// server and channel. It reports whether a row was deleted.
func (r *Repo) DeleteOwned(ctx context.Context, id int64, serverID, channelID, authorID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cacophony_remind
		WHERE id = ? AND server_id = ? AND channel_id = ? AND author_id = ?`,
		id, serverID, channelID, authorID)
	if err != nil {
		return false, fmt.Errorf("delete reminder %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Remove deletes reminder id unconditionally.
func (r *Repo) Remove(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cacophony_remind WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove reminder %d: %w", id, err)
	}
	return nil
}

// Upcoming returns up to limit reminders of a server, closest first.
func (r *Repo) Upcoming(ctx context.Context, serverID string, limit int) ([]Reminder, error) {
	return r.query(ctx, `WHERE server_id = ? ORDER BY due_at ASC, id ASC LIMIT ?`, serverID, limit)
}

// Due returns every reminder whose time has come.
func (r *Repo) Due(ctx context.Context, now time.Time) ([]Reminder, error) {
	return r.query(ctx, `WHERE due_at <= ? ORDER BY due_at ASC, id ASC`, now.Unix())
}

func (r *Repo) query(ctx context.Context, where string, args ...any) ([]Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, transport, server_id, channel_id, author_id, author_name, due_at, description
		FROM cacophony_remind `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rem Reminder
		var due int64
		if err := rows.Scan(&rem.ID, &rem.Transport, &rem.ServerID, &rem.ChannelID,
			&rem.AuthorID, &rem.AuthorName, &due, &rem.Description); err != nil {
			return nil, err
		}
		rem.DueAt = time.Unix(due, 0)
		out = append(out, rem)
	}
	return out, rows.Err()
}
