// Package settings stores per-server key/value settings that can change while
// the bot runs.
//
// Lookup order for Get:
//
//	1. a row in cacophony_config
//	2. the fallback function (static YAML config)
//	3. the caller's default
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cacophony_config (
	server_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (server_id, name)
);`

// Change describes a successful Set.
type Change struct {
	ServerID string
	Key      string
	Value    string
}

// Fallback supplies values that are not stored in the database.
type Fallback func(serverID, key string) (string, bool)

// Store is the settings collaborator handed to plugins.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	onChange []func(Change)
	fallback Fallback
	log      *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithFallback sets the lookup used when no row exists.
func WithFallback(fn Fallback) Option {
	return func(s *Store) { s.fallback = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log.Named("settings") }
}

// New creates the table if needed and returns a Store.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if err := store.Migrate(ctx, db, schema); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}

// Get returns the value of key on serverID, or def.
func (s *Store) Get(ctx context.Context, serverID, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cacophony_config WHERE server_id = ? AND name = ?`,
		serverID, key).Scan(&value)
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return def, fmt.Errorf("get %s/%s: %w", serverID, key, err)
	}

	if s.fallback != nil {
		if v, ok := s.fallback(serverID, key); ok {
			return v, nil
		}
	}
	return def, nil
}

// Set stores value and notifies OnChange listeners.
func (s *Store) Set(ctx context.Context, serverID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cacophony_config (server_id, name, value) VALUES (?, ?, ?)
		ON CONFLICT (server_id, name) DO UPDATE SET value = excluded.value`,
		serverID, key, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", serverID, key, err)
	}
	s.log.Debug("setting changed", zap.String("server", serverID), zap.String("key", key))

	s.mu.RLock()
	listeners := append([]func(Change){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(Change{ServerID: serverID, Key: key, Value: value})
	}
	return nil
}

// All returns every stored setting of serverID.
func (s *Store) All(ctx context.Context, serverID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM cacophony_config WHERE server_id = ? ORDER BY name`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", serverID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// OnChange registers a callback run after every successful Set.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}
