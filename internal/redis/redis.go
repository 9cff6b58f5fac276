// Package redis wraps go-redis for the pieces of bot state that live in Redis,
// currently the Markov brain tables.
package redis

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyBrain prefixes every brain key.
const KeyBrain = "brain:"

// ErrNotConfigured is returned by Open when no URL is set.
var ErrNotConfigured = errors.New("redis url not configured")

// Config holds Redis connection settings.
type Config struct {
	URL      string // redis://host:port/db
	Password string
	DB       int
}

// Client is a connected Redis handle.
type Client struct {
	rdb *redis.Client
	log *zap.Logger
}

// Open connects and pings the server.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	c := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Named("redis").Info("connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &Client{rdb: c, log: log.Named("redis")}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	c.log.Info("connection closed")
	return c.rdb.Close()
}

// ListPush appends value to the list at key.
func (c *Client) ListPush(ctx context.Context, key, value string) error {
	if err := c.rdb.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

// ListRandom returns a uniformly chosen element of the list at key.
// ok is false when the list is empty or missing.
func (c *Client) ListRandom(ctx context.Context, key string) (string, bool, error) {
	n, err := c.rdb.LLen(ctx, key).Result()
	if err != nil {
		return "", false, fmt.Errorf("llen %s: %w", key, err)
	}
	if n == 0 {
		return "", false, nil
	}
	val, err := c.rdb.LIndex(ctx, key, rand.Int64N(n)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lindex %s: %w", key, err)
	}
	return val, true, nil
}

// BrainKey returns the Redis key of one brain table entry.
func BrainKey(brain, entry string) string {
	return fmt.Sprintf("%s%s:%s", KeyBrain, brain, entry)
}
