// Package config handles configuration loading, saving, and schema definition.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultChattiness is used for servers that do not set one.
const DefaultChattiness = 0.1

// ErrNoTransport is returned by Validate when no transport can be started.
var ErrNoTransport = errors.New("no transport configured: set token or enable websocket")

// Config is the top-level bot configuration, read from a YAML profile.
type Config struct {
	Token                  string                  `yaml:"token" env:"TOKEN"`
	CommandPrefix          string                  `yaml:"command_prefix" env:"COMMAND_PREFIX"`
	Plugins                []string                `yaml:"plugins"`
	SerializeConversations bool                    `yaml:"serialize_conversations" env:"SERIALIZE_CONVERSATIONS"`
	Logging                LoggingConfig           `yaml:"logging" envPrefix:"LOG_"`
	Database               DatabaseConfig          `yaml:"database" envPrefix:"DB_"`
	Redis                  RedisConfig             `yaml:"redis" envPrefix:"REDIS_"`
	WebSocket              WebSocketConfig         `yaml:"websocket" envPrefix:"WS_"`
	Servers                map[string]ServerConfig `yaml:"servers,omitempty"`
	PluginOptions          map[string]yaml.Node    `yaml:"plugin_options,omitempty"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`       // debug, info, warn, error
	Encoding    string `yaml:"encoding" env:"ENCODING"` // console or json
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// DatabaseConfig points at the SQLite file. Empty path keeps state in memory.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL      string `yaml:"url" env:"URL"` // redis://host:port
	Password string `yaml:"password,omitempty" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// WebSocketConfig enables the local WebSocket transport.
type WebSocketConfig struct {
	Enabled    bool     `yaml:"enabled" env:"ENABLED"`
	Listen     string   `yaml:"listen" env:"LISTEN"`
	ServerID   string   `yaml:"server_id"`
	ServerName string   `yaml:"server_name"`
	Channels   []string `yaml:"channels"`
}

// ServerConfig holds per-server bot settings.
type ServerConfig struct {
	Nickname           string                   `yaml:"nickname"`
	Brain              string                   `yaml:"brain"` // memory:// or redis://...
	Chattiness         *float64                 `yaml:"chattiness,omitempty"`
	ChattyChannels     []string                 `yaml:"chatty_channels,omitempty"`
	Commands           map[string]CommandConfig `yaml:"commands,omitempty"`
	Hooks              map[string]HookConfig    `yaml:"hooks,omitempty"` // nil enables every hook
	WelcomeMessageFile string                   `yaml:"welcome_message_file,omitempty"`
}

// CommandConfig restricts a command to a set of channels. "*" allows all.
type CommandConfig struct {
	Channels []string `yaml:"channels"`
}

// HookConfig enables a hook on a server. No channels means "*".
type HookConfig struct {
	Channels []string `yaml:"channels,omitempty"`
}

// ChattinessOrDefault returns the configured chattiness or DefaultChattiness.
func (s ServerConfig) ChattinessOrDefault() float64 {
	if s.Chattiness == nil {
		return DefaultChattiness
	}
	return *s.Chattiness
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CommandPrefix: "!",
		Plugins:       []string{"reverse", "roulette", "reminder", "urlfilter", "backquotefilter"},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Redis: RedisConfig{},
		WebSocket: WebSocketConfig{
			Listen:     "127.0.0.1:18790",
			ServerID:   "local",
			ServerName: "local",
			Channels:   []string{"general"},
		},
		Servers: map[string]ServerConfig{},
	}
}

// Server returns the settings for serverID and whether the server is configured.
func (c *Config) Server(serverID string) (ServerConfig, bool) {
	s, ok := c.Servers[serverID]
	return s, ok
}

// CommandChannels returns the channels a command is restricted to on a server.
func (c *Config) CommandChannels(serverID, command string) ([]string, bool) {
	s, ok := c.Servers[serverID]
	if !ok {
		return nil, false
	}
	cmd, ok := s.Commands[command]
	if !ok {
		return nil, false
	}
	return cmd.Channels, true
}

// HookChannels returns the channels the hooks of owner run in on a server.
// ok is false when the server has no hooks section. A server with a hooks
// section only runs the owners it lists.
func (c *Config) HookChannels(serverID, owner string) ([]string, bool) {
	s, ok := c.Servers[serverID]
	if !ok || s.Hooks == nil {
		return nil, false
	}
	h, ok := s.Hooks[owner]
	if !ok {
		return nil, true
	}
	if len(h.Channels) == 0 {
		return []string{"*"}, true
	}
	return h.Channels, true
}

// DecodePluginOptions decodes plugin_options.<name> into out. A missing
// section leaves out untouched.
func (c *Config) DecodePluginOptions(name string, out any) error {
	node, ok := c.PluginOptions[name]
	if !ok {
		return nil
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("plugin_options.%s: %w", name, err)
	}
	return nil
}

// DefaultBrain returns the brain connection string used for a server that
// does not set one: a Redis brain named after the server when redis.url is
// configured, an in-memory one otherwise.
func (c *Config) DefaultBrain(serverID string) string {
	if c.Redis.URL == "" {
		return "memory://" + serverID
	}
	u, err := url.Parse(c.Redis.URL)
	if err != nil {
		return "memory://" + serverID
	}
	if c.Redis.Password != "" && u.User == nil {
		u.User = url.UserPassword("", c.Redis.Password)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/" + strconv.Itoa(c.Redis.DB)
	}
	q := u.Query()
	q.Set("brain", serverID)
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate reports configuration that would prevent startup.
func (c *Config) Validate() error {
	if c.Token == "" && !c.WebSocket.Enabled {
		return ErrNoTransport
	}
	if c.CommandPrefix == "" {
		return errors.New("command_prefix must not be empty")
	}
	for id, s := range c.Servers {
		if v := s.ChattinessOrDefault(); v < 0 || v > 1 {
			return fmt.Errorf("servers.%s.chattiness %.2f out of range [0,1]", id, v)
		}
	}
	return nil
}
