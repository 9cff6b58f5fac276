// Package session holds the per-server conversation state the pipeline reads
// and the built-in commands mutate.
package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dayuer/cacophony-go/internal/brain"
)

// AllChannels in the authorized set allows every channel.
const AllChannels = "*"

// Options seeds a new Conversation.
type Options struct {
	ServerName string
	Nickname   string
	Brain      brain.Brain
	Chattiness float64
	Channels   []string
	Muted      bool
}

// Conversation is the bot's state on one server.
type Conversation struct {
	ServerID   string
	ServerName string

	mu         sync.RWMutex
	brain      brain.Brain
	muted      bool
	channels   map[string]struct{}
	chattiness float64
	nickname   string
}

// NewConversation creates the state for serverID.
func NewConversation(serverID string, opts Options) *Conversation {
	c := &Conversation{
		ServerID:   serverID,
		ServerName: opts.ServerName,
		brain:      opts.Brain,
		muted:      opts.Muted,
		chattiness: clamp(opts.Chattiness),
		nickname:   opts.Nickname,
	}
	c.setChannels(opts.Channels)
	return c
}

func (c *Conversation) Brain() brain.Brain {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.brain
}

func (c *Conversation) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// SetMuted sets the mute flag and reports whether it changed.
func (c *Conversation) SetMuted(muted bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.muted != muted
	c.muted = muted
	return changed
}

func (c *Conversation) Nickname() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nickname
}

func (c *Conversation) SetNickname(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nickname = name
}

func (c *Conversation) Chattiness() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chattiness
}

// SetChattiness changes the answer probability. v must be within [0,1].
func (c *Conversation) SetChattiness(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("chattiness %.2f out of range [0,1]", v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chattiness = v
	return nil
}

// IsChannelAuthorized reports whether the bot may speak unprompted in a
// channel, matched by id or name.
func (c *Conversation) IsChannelAuthorized(channelID, channelName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.channels[AllChannels]; ok {
		return true
	}
	if _, ok := c.channels[channelID]; ok && channelID != "" {
		return true
	}
	_, ok := c.channels[channelName]
	return ok && channelName != ""
}

// Channels returns the authorized channel set, sorted.
func (c *Conversation) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// SetChannels replaces the authorized channel set.
func (c *Conversation) SetChannels(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setChannels(channels)
}

func (c *Conversation) setChannels(channels []string) {
	c.channels = make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
