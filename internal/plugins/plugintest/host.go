// Package plugintest provides an in-memory plugins.Host for plugin tests.
package plugintest

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/plugins"
	"github.com/dayuer/cacophony-go/internal/session"
	"github.com/dayuer/cacophony-go/internal/settings"
	"github.com/dayuer/cacophony-go/internal/store"
)

var _ plugins.Host = (*Host)(nil)

// Host records every envelope instead of sending it.
type Host struct {
	Prefix  string
	Options map[string]string // plugin name -> YAML document

	mu            sync.Mutex
	sent          []bus.Envelope
	conversations map[string]*session.Conversation

	log      *zap.Logger
	db       *sql.DB
	settings *settings.Store
}

// New creates a host backed by a private in-memory database.
func New(t testing.TB) *Host {
	t.Helper()
	db, err := store.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := zaptest.NewLogger(t)
	st, err := settings.New(context.Background(), db, settings.WithLogger(log))
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	return &Host{
		Prefix:        "!",
		Options:       map[string]string{},
		conversations: map[string]*session.Conversation{},
		log:           log,
		db:            db,
		settings:      st,
	}
}

func (h *Host) Logger() *zap.Logger          { return h.log }
func (h *Host) DB() *sql.DB                  { return h.db }
func (h *Host) Settings() *settings.Store    { return h.settings }
func (h *Host) Prefixize(name string) string { return h.Prefix + name }

func (h *Host) Enqueue(env bus.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, env)
}

func (h *Host) Reply(msg *bus.InboundMessage, text string) {
	h.Enqueue(bus.NewEnvelope(msg.Channel, bus.ChannelTarget(msg.ChannelID), text))
}

func (h *Host) DirectMessage(transport, userID, text string) {
	h.Enqueue(bus.NewEnvelope(transport, bus.UserTarget(userID), text))
}

// AddConversation makes c visible through Conversation.
func (h *Host) AddConversation(c *session.Conversation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conversations[c.ServerID] = c
}

func (h *Host) Conversation(serverID string) (*session.Conversation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conversations[serverID]
	return c, ok
}

func (h *Host) DecodeOptions(plugin string, out any) error {
	doc, ok := h.Options[plugin]
	if !ok {
		return nil
	}
	return yaml.NewDecoder(strings.NewReader(doc)).Decode(out)
}

// Sent returns every envelope enqueued so far.
func (h *Host) Sent() []bus.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bus.Envelope(nil), h.sent...)
}

// Contents returns the text of every envelope enqueued so far.
func (h *Host) Contents() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.sent))
	for i, e := range h.sent {
		out[i] = e.Content
	}
	return out
}

// Reset forgets recorded envelopes.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = nil
}

// Message builds an inbound guild message.
func Message(serverID, channel, authorID, content string) *bus.InboundMessage {
	return &bus.InboundMessage{
		Channel:     "test",
		ServerID:    serverID,
		ChannelID:   channel + "-id",
		ChannelName: channel,
		Author:      bus.Author{ID: authorID, Name: authorID, Mention: "<@" + authorID + ">"},
		Content:     content,
	}
}
