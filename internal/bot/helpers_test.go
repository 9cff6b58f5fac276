package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/config"
	"github.com/dayuer/cacophony-go/internal/plugins"
	"github.com/dayuer/cacophony-go/internal/session"
	"github.com/dayuer/cacophony-go/internal/store"
)

type fakeBrain struct {
	mu        sync.Mutex
	learned   []string
	reply     string
	generated int
}

func (b *fakeBrain) Learn(_ context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.learned = append(b.learned, text)
	return nil
}

func (b *fakeBrain) Generate(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generated++
	return b.reply, nil
}

func (b *fakeBrain) Learned() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.learned...)
}

func (b *fakeBrain) Generated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generated
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []bus.Envelope
	stopped bool
	fail    bool
}

func (f *fakeTransport) Send(_ context.Context, env bus.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport down")
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) StopAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTransport) Sent() []bus.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.Envelope(nil), f.sent...)
}

func (f *fakeTransport) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type harness struct {
	app       *App
	brain     *fakeBrain
	transport *fakeTransport
	draw      float64
}

type harnessOption func(*config.Config, *Options)

func withCatalog(cat plugins.Catalog, names ...string) harnessOption {
	return func(c *config.Config, o *Options) {
		o.Catalog = cat
		c.Plugins = names
	}
}

func withConfig(fn func(*config.Config)) harnessOption {
	return func(c *config.Config, _ *Options) { fn(c) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{brain: &fakeBrain{reply: "hello there"}, transport: &fakeTransport{}, draw: 0.5}
	cfg := config.DefaultConfig()
	cfg.Plugins = nil
	o := Options{
		Logger:    zaptest.NewLogger(t),
		DB:        db,
		Transport: h.transport,
		Catalog:   plugins.Catalog{},
		Rand:      func() float64 { return h.draw },
	}
	for _, fn := range opts {
		fn(&cfg, &o)
	}
	o.Config = cfg

	h.app, err = New(context.Background(), o)
	require.NoError(t, err)
	return h
}

// seed creates the conversation of serverID with the fake brain.
func (h *harness) seed(t *testing.T, serverID string, opts session.Options) *session.Conversation {
	t.Helper()
	opts.Brain = h.brain
	if opts.Nickname == "" {
		opts.Nickname = "cacophony"
	}
	conv, created, err := h.app.Sessions().GetOrCreate(serverID, func() (*session.Conversation, error) {
		return session.NewConversation(serverID, opts), nil
	})
	require.NoError(t, err)
	require.True(t, created)
	return conv
}

func (h *harness) contents() []string {
	var out []string
	for _, env := range h.app.Queue().Pending() {
		out = append(out, env.Content)
	}
	return out
}

func message(content string) *bus.InboundMessage {
	return &bus.InboundMessage{
		Channel:     "test",
		ServerID:    "S",
		ChannelID:   "c-general",
		ChannelName: "general",
		Author:      bus.Author{ID: "u1", Name: "alice", Mention: "<@u1>"},
		Content:     content,
	}
}
