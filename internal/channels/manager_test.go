package channels

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dayuer/cacophony-go/internal/bus"
)

type mockChannel struct {
	name     string
	startErr error

	mu      sync.Mutex
	started bool
	stopped bool
	sent    []bus.Envelope
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return m.startErr
}

func (m *mockChannel) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockChannel) Send(_ context.Context, env bus.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, env)
	return nil
}

func (m *mockChannel) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

func newTestManager(t *testing.T, chans ...Channel) *Manager {
	m := NewManager(bus.NewMessageBus(), zaptest.NewLogger(t))
	for _, ch := range chans {
		m.Register(ch)
	}
	return m
}

func TestManager_RegisterAndGet(t *testing.T) {
	a, b := &mockChannel{name: "b"}, &mockChannel{name: "a"}
	m := newTestManager(t, a, b)

	assert.Equal(t, []string{"a", "b"}, m.EnabledChannels())
	assert.Same(t, a, m.Get("b"))
	assert.Nil(t, m.Get("nope"))
}

func TestManager_SendRoutesByTransport(t *testing.T) {
	d, w := &mockChannel{name: "discord"}, &mockChannel{name: "websocket"}
	m := newTestManager(t, d, w)

	env := bus.NewEnvelope("websocket", bus.ChannelTarget("general"), "hi")
	require.NoError(t, m.Send(context.Background(), env))
	assert.Empty(t, d.sent)
	require.Len(t, w.sent, 1)
	assert.Equal(t, env.ID, w.sent[0].ID)
}

func TestManager_SendUnknownTransport(t *testing.T) {
	m := newTestManager(t)
	err := m.Send(context.Background(), bus.NewEnvelope("irc", bus.ChannelTarget("x"), "hi"))
	assert.ErrorIs(t, err, ErrUnknownTransport)
}

func TestManager_StartAllIsolatesFailures(t *testing.T) {
	ok := &mockChannel{name: "ok"}
	bad := &mockChannel{name: "bad", startErr: errors.New("boom")}
	m := newTestManager(t, ok, bad)

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, ok.IsRunning())
	assert.True(t, bad.started)
}

func TestManager_StopAll(t *testing.T) {
	a := &mockChannel{name: "a"}
	m := newTestManager(t, a)
	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, a.IsRunning())

	m.StopAll()
	assert.False(t, a.IsRunning())
}
