package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dayuer/cacophony-go/internal/bus"
)

// ErrUnknownTransport is returned when an envelope names no registered channel.
var ErrUnknownTransport = errors.New("unknown transport")

var _ bus.Sender = (*Manager)(nil)

// Manager manages all transports and routes outbound envelopes.
type Manager struct {
	Bus      *bus.MessageBus
	channels map[string]Channel
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewManager creates a channel manager.
func NewManager(msgBus *bus.MessageBus, log *zap.Logger) *Manager {
	return &Manager{
		Bus:      msgBus,
		channels: make(map[string]Channel),
		log:      log.Named("channels"),
	}
}

// Register adds a channel to the manager.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a channel by name.
func (m *Manager) Get(name string) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

// EnabledChannels returns the sorted names of registered channels.
func (m *Manager) EnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Send routes env to the transport it names.
func (m *Manager) Send(ctx context.Context, env bus.Envelope) error {
	ch := m.Get(env.Channel)
	if ch == nil {
		return fmt.Errorf("%w %q", ErrUnknownTransport, env.Channel)
	}
	return ch.Send(ctx, env)
}

// StartAll starts every channel concurrently and blocks until all of them
// returned. A failing channel does not stop the others.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	chans := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		chans[name] = ch
	}
	m.mu.RUnlock()

	if len(chans) == 0 {
		m.log.Warn("no channels enabled")
		return nil
	}

	var g errgroup.Group
	for name, ch := range chans {
		g.Go(func() error {
			m.log.Info("starting channel", zap.String("channel", name))
			if err := ch.Start(ctx); err != nil {
				m.log.Error("channel failed", zap.String("channel", name), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops all channels.
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(); err != nil {
			m.log.Warn("stopping channel", zap.String("channel", name), zap.Error(err))
		}
	}
}
