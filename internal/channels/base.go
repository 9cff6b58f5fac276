// Package channels defines the Channel interface for chat transports and the
// manager that routes outbound envelopes to them.
package channels

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
)

// Channel is the interface that all chat transports must implement.
type Channel interface {
	// Name returns the transport identifier (e.g. "discord", "websocket").
	Name() string

	// Start connects to the platform and begins listening. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the transport.
	Stop() error

	// Send delivers an outbound envelope through this transport.
	Send(ctx context.Context, env bus.Envelope) error

	// IsRunning returns whether the transport is active.
	IsRunning() bool
}

// BaseChannel provides shared logic for all transports.
type BaseChannel struct {
	ChannelName string
	Bus         *bus.MessageBus

	log     *zap.Logger
	running atomic.Bool

	selfMu sync.RWMutex
	selfID string
}

func newBase(name string, msgBus *bus.MessageBus, log *zap.Logger) BaseChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return BaseChannel{ChannelName: name, Bus: msgBus, log: log.Named(name)}
}

func (b *BaseChannel) Name() string    { return b.ChannelName }
func (b *BaseChannel) IsRunning() bool { return b.running.Load() }

// SetSelfID records the bot's own user id on this transport.
func (b *BaseChannel) SetSelfID(id string) {
	b.selfMu.Lock()
	defer b.selfMu.Unlock()
	b.selfID = id
}

func (b *BaseChannel) SelfID() string {
	b.selfMu.RLock()
	defer b.selfMu.RUnlock()
	return b.selfID
}

// IsAllowed reports whether a message should reach the router. Only the
// bot's own messages are ignored; other bots are read like any user.
func (b *BaseChannel) IsAllowed(author bus.Author) bool {
	self := b.SelfID()
	return self == "" || author.ID != self
}

// HandleMessage checks the author and publishes msg to the bus.
func (b *BaseChannel) HandleMessage(msg *bus.InboundMessage) {
	if !b.IsAllowed(msg.Author) {
		return
	}
	msg.Channel = b.ChannelName
	b.Bus.PublishInbound(msg)
}

// Publish forwards a non-message event to the bus.
func (b *BaseChannel) Publish(ev bus.Event) {
	b.Bus.PublishInbound(ev)
}
