package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MessageBus moves transport events to the router.
type MessageBus struct {
	Inbound chan Event
}

// NewMessageBus creates a message bus with a buffered inbound channel.
func NewMessageBus() *MessageBus {
	return &MessageBus{Inbound: make(chan Event, 100)}
}

// PublishInbound hands an event to the router.
func (b *MessageBus) PublishInbound(ev Event) {
	b.Inbound <- ev
}

// InboundSize returns the number of pending inbound events.
func (b *MessageBus) InboundSize() int {
	return len(b.Inbound)
}

// Sender transmits a single envelope.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, env Envelope) error

func (f SenderFunc) Send(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Queue is the unbounded outbound FIFO. Any number of goroutines may Enqueue;
// a single Run loop drains it.
type Queue struct {
	mu    sync.Mutex
	items []Envelope
	ready chan struct{}
	log   *zap.Logger
}

// NewQueue creates an empty outbound queue.
func NewQueue(log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		ready: make(chan struct{}, 1),
		log:   log.Named("queue"),
	}
}

// Enqueue appends env to the tail. It never blocks.
func (q *Queue) Enqueue(env Envelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Len returns the number of envelopes waiting to be sent.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a copy of the envelopes waiting to be sent, head first.
func (q *Queue) Pending() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Envelope(nil), q.items...)
}

func (q *Queue) pop() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Envelope{}, false
	}
	env := q.items[0]
	q.items[0] = Envelope{}
	q.items = q.items[1:]
	return env, true
}

// Run sends queued envelopes one at a time, in order, until ctx is cancelled.
// A failed send is logged and the envelope is dropped.
func (q *Queue) Run(ctx context.Context, sender Sender) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		env, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.ready:
				continue
			}
		}

		if err := sender.Send(ctx, env); err != nil {
			q.log.Warn("send failed, dropping envelope",
				zap.String("id", env.ID),
				zap.String("channel", env.Channel),
				zap.String("target", env.Target.ID),
				zap.Error(err))
			continue
		}
		q.log.Debug("sent", zap.String("id", env.ID), zap.String("channel", env.Channel))
	}
}

// Discard drops everything still queued and returns how many envelopes were lost.
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	if n > 0 {
		q.log.Info("discarded pending envelopes", zap.Int("count", n))
	}
	return n
}
