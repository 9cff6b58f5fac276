// Package lane serializes work per conversation.
//
// Events of the same conversation can arrive faster than they are handled.
// Each conversation key gets its own "lane": a FIFO worked by a single
// goroutine, so two events of one server are never handled at the same time
// while different servers still run in parallel. A lane's worker exits once
// it has been idle for a while and is recreated on the next submission.
package lane

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("lane manager stopped")

// Task is one unit of work run inside a lane.
type Task func(ctx context.Context)

// lane manages a single conversation's queue.
type lane struct {
	key        string
	queue      chan Task
	pending    int // submitted but not finished; guarded by Manager.mu
	lastActive time.Time
}

// Manager manages lanes for all conversations.
type Manager struct {
	mu          sync.Mutex
	lanes       map[string]*lane
	idleTimeout time.Duration
	queueSize   int
	log         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerConfig configures a lane Manager.
type ManagerConfig struct {
	IdleTimeout time.Duration // worker exit after this long without work (default 5m)
	QueueSize   int           // per-lane buffer before Submit blocks (default 100)
	Logger      *zap.Logger
}

// NewManager creates a lane manager. Tasks receive a context derived from
// parent that is cancelled by Stop.
func NewManager(parent context.Context, cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		lanes:       make(map[string]*lane),
		idleTimeout: cfg.IdleTimeout,
		queueSize:   cfg.QueueSize,
		log:         cfg.Logger.Named("lane"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit queues task on the lane of key. Tasks of one key run one at a time
// in submission order. Submit blocks only while that lane's buffer is full.
func (m *Manager) Submit(key string, task Task) error {
	if m.ctx.Err() != nil {
		return ErrStopped
	}

	m.mu.Lock()
	l, ok := m.lanes[key]
	if !ok {
		l = &lane{key: key, queue: make(chan Task, m.queueSize), lastActive: time.Now()}
		m.lanes[key] = l
		m.wg.Add(1)
		go m.runWorker(l)
	}
	l.pending++
	m.mu.Unlock()

	select {
	case l.queue <- task:
		return nil
	case <-m.ctx.Done():
		m.mu.Lock()
		l.pending--
		m.mu.Unlock()
		return ErrStopped
	}
}

// runWorker is the per-lane worker loop.
func (m *Manager) runWorker(l *lane) {
	defer m.wg.Done()
	idle := time.NewTimer(m.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case task := <-l.queue:
			task(m.ctx)

			m.mu.Lock()
			l.pending--
			l.lastActive = time.Now()
			m.mu.Unlock()

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(m.idleTimeout)

		case <-idle.C:
			// A Submit may have reserved a slot without sending yet.
			m.mu.Lock()
			if l.pending > 0 {
				m.mu.Unlock()
				idle.Reset(m.idleTimeout)
				continue
			}
			delete(m.lanes, l.key)
			m.mu.Unlock()
			m.log.Debug("lane closed", zap.String("key", l.key))
			return

		case <-m.ctx.Done():
			return
		}
	}
}

// Len returns the number of live lanes.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}

// Pending returns the number of tasks submitted and not finished on key.
func (m *Manager) Pending(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lanes[key]; ok {
		return l.pending
	}
	return 0
}

// Stop cancels running tasks, drops queued ones and waits for every worker.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}
