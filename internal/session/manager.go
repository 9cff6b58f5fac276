package session

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Manager tracks one Conversation per server.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	building      singleflight.Group
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{conversations: make(map[string]*Conversation)}
}

// Get returns the conversation for serverID.
func (m *Manager) Get(serverID string) (*Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[serverID]
	return c, ok
}

// GetOrCreate returns the existing conversation or stores the one built by
// create. create runs at most once per server and without holding the
// manager lock, so a slow build never stalls other servers.
func (m *Manager) GetOrCreate(serverID string, create func() (*Conversation, error)) (*Conversation, bool, error) {
	if c, ok := m.Get(serverID); ok {
		return c, false, nil
	}

	created := false
	v, err, _ := m.building.Do(serverID, func() (any, error) {
		if c, ok := m.Get(serverID); ok {
			return c, nil
		}
		c, err := create()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.conversations[serverID] = c
		m.mu.Unlock()
		created = true
		return c, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Conversation), created, nil
}

// All returns every conversation ordered by server id.
func (m *Manager) All() []*Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID < out[j].ServerID })
	return out
}

// Clear drops every conversation. Called once the app has shut down.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = make(map[string]*Conversation)
}
