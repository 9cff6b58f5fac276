// Package commands provides the prefix command registry and its per-channel
// permission gate.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
)

// Wildcard in a restriction list allows every channel.
const Wildcard = "*"

// Request is one parsed command invocation.
type Request struct {
	Name    string
	Args    []string
	Message *bus.InboundMessage
}

// ArgString returns the arguments joined by single spaces.
func (r *Request) ArgString() string {
	return strings.Join(r.Args, " ")
}

// Handler executes a command.
type Handler func(ctx context.Context, req *Request) error

// Entry is a command handler plus the text shown by help.
type Entry struct {
	Name    string
	Plugin  string // owner, empty for built-ins
	Summary string
	Usage   string
	Handler Handler
}

// Restrictions looks up the channels a command is limited to on a server.
// ok is false when the server has no restriction for the command.
type Restrictions interface {
	CommandChannels(serverID, command string) (channels []string, ok bool)
}

// Registry maps command names to ordered handler lists.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string][]Entry
	restrict Restrictions
	log      *zap.Logger
}

// NewRegistry creates an empty registry. restrict may be nil.
func NewRegistry(restrict Restrictions, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		entries:  make(map[string][]Entry),
		restrict: restrict,
		log:      log.Named("commands"),
	}
}

// Register appends e to the handlers of e.Name.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Name] = append(r.entries[e.Name], e)
	r.log.Debug("command registered", zap.String("name", e.Name), zap.String("plugin", e.Plugin))
}

// Lookup returns the first entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.entries[name]
	if len(list) == 0 {
		return Entry{}, false
	}
	return list[0], true
}

// Handlers returns how many handlers are registered under name.
func (r *Registry) Handlers(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[name])
}

// Names returns every registered command name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAllowed reports whether name may run in channel on serverID. A configured
// restriction wins; otherwise any registered command is allowed.
func (r *Registry) IsAllowed(serverID, channel, name string) bool {
	if r.restrict != nil {
		if channels, ok := r.restrict.CommandChannels(serverID, name); ok {
			for _, c := range channels {
				if c == Wildcard || c == channel {
					return true
				}
			}
			return false
		}
	}
	return r.Handlers(name) > 0
}

// Dispatch runs every handler registered for req.Name in registration order
// and returns how many ran. Unknown commands are ignored. A handler that
// fails or panics is logged and the next one still runs.
func (r *Registry) Dispatch(ctx context.Context, req *Request) int {
	r.mu.RLock()
	list := r.entries[req.Name]
	r.mu.RUnlock()

	for _, e := range list {
		if err := invoke(ctx, e, req); err != nil {
			r.log.Error("command handler failed",
				zap.String("command", req.Name),
				zap.String("plugin", e.Plugin),
				zap.Error(err))
		}
	}
	return len(list)
}

func invoke(ctx context.Context, e Entry, req *Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return e.Handler(ctx, req)
}

// Parse splits a prefixed message into a command name and its arguments.
// ok is false when text does not start with prefix or names no command.
func Parse(prefix, text string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(text[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}
