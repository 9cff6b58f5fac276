// Package events holds the hook registry: ordered interceptor chains keyed by
// event kind.
package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
)

// Kind is a hookable event kind.
type Kind int

const (
	KindMessage    Kind = iota // inbound message, before command routing
	KindAnswer                 // generated reply, before it is enqueued
	KindMemberJoin             // user joined a server
	KindServerJoin             // bot became available on a server
)

var kindNames = [...]string{"message", "answer", "member_join", "server_join"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every hookable kind.
func Kinds() []Kind {
	return []Kind{KindMessage, KindAnswer, KindMemberJoin, KindServerJoin}
}

// Event is the payload handed to hooks. Which fields are set depends on Kind.
type Event struct {
	Kind    Kind
	Message *bus.InboundMessage // KindMessage, KindAnswer
	Answer  string              // KindAnswer: the candidate reply
	Member  *bus.MemberJoin     // KindMemberJoin
	Server  *bus.ServerJoin     // KindServerJoin
}

// ServerID returns the server the event happened on.
func (e *Event) ServerID() string {
	switch {
	case e.Message != nil:
		return e.Message.ServerID
	case e.Member != nil:
		return e.Member.ServerID
	case e.Server != nil:
		return e.Server.ServerID
	}
	return ""
}

// ChannelName returns the channel of message and answer events, empty for
// server-wide events.
func (e *Event) ChannelName() string {
	if e.Message != nil {
		return e.Message.ChannelName
	}
	return ""
}

// Wildcard in a hook's channel list enables it everywhere on the server.
const Wildcard = "*"

// Restrictions looks up where a hook owner may run. ok is false when the
// server does not configure its hooks, in which case every hook runs. When
// ok is true, an owner with no channels is disabled on that server.
type Restrictions interface {
	HookChannels(serverID, owner string) (channels []string, ok bool)
}

// Hook intercepts an event. Returning false stops the chain.
type Hook func(ctx context.Context, ev *Event) (bool, error)

// Entry is a hook declared by a plugin.
type Entry struct {
	Kind Kind
	Name string
	Hook Hook
}

type registered struct {
	owner string
	hook  Hook
}

// Registry keeps one ordered hook list per kind.
type Registry struct {
	mu       sync.RWMutex
	hooks    map[Kind][]registered
	restrict Restrictions
	log      *zap.Logger
}

// NewRegistry creates an empty hook registry. restrict may be nil.
func NewRegistry(restrict Restrictions, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		hooks:    make(map[Kind][]registered),
		restrict: restrict,
		log:      log.Named("hooks"),
	}
}

// Register appends hook to the chain for kind. The same hook registered twice
// runs twice.
func (r *Registry) Register(kind Kind, owner string, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[kind] = append(r.hooks[kind], registered{owner: owner, hook: hook})
	r.log.Debug("hook registered", zap.Stringer("kind", kind), zap.String("owner", owner))
}

// Count returns the number of hooks registered for kind.
func (r *Registry) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[kind])
}

// Owners returns the owners of the hooks for kind, in invocation order.
func (r *Registry) Owners(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.hooks[kind]))
	for i, h := range r.hooks[kind] {
		out[i] = h.owner
	}
	return out
}

// Run invokes the hooks for ev.Kind in registration order, skipping those
// not enabled for the event's server and channel. It returns false as soon
// as a hook stops the chain. A hook error ends the chain and is returned to
// the caller.
func (r *Registry) Run(ctx context.Context, ev *Event) (bool, error) {
	r.mu.RLock()
	chain := r.hooks[ev.Kind]
	r.mu.RUnlock()

	for _, h := range chain {
		if !r.enabled(ev, h.owner) {
			continue
		}
		cont, err := h.hook(ctx, ev)
		if err != nil {
			return false, fmt.Errorf("%s hook %s: %w", ev.Kind, h.owner, err)
		}
		if !cont {
			r.log.Debug("chain stopped", zap.Stringer("kind", ev.Kind), zap.String("by", h.owner))
			return false, nil
		}
	}
	return true, nil
}

// enabled reports whether owner's hooks apply to ev. Server-wide events only
// need the owner to be enabled on the server.
func (r *Registry) enabled(ev *Event, owner string) bool {
	if r.restrict == nil {
		return true
	}
	channels, ok := r.restrict.HookChannels(ev.ServerID(), owner)
	if !ok {
		return true
	}
	channel := ev.ChannelName()
	for _, c := range channels {
		if c == Wildcard || channel == "" || c == channel {
			return true
		}
	}
	return false
}
