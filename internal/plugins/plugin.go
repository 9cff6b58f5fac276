// Package plugins defines what a plugin can provide and loads the configured
// plugins into the running bot.
//
// A plugin only has to implement Plugin. Everything else is optional and
// detected by type assertion:
//
//	Loadable         OnLoad runs once, before registration
//	Readier          OnReady runs when a transport reports readiness
//	JobProvider      background jobs handed to the scheduler
//	CommandProvider  prefix commands merged into the command registry
//	HookProvider     hooks appended to the hook registry
//	Closer           released at shutdown
package plugins

import (
	"context"
	"database/sql"
	"sort"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/events"
	"github.com/dayuer/cacophony-go/internal/scheduler"
	"github.com/dayuer/cacophony-go/internal/session"
	"github.com/dayuer/cacophony-go/internal/settings"
)

// Plugin is the minimal plugin descriptor.
type Plugin interface {
	Name() string
}

type Loadable interface {
	OnLoad(ctx context.Context) error
}

type Readier interface {
	OnReady(ctx context.Context) error
}

type JobProvider interface {
	Jobs() []scheduler.Job
}

type CommandProvider interface {
	Commands() []commands.Entry
}

type HookProvider interface {
	Hooks() []events.Entry
}

type Closer interface {
	Close() error
}

// Host is the running application as seen by a plugin.
type Host interface {
	Logger() *zap.Logger
	DB() *sql.DB
	Settings() *settings.Store

	// Enqueue hands an envelope to the outbound queue.
	Enqueue(env bus.Envelope)
	// Reply posts text in the channel msg came from.
	Reply(msg *bus.InboundMessage, text string)
	// DirectMessage sends text privately to a user of a transport.
	DirectMessage(transport, userID, text string)

	Conversation(serverID string) (*session.Conversation, bool)
	// Prefixize returns name with the command prefix, e.g. "!remind".
	Prefixize(name string) string
	// DecodeOptions decodes plugin_options.<plugin> into out.
	DecodeOptions(plugin string, out any) error
}

// Factory instantiates a plugin bound to host.
type Factory func(host Host) (Plugin, error)

// Catalog maps plugin names to factories for every compiled-in plugin.
type Catalog map[string]Factory

// Names returns the catalog's plugin names, sorted.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Capabilities lists the optional interfaces p implements.
func Capabilities(p Plugin) []string {
	var caps []string
	if _, ok := p.(Loadable); ok {
		caps = append(caps, "load")
	}
	if _, ok := p.(Readier); ok {
		caps = append(caps, "ready")
	}
	if _, ok := p.(JobProvider); ok {
		caps = append(caps, "jobs")
	}
	if _, ok := p.(CommandProvider); ok {
		caps = append(caps, "commands")
	}
	if _, ok := p.(HookProvider); ok {
		caps = append(caps, "hooks")
	}
	return caps
}
