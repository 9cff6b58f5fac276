// Package cheese is a demonstration message hook.
package cheese

import (
	"context"
	"strings"

	"github.com/dayuer/cacophony-go/internal/events"
	"github.com/dayuer/cacophony-go/internal/plugins"
)

const (
	Name  = "cheese"
	Reply = "Did you guys say 'cheese'?"
)

type Plugin struct {
	host plugins.Host
}

func New(host plugins.Host) (plugins.Plugin, error) {
	return &Plugin{host: host}, nil
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Hooks() []events.Entry {
	return []events.Entry{{Kind: events.KindMessage, Name: Name, Hook: p.onMessage}}
}

// onMessage answers and always lets the pipeline continue.
func (p *Plugin) onMessage(_ context.Context, ev *events.Event) (bool, error) {
	if ev.Message != nil && strings.Contains(strings.ToLower(ev.Message.Content), "cheese") {
		p.host.Reply(ev.Message, Reply)
	}
	return true, nil
}
