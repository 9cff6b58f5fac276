// Package reverse provides the reverse command.
package reverse

import (
	"context"
	"fmt"

	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/plugins"
)

const Name = "reverse"

type Plugin struct {
	host plugins.Host
}

func New(host plugins.Host) (plugins.Plugin, error) {
	return &Plugin{host: host}, nil
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Commands() []commands.Entry {
	return []commands.Entry{{
		Name:    "reverse",
		Summary: "Reverse a string.",
		Usage:   "reverse <text>",
		Handler: p.reverse,
	}}
}

func (p *Plugin) reverse(_ context.Context, req *commands.Request) error {
	if len(req.Args) == 0 {
		p.host.Reply(req.Message, fmt.Sprintf("_Usage: %s string_", p.host.Prefixize("reverse")))
		return nil
	}
	p.host.Reply(req.Message, Reverse(req.ArgString()))
	return nil
}

// Reverse reverses s rune by rune.
func Reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
