// Package welcome greets new server members with a direct message read from a
// per-server file.
package welcome

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/events"
	"github.com/dayuer/cacophony-go/internal/plugins"
)

const (
	Name = "welcome"

	// SettingKey names the per-server setting holding the message file path.
	SettingKey = "welcome_message_file"
)

type Plugin struct {
	host plugins.Host
	log  *zap.Logger
}

func New(host plugins.Host) (plugins.Plugin, error) {
	return &Plugin{host: host, log: host.Logger().Named(Name)}, nil
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Hooks() []events.Entry {
	return []events.Entry{{Kind: events.KindMemberJoin, Name: Name, Hook: p.onMemberJoin}}
}

// onMemberJoin never stops the chain; missing configuration is only logged.
func (p *Plugin) onMemberJoin(ctx context.Context, ev *events.Event) (bool, error) {
	member := ev.Member
	if member == nil {
		return true, nil
	}

	path, err := p.host.Settings().Get(ctx, member.ServerID, SettingKey, "")
	if err != nil {
		return true, err
	}
	if path == "" {
		p.log.Warn("no welcome message configured", zap.String("server", member.ServerID))
		return true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		p.log.Warn("cannot read welcome message", zap.String("path", path), zap.Error(err))
		return true, nil
	}

	p.log.Info("welcoming member", zap.String("member", member.Member.Name), zap.String("server", member.ServerID))
	p.host.DirectMessage(member.Channel, member.Member.ID, string(content))
	return true, nil
}
