package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/config"
	"github.com/dayuer/cacophony-go/internal/session"
	"github.com/dayuer/cacophony-go/internal/settings"
)

// Per-server setting keys understood by the router.
const (
	KeyMuted          = "muted"
	KeyNickname       = "nickname"
	KeyChattiness     = "chattiness"
	KeyChattyChannels = "chatty_channels" // comma separated
	KeyBrain          = "brain"
	KeyWelcomeFile    = "welcome_message_file"
)

const defaultNickname = "cacophony"

// configFallback answers settings lookups from the servers section of the
// config file when nothing was stored for that server.
func (a *App) configFallback(serverID, key string) (string, bool) {
	sc, ok := a.cfg.Server(serverID)
	if !ok {
		return "", false
	}
	switch key {
	case KeyNickname:
		return sc.Nickname, sc.Nickname != ""
	case KeyChattiness:
		return strconv.FormatFloat(sc.ChattinessOrDefault(), 'f', -1, 64), true
	case KeyChattyChannels:
		return strings.Join(sc.ChattyChannels, ","), len(sc.ChattyChannels) > 0
	case KeyBrain:
		return sc.Brain, sc.Brain != ""
	case KeyWelcomeFile:
		return sc.WelcomeMessageFile, sc.WelcomeMessageFile != ""
	}
	return "", false
}

// conversation returns the state of serverID, creating it from settings on
// first use. created reports whether this call built it.
func (a *App) conversation(ctx context.Context, serverID, serverName string) (*session.Conversation, bool, error) {
	return a.sessions.GetOrCreate(serverID, func() (*session.Conversation, error) {
		get := func(key, def string) string {
			v, err := a.settings.Get(ctx, serverID, key, def)
			if err != nil {
				a.log.Warn("reading setting", zap.String("server", serverID), zap.String("key", key), zap.Error(err))
				return def
			}
			return v
		}

		spec := get(KeyBrain, a.cfg.DefaultBrain(serverID))
		b, err := a.brains.Get(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", serverID, err)
		}

		chattiness, err := strconv.ParseFloat(get(KeyChattiness, ""), 64)
		if err != nil {
			chattiness = config.DefaultChattiness
		}

		return session.NewConversation(serverID, session.Options{
			ServerName: serverName,
			Nickname:   get(KeyNickname, defaultNickname),
			Brain:      b,
			Chattiness: chattiness,
			Channels:   splitList(get(KeyChattyChannels, "")),
			Muted:      get(KeyMuted, "false") == "true",
		}), nil
	})
}

// applySetting keeps live conversations in sync with stored settings.
func (a *App) applySetting(ch settings.Change) {
	conv, ok := a.sessions.Get(ch.ServerID)
	if !ok {
		return
	}
	switch ch.Key {
	case KeyMuted:
		conv.SetMuted(ch.Value == "true")
	case KeyNickname:
		conv.SetNickname(ch.Value)
	case KeyChattiness:
		v, err := strconv.ParseFloat(ch.Value, 64)
		if err == nil {
			err = conv.SetChattiness(v)
		}
		if err != nil {
			a.log.Warn("ignoring chattiness", zap.String("server", ch.ServerID), zap.String("value", ch.Value), zap.Error(err))
		}
	case KeyChattyChannels:
		conv.SetChannels(splitList(ch.Value))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
