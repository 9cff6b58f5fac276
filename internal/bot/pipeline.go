package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/events"
	"github.com/dayuer/cacophony-go/internal/session"
)

// HandleEvent routes one inbound event. Errors and panics end the handling of
// that event only.
func (a *App) HandleEvent(ctx context.Context, ev bus.Event) {
	defer func() {
		if p := recover(); p != nil {
			a.log.Error("event handler panicked", zap.String("source", ev.Source()), zap.Any("panic", p))
		}
	}()

	var err error
	switch e := ev.(type) {
	case *bus.Ready:
		a.setSelfID(e.Channel, e.SelfID)
		a.log.Info("transport ready", zap.String("channel", e.Channel), zap.String("self", e.SelfID))
		a.loader.Ready(ctx)
	case *bus.ServerJoin:
		err = a.handleServerJoin(ctx, e)
	case *bus.MemberJoin:
		_, err = a.hooks.Run(ctx, &events.Event{Kind: events.KindMemberJoin, Member: e})
	case *bus.InboundMessage:
		err = a.HandleMessage(ctx, e)
	default:
		a.log.Warn("unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
	if err != nil {
		a.log.Error("event handling failed", zap.String("source", ev.Source()), zap.Error(err))
	}
}

func (a *App) handleServerJoin(ctx context.Context, e *bus.ServerJoin) error {
	conv, created, err := a.conversation(ctx, e.ServerID, e.ServerName)
	if err != nil {
		return err
	}
	if created {
		a.log.Info("serving conversation",
			zap.String("server", e.ServerID),
			zap.String("name", e.ServerName),
			zap.Bool("muted", conv.Muted()),
			zap.Strings("channels", conv.Channels()))
	}
	_, err = a.hooks.Run(ctx, &events.Event{Kind: events.KindServerJoin, Server: e})
	return err
}

// HandleMessage runs the message pipeline: MESSAGE hooks, then either command
// dispatch or learning plus a possible generated reply.
func (a *App) HandleMessage(ctx context.Context, msg *bus.InboundMessage) error {
	if msg.IsDirect() {
		return nil
	}
	if self := a.selfID(msg.Channel); self != "" && msg.Author.ID == self {
		return nil
	}

	cont, err := a.hooks.Run(ctx, &events.Event{Kind: events.KindMessage, Message: msg})
	if err != nil || !cont {
		return err
	}

	if name, args, ok := commands.Parse(a.cfg.CommandPrefix, msg.Content); ok {
		if !a.commands.IsAllowed(msg.ServerID, msg.ChannelName, name) {
			a.log.Debug("command not allowed here",
				zap.String("command", name),
				zap.String("server", msg.ServerID),
				zap.String("channel", msg.ChannelName))
			return nil
		}
		a.commands.Dispatch(ctx, &commands.Request{Name: name, Args: args, Message: msg})
		return nil
	}

	conv, _, err := a.conversation(ctx, msg.ServerID, "")
	if err != nil {
		return err
	}
	brn := conv.Brain()
	if err := brn.Learn(ctx, msg.Content); err != nil {
		a.log.Warn("brain learn failed", zap.String("server", msg.ServerID), zap.Error(err))
	}

	if conv.Muted() || !conv.IsChannelAuthorized(msg.ChannelID, msg.ChannelName) {
		return nil
	}

	mentioned := a.mentioned(conv, msg)
	if !mentioned && a.rand() >= conv.Chattiness() {
		return nil
	}

	reply, err := brn.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if reply == "" {
		return nil
	}
	if mentioned && msg.Author.Mention != "" {
		reply = msg.Author.Mention + " " + reply
	}

	ev := &events.Event{Kind: events.KindAnswer, Message: msg, Answer: reply}
	cont, err = a.hooks.Run(ctx, ev)
	if err != nil || !cont {
		return err
	}
	a.Reply(msg, ev.Answer)
	return nil
}

// mentioned reports whether msg addresses the bot, by user mention or by
// nickname anywhere in the text.
func (a *App) mentioned(conv *session.Conversation, msg *bus.InboundMessage) bool {
	if msg.MentionsUser(a.selfID(msg.Channel)) {
		return true
	}
	nick := conv.Nickname()
	return nick != "" && strings.Contains(strings.ToLower(msg.Content), strings.ToLower(nick))
}
