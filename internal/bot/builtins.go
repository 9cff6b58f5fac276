package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/dayuer/cacophony-go/internal/commands"
)

// corePlugin owns the commands every bot has.
const corePlugin = "core"

func (a *App) registerBuiltins() {
	for _, e := range []commands.Entry{
		{Name: "help", Summary: "Show the list of commands, or the usage of one.", Usage: "help [command]", Handler: a.cmdHelp},
		{Name: "ping", Summary: "Check that the bot is alive.", Usage: "ping", Handler: a.cmdPing},
		{Name: "say", Summary: "Make the bot say something.", Usage: "say <text>", Handler: a.cmdSay},
		{Name: "mute", Summary: "Stop the bot from talking on its own.", Usage: "mute", Handler: a.cmdMute},
		{Name: "unmute", Summary: "Let the bot talk on its own again.", Usage: "unmute", Handler: a.cmdUnmute},
	} {
		e.Plugin = corePlugin
		a.commands.Register(e)
	}
}

func (a *App) cmdPing(_ context.Context, req *commands.Request) error {
	a.Reply(req.Message, "_Pong!_")
	return nil
}

func (a *App) cmdSay(ctx context.Context, req *commands.Request) error {
	text := req.ArgString()
	if text == "" {
		a.Reply(req.Message, fmt.Sprintf("_Usage: %s text_", a.Prefixize("say")))
		return nil
	}
	conv, _, err := a.conversation(ctx, req.Message.ServerID, "")
	if err != nil {
		return err
	}
	if conv.Muted() {
		return nil
	}
	a.Reply(req.Message, text)
	return nil
}

func (a *App) cmdMute(ctx context.Context, req *commands.Request) error {
	return a.setMuted(ctx, req, true)
}

func (a *App) cmdUnmute(ctx context.Context, req *commands.Request) error {
	return a.setMuted(ctx, req, false)
}

// setMuted stores the flag; the settings listener applies it to the live
// conversation.
func (a *App) setMuted(ctx context.Context, req *commands.Request, muted bool) error {
	serverID := req.Message.ServerID
	if _, _, err := a.conversation(ctx, serverID, ""); err != nil {
		return err
	}
	value, state := "false", "unmute"
	if muted {
		value, state = "true", "mute"
	}
	if err := a.settings.Set(ctx, serverID, KeyMuted, value); err != nil {
		return err
	}
	a.Reply(req.Message, fmt.Sprintf("_The bot is now %s!_", state))
	return nil
}

func (a *App) cmdHelp(_ context.Context, req *commands.Request) error {
	msg := req.Message
	if len(req.Args) > 0 {
		name := strings.TrimPrefix(req.Args[0], a.cfg.CommandPrefix)
		e, ok := a.commands.Lookup(name)
		if !ok {
			a.DirectMessage(msg.Channel, msg.Author.ID, fmt.Sprintf("_Unknown command %s_", a.Prefixize(name)))
			return nil
		}
		a.DirectMessage(msg.Channel, msg.Author.ID,
			fmt.Sprintf("**%s**: %s\n_Usage: %s_", a.Prefixize(name), e.Summary, a.Prefixize(e.Usage)))
		return nil
	}

	var b strings.Builder
	b.WriteString("**Available commands:**\n")
	for _, name := range a.commands.Names() {
		e, _ := a.commands.Lookup(name)
		fmt.Fprintf(&b, "- **%s**: %s\n", a.Prefixize(name), e.Summary)
	}
	fmt.Fprintf(&b, "\nType `%s` for details.", a.Prefixize("help <command>"))
	a.DirectMessage(msg.Channel, msg.Author.ID, b.String())
	return nil
}
