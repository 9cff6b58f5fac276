// Package reminder lets users schedule channel reminders:
//
//	!remind add <delay> <description>   delay is <n>m, <n>h, <n>d or <n>w
//	!remind del <id>
//	!remind list
//
// A cron job fires due reminders in the channel they were created in.
package reminder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/plugins"
	"github.com/dayuer/cacophony-go/internal/scheduler"
)

const Name = "reminder"

// Options is read from plugin_options.reminder.
type Options struct {
	Schedule  string `yaml:"schedule"`
	ListLimit int    `yaml:"list_limit"`
}

type Plugin struct {
	host     plugins.Host
	repo     *Repo
	schedule scheduler.Schedule
	opts     Options
	now      func() time.Time
	log      *zap.Logger
}

func New(host plugins.Host) (plugins.Plugin, error) {
	opts := Options{Schedule: "* * * * *", ListLimit: 5}
	if err := host.DecodeOptions(Name, &opts); err != nil {
		return nil, err
	}
	sched, err := scheduler.Cron(opts.Schedule)
	if err != nil {
		return nil, err
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 5
	}
	return &Plugin{
		host:     host,
		repo:     NewRepo(host.DB()),
		schedule: sched,
		opts:     opts,
		now:      time.Now,
		log:      host.Logger().Named(Name),
	}, nil
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) OnLoad(ctx context.Context) error {
	return p.repo.Migrate(ctx)
}

func (p *Plugin) Jobs() []scheduler.Job {
	return []scheduler.Job{{
		Name: "reminder",
		Run: func(ctx context.Context) error {
			p.log.Info("reminder job running")
			return scheduler.Every(ctx, p.schedule, func(ctx context.Context, _ time.Time) error {
				if _, err := p.fire(ctx); err != nil {
					p.log.Error("firing reminders", zap.Error(err))
				}
				return nil
			})
		},
	}}
}

// fire deletes each due reminder and then sends it, so a reminder is never
// sent twice. A reminder that cannot be deleted is skipped and retried on the
// next run. fire returns the number of reminders sent.
func (p *Plugin) fire(ctx context.Context) (int, error) {
	due, err := p.repo.Due(ctx, p.now())
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rem := range due {
		if err := p.repo.Remove(ctx, rem.ID); err != nil {
			p.log.Error("skipping reminder", zap.Int64("id", rem.ID), zap.Error(err))
			continue
		}
		p.host.Enqueue(bus.NewEnvelope(rem.Transport, bus.ChannelTarget(rem.ChannelID),
			"@here **Reminder:** "+rem.Description))
		sent++
	}
	return sent, nil
}

func (p *Plugin) Commands() []commands.Entry {
	return []commands.Entry{{
		Name:    "remind",
		Summary: "Manage reminders (add, del, list).",
		Usage:   "remind add <delay> <description> | remind del <id> | remind list",
		Handler: p.remind,
	}}
}

func (p *Plugin) remind(ctx context.Context, req *commands.Request) error {
	if len(req.Args) == 0 {
		p.usage(req, "[add|del|list] ...")
		return nil
	}
	sub, args := req.Args[0], req.Args[1:]
	switch sub {
	case "add":
		return p.add(ctx, req, args)
	case "del":
		return p.del(ctx, req, args)
	case "list":
		return p.list(ctx, req)
	}
	p.host.Reply(req.Message, fmt.Sprintf("Unknown subcommand '%s' for %s.", sub, p.host.Prefixize("remind")))
	return nil
}

func (p *Plugin) usage(req *commands.Request, rest string) {
	p.host.Reply(req.Message, fmt.Sprintf("_Usage: %s %s_", p.host.Prefixize("remind"), rest))
}

func (p *Plugin) add(ctx context.Context, req *commands.Request, args []string) error {
	if len(args) < 2 {
		p.usage(req, "add <delay> <description>")
		return nil
	}
	delay, err := ParseDelay(args[0])
	if err != nil {
		p.host.Reply(req.Message, fmt.Sprintf("_Invalid delay format '%s'. Could not add reminder._", args[0]))
		return nil
	}

	msg := req.Message
	now := p.now()
	rem := Reminder{
		Transport:   msg.Channel,
		ServerID:    msg.ServerID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.Author.ID,
		AuthorName:  msg.Author.Name,
		DueAt:       now.Add(delay),
		Description: strings.Join(args[1:], " "),
	}
	id, err := p.repo.Add(ctx, rem)
	if err != nil {
		return err
	}
	p.host.Reply(msg, fmt.Sprintf(`_Added reminder **%d** **"%s"** which will be fired %s_`,
		id, rem.Description, Humanize(delay)))
	return nil
}

func (p *Plugin) del(ctx context.Context, req *commands.Request, args []string) error {
	if len(args) == 0 {
		p.usage(req, "del <id>")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		p.host.Reply(req.Message, fmt.Sprintf("_Invalid reminder ID **%s**. Must be a strictly positive number._", args[0]))
		return nil
	}

	msg := req.Message
	deleted, err := p.repo.DeleteOwned(ctx, id, msg.ServerID, msg.ChannelID, msg.Author.ID)
	if err != nil {
		return err
	}
	if !deleted {
		p.host.Reply(msg, fmt.Sprintf("_Could not find reminder of yours with ID **%d** on this server._", id))
		return nil
	}
	p.host.Reply(msg, fmt.Sprintf("_Successfully deleted reminder **%d**._", id))
	return nil
}

func (p *Plugin) list(ctx context.Context, req *commands.Request) error {
	upcoming, err := p.repo.Upcoming(ctx, req.Message.ServerID, p.opts.ListLimit)
	if err != nil {
		return err
	}
	if len(upcoming) == 0 {
		p.host.Reply(req.Message, "_There are currently no reminders at the moment._")
		return nil
	}

	now := p.now()
	var b strings.Builder
	fmt.Fprintf(&b, "**%d upcoming reminders:**\n", len(upcoming))
	for _, rem := range upcoming {
		author := rem.AuthorName
		if author == "" {
			author = "_Unknown_"
		}
		fmt.Fprintf(&b, "- ID:%d **%s** by **%s** %s\n", rem.ID, rem.Description, author, Humanize(rem.DueAt.Sub(now)))
	}
	p.host.Reply(req.Message, b.String())
	return nil
}
