// Package roulette implements a russian roulette game scored per server.
//
// Each (server, channel) pair holds a six-chamber gun. A player who survives
// a pull earns a pending bonus equal to the number of chambers already
// fired. When someone gets shot, every other survivor is credited with their
// bonus, the victim loses as many points (never below zero) and the gun is
// reloaded.
package roulette

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/plugins"
)

const (
	Name     = "roulette"
	Chambers = 6
	topLimit = 5
)

type gunKey struct {
	server, channel string
}

type shooter struct {
	name  string
	bonus int
}

type gun struct {
	chambers []bool
	shooters map[string]shooter
}

// remaining is the number of chambers still to be fired.
func (g *gun) remaining() int { return len(g.chambers) }

type Plugin struct {
	host plugins.Host
	repo *Repo
	log  *zap.Logger
	intn func(n int) int

	mu   sync.Mutex
	guns map[gunKey]*gun
}

func New(host plugins.Host) (plugins.Plugin, error) {
	return &Plugin{
		host: host,
		repo: NewRepo(host.DB()),
		log:  host.Logger().Named(Name),
		intn: rand.IntN,
		guns: make(map[gunKey]*gun),
	}, nil
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) OnLoad(ctx context.Context) error {
	return p.repo.Migrate(ctx)
}

func (p *Plugin) Commands() []commands.Entry {
	return []commands.Entry{{
		Name:    "roulette",
		Summary: "Russian roulette. The riskier the pull, the bigger the reward.",
		Usage:   "roulette [stats]",
		Handler: p.roulette,
	}}
}

func (p *Plugin) load() *gun {
	g := &gun{chambers: make([]bool, Chambers), shooters: make(map[string]shooter)}
	g.chambers[p.intn(Chambers)] = true
	return g
}

func (p *Plugin) roulette(ctx context.Context, req *commands.Request) error {
	msg := req.Message
	key := gunKey{msg.ServerID, msg.ChannelID}

	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.guns[key]
	if !ok {
		g = p.load()
		p.guns[key] = g
	}

	if len(req.Args) > 0 && req.Args[0] == "stats" {
		return p.stats(ctx, req, g.remaining())
	}

	fired := g.chambers[0]
	g.chambers = g.chambers[1:]
	player := msg.Author

	if !fired {
		g.shooters[player.ID] = shooter{name: player.Name, bonus: Chambers - g.remaining()}
		p.host.Reply(msg, fmt.Sprintf("**%s** pulls the trigger... *Click!*", player.Name))
		return nil
	}

	p.log.Info("player shot", zap.String("server", msg.ServerID), zap.String("player", player.Name),
		zap.Int("remaining", g.remaining()))

	if err := p.penalize(ctx, msg.ServerID, player.ID, player.Name, g.remaining()); err != nil {
		return err
	}
	delete(g.shooters, player.ID)
	for id, s := range g.shooters {
		if err := p.repo.AddScore(ctx, msg.ServerID, id, s.name, s.bonus); err != nil {
			return err
		}
	}

	p.host.Reply(msg, fmt.Sprintf("**%s** pulls the trigger... *BOOM*! **HEADSHOT**!", player.Name))
	p.guns[key] = p.load()
	return nil
}

// penalize registers a new player with zero points, or removes from a known
// one as many points as chambers were fired before the bullet.
func (p *Plugin) penalize(ctx context.Context, serverID, playerID, name string, remaining int) error {
	pl, ok, err := p.repo.Get(ctx, serverID, playerID)
	if err != nil {
		return err
	}
	pl.Name = name
	if ok && remaining > 0 {
		pl.Score = max(0, pl.Score-(Chambers-remaining))
	}
	return p.repo.Put(ctx, pl)
}

func (p *Plugin) stats(ctx context.Context, req *commands.Request, remaining int) error {
	top, err := p.repo.Top(ctx, req.Message.ServerID, topLimit)
	if err != nil {
		return err
	}

	var b strings.Builder
	if len(top) == 0 {
		b.WriteString("There are no top players at the moment.\n")
	} else {
		b.WriteString("Top 5 players are:\n\n")
		for i, pl := range top {
			unit := "points"
			if pl.Score == 1 {
				unit = "point"
			}
			fmt.Fprintf(&b, "**%d**: %s (%d %s)\n", i+1, pl.Name, pl.Score, unit)
		}
	}
	fmt.Fprintf(&b, "\nRemaining chambers: %d", remaining)
	p.host.Reply(req.Message, b.String())
	return nil
}
