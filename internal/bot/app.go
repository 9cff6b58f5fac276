// Package bot is the router application. It owns every registry, turns
// transport events into hook runs, command dispatches and generated replies,
// and is the plugins.Host every plugin talks to.
package bot

import (
	"context"
	"database/sql"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/brain"
	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/config"
	"github.com/dayuer/cacophony-go/internal/events"
	"github.com/dayuer/cacophony-go/internal/lane"
	"github.com/dayuer/cacophony-go/internal/plugins"
	"github.com/dayuer/cacophony-go/internal/scheduler"
	"github.com/dayuer/cacophony-go/internal/session"
	"github.com/dayuer/cacophony-go/internal/settings"
)

// shutdownGrace bounds how long Run waits for in-flight event handlers.
const shutdownGrace = 5 * time.Second

var _ plugins.Host = (*App)(nil)

// Transport is what the application needs from the transport layer.
type Transport interface {
	bus.Sender
	StopAll()
}

// Options wires an App.
type Options struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        *sql.DB
	Bus       *bus.MessageBus
	Transport Transport
	Catalog   plugins.Catalog
	Brains    *brain.Pool

	// Rand returns the per-message draw in [0,1) compared to chattiness.
	Rand func() float64
}

// App is the running bot.
type App struct {
	cfg       config.Config
	log       *zap.Logger
	db        *sql.DB
	bus       *bus.MessageBus
	transport Transport
	rand      func() float64

	queue    *bus.Queue
	hooks    *events.Registry
	commands *commands.Registry
	sessions *session.Manager
	sched    *scheduler.Scheduler
	loader   *plugins.Loader
	brains   *brain.Pool
	settings *settings.Store
	lanes    *lane.Manager

	selfMu  sync.RWMutex
	selfIDs map[string]string // transport -> bot user id

	inflight sync.WaitGroup
}

// New builds the application. Plugins are not loaded until Load or Run.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.DB == nil {
		return nil, errors.New("bot: database handle required")
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewMessageBus()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Brains == nil {
		opts.Brains = brain.NewPool(opts.Logger)
	}

	a := &App{
		cfg:       opts.Config,
		log:       opts.Logger,
		db:        opts.DB,
		bus:       opts.Bus,
		transport: opts.Transport,
		rand:      opts.Rand,
		queue:     bus.NewQueue(opts.Logger),
		sessions:  session.NewManager(),
		sched:     scheduler.New(context.WithoutCancel(ctx), opts.Logger),
		brains:    opts.Brains,
		selfIDs:   make(map[string]string),
	}
	a.commands = commands.NewRegistry(&a.cfg, opts.Logger)
	a.hooks = events.NewRegistry(&a.cfg, opts.Logger)

	st, err := settings.New(ctx, opts.DB, settings.WithFallback(a.configFallback), settings.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	st.OnChange(a.applySetting)
	a.settings = st

	a.loader = plugins.NewLoader(plugins.LoaderConfig{
		Catalog:   opts.Catalog,
		Host:      a,
		Commands:  a.commands,
		Hooks:     a.hooks,
		Scheduler: a.sched,
		Logger:    opts.Logger,
	})
	a.registerBuiltins()
	return a, nil
}

// Load runs the plugin loader over the configured plugin list.
func (a *App) Load(ctx context.Context) []plugins.Record {
	records := a.loader.Load(ctx, a.cfg.Plugins)
	for _, r := range records {
		if r.State == plugins.StateFailed {
			a.log.Error("plugin not loaded", zap.String("plugin", r.Name), zap.Error(r.Err))
			continue
		}
		a.log.Info("plugin loaded", zap.String("plugin", r.Name))
	}
	return records
}

// Run loads plugins, starts the outbound consumer and handles inbound events
// until ctx is cancelled. It then cancels the consumer, cancels every job,
// stops the transports and discards unsent envelopes.
func (a *App) Run(ctx context.Context) error {
	a.Load(ctx)

	if a.cfg.SerializeConversations {
		a.lanes = lane.NewManager(context.WithoutCancel(ctx), lane.ManagerConfig{Logger: a.log})
	}

	queueCtx, cancelQueue := context.WithCancel(context.Background())
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		a.queue.Run(queueCtx, a.sender())
	}()

	eventCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			a.shutdown(cancelQueue, queueDone)
			return nil
		case ev := <-a.bus.Inbound:
			a.dispatch(eventCtx, ev)
		}
	}
}

func (a *App) shutdown(cancelQueue context.CancelFunc, queueDone <-chan struct{}) {
	a.log.Info("shutting down")
	cancelQueue()
	<-queueDone

	a.sched.CancelAll()
	if a.transport != nil {
		a.transport.StopAll()
	}

	waited := make(chan struct{})
	go func() {
		a.inflight.Wait()
		if a.lanes != nil {
			a.lanes.Stop()
		}
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(shutdownGrace):
		a.log.Warn("abandoning in-flight event handlers")
	}

	a.queue.Discard()
	a.loader.Close()
	if err := a.brains.Close(); err != nil {
		a.log.Warn("closing brains", zap.Error(err))
	}
	a.log.Info("shutdown complete",
		zap.Int("conversations", len(a.sessions.All())),
		zap.Int("unread_events", a.bus.InboundSize()))
	a.sessions.Clear()
}

func (a *App) sender() bus.Sender {
	if a.transport == nil {
		return bus.SenderFunc(func(context.Context, bus.Envelope) error {
			return errors.New("no transport")
		})
	}
	return a.transport
}

// dispatch hands ev to its own goroutine, or to the lane of its server when
// conversations are serialized.
func (a *App) dispatch(ctx context.Context, ev bus.Event) {
	if a.lanes != nil {
		if err := a.lanes.Submit(laneKey(ev), func(context.Context) { a.HandleEvent(ctx, ev) }); err != nil {
			a.log.Warn("event dropped", zap.Error(err))
		}
		return
	}
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.HandleEvent(ctx, ev)
	}()
}

func laneKey(ev bus.Event) string {
	switch e := ev.(type) {
	case *bus.InboundMessage:
		return e.Channel + ":" + e.ServerID
	case *bus.MemberJoin:
		return e.Channel + ":" + e.ServerID
	case *bus.ServerJoin:
		return e.Channel + ":" + e.ServerID
	}
	return ev.Source()
}

// Queue exposes the outbound queue.
func (a *App) Queue() *bus.Queue { return a.queue }

// Hooks exposes the hook registry.
func (a *App) Hooks() *events.Registry { return a.hooks }

// Commands exposes the command registry.
func (a *App) Commands() *commands.Registry { return a.commands }

// Sessions exposes the conversation manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Scheduler exposes the job scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Loader exposes the plugin loader.
func (a *App) Loader() *plugins.Loader { return a.loader }

func (a *App) selfID(transport string) string {
	a.selfMu.RLock()
	defer a.selfMu.RUnlock()
	return a.selfIDs[transport]
}

func (a *App) setSelfID(transport, id string) {
	a.selfMu.Lock()
	defer a.selfMu.Unlock()
	a.selfIDs[transport] = id
}

// plugins.Host

func (a *App) Logger() *zap.Logger       { return a.log }
func (a *App) DB() *sql.DB               { return a.db }
func (a *App) Settings() *settings.Store { return a.settings }

func (a *App) Enqueue(env bus.Envelope) { a.queue.Enqueue(env) }

func (a *App) Reply(msg *bus.InboundMessage, text string) {
	a.Enqueue(bus.NewEnvelope(msg.Channel, bus.ChannelTarget(msg.ChannelID), text))
}

func (a *App) DirectMessage(transport, userID, text string) {
	a.Enqueue(bus.NewEnvelope(transport, bus.UserTarget(userID), text))
}

func (a *App) Conversation(serverID string) (*session.Conversation, bool) {
	return a.sessions.Get(serverID)
}

func (a *App) Prefixize(name string) string { return a.cfg.CommandPrefix + name }

// Presence is the status line shown by transports that support one.
func Presence(prefix string) string {
	return "Type " + prefix + "help for more information."
}

func (a *App) DecodeOptions(plugin string, out any) error {
	return a.cfg.DecodePluginOptions(plugin, out)
}
