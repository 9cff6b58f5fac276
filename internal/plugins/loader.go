package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/events"
	"github.com/dayuer/cacophony-go/internal/scheduler"
)

var (
	ErrUnknownPlugin = errors.New("unknown plugin")
	ErrDuplicate     = errors.New("plugin already loaded")
)

// State is a plugin's position in the load protocol.
type State int

const (
	StateRequested State = iota
	StateImported
	StateInstantiated
	StateLoaded
	StateRegistered
	StateFailed
)

var stateNames = [...]string{"requested", "imported", "instantiated", "loaded", "registered", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Record is the outcome of loading one configured plugin.
type Record struct {
	Name   string
	State  State
	Err    error
	Plugin Plugin
}

// LoaderConfig wires a Loader to the registries it fills.
type LoaderConfig struct {
	Catalog   Catalog
	Host      Host
	Commands  *commands.Registry
	Hooks     *events.Registry
	Scheduler *scheduler.Scheduler
	Logger    *zap.Logger
}

// Loader runs the load protocol for each configured plugin.
type Loader struct {
	cfg LoaderConfig
	log *zap.Logger

	mu      sync.Mutex
	records []*Record
	ready   sync.Once
}

// NewLoader creates a loader.
func NewLoader(cfg LoaderConfig) *Loader {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{cfg: cfg, log: log.Named("plugins")}
}

// Load loads names in order. A plugin that fails is logged and skipped;
// later plugins still load.
func (l *Loader) Load(ctx context.Context, names []string) []Record {
	for _, name := range names {
		rec := l.load(ctx, name)
		if rec.State == StateFailed {
			l.log.Error("plugin failed to load", zap.String("plugin", name), zap.Error(rec.Err))
			continue
		}
		l.log.Info("plugin loaded", zap.String("plugin", name),
			zap.Strings("capabilities", Capabilities(rec.Plugin)))
	}
	return l.Records()
}

func (l *Loader) load(ctx context.Context, name string) *Record {
	rec := &Record{Name: name, State: StateRequested}
	l.mu.Lock()
	duplicate := l.has(name)
	l.records = append(l.records, rec)
	l.mu.Unlock()

	fail := func(err error) *Record {
		l.mu.Lock()
		defer l.mu.Unlock()
		rec.State, rec.Err = StateFailed, err
		return rec
	}
	advance := func(s State) {
		l.mu.Lock()
		defer l.mu.Unlock()
		rec.State = s
	}

	if duplicate {
		return fail(ErrDuplicate)
	}

	factory, ok := l.cfg.Catalog[name]
	if !ok {
		return fail(fmt.Errorf("%w %q", ErrUnknownPlugin, name))
	}
	advance(StateImported)

	var p Plugin
	if err := guard(func() (err error) {
		p, err = factory(l.cfg.Host)
		return err
	}); err != nil {
		return fail(fmt.Errorf("instantiate: %w", err))
	}
	if p == nil {
		return fail(errors.New("instantiate: factory returned nil"))
	}
	l.mu.Lock()
	rec.Plugin, rec.State = p, StateInstantiated
	l.mu.Unlock()

	if lp, ok := p.(Loadable); ok {
		if err := guard(func() error { return lp.OnLoad(ctx) }); err != nil {
			return fail(fmt.Errorf("on load: %w", err))
		}
	}
	advance(StateLoaded)

	if jp, ok := p.(JobProvider); ok {
		for _, job := range jp.Jobs() {
			job.Owner = name
			if err := l.cfg.Scheduler.Schedule(job); err != nil {
				return fail(fmt.Errorf("schedule %s: %w", job.Name, err))
			}
		}
	}
	if cp, ok := p.(CommandProvider); ok {
		for _, e := range cp.Commands() {
			e.Plugin = name
			l.cfg.Commands.Register(e)
		}
	}
	if hp, ok := p.(HookProvider); ok {
		for _, e := range hp.Hooks() {
			l.cfg.Hooks.Register(e.Kind, name, e.Hook)
		}
	}
	advance(StateRegistered)
	return rec
}

// has reports whether name already loaded successfully. Caller holds mu.
func (l *Loader) has(name string) bool {
	for _, r := range l.records {
		if r.Name == name && r.State != StateFailed {
			return true
		}
	}
	return false
}

// Ready calls OnReady on every registered plugin in load order. Only the
// first call has an effect.
func (l *Loader) Ready(ctx context.Context) {
	l.ready.Do(func() {
		for _, p := range l.Loaded() {
			r, ok := p.(Readier)
			if !ok {
				continue
			}
			if err := guard(func() error { return r.OnReady(ctx) }); err != nil {
				l.log.Error("plugin on ready failed", zap.String("plugin", p.Name()), zap.Error(err))
			}
		}
	})
}

// Close releases plugins in reverse load order.
func (l *Loader) Close() {
	loaded := l.Loaded()
	for i := len(loaded) - 1; i >= 0; i-- {
		c, ok := loaded[i].(Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			l.log.Warn("plugin close failed", zap.String("plugin", loaded[i].Name()), zap.Error(err))
		}
	}
}

// Records returns a snapshot of every load attempt.
func (l *Loader) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	for i, r := range l.records {
		out[i] = *r
	}
	return out
}

// Loaded returns the registered plugins in load order.
func (l *Loader) Loaded() []Plugin {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Plugin
	for _, r := range l.records {
		if r.State == StateRegistered {
			out = append(out, r.Plugin)
		}
	}
	return out
}

func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}
