package brain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dayuer/cacophony-go/internal/redis"
)

// Pool opens brains from connection strings and shares them by string.
//
//	memory://name                   in-process chain
//	redis://host:6379/0?brain=name  chain stored in Redis lists
type Pool struct {
	mu      sync.Mutex
	brains  map[string]Brain
	clients map[string]*redis.Client
	opening singleflight.Group
	dialing singleflight.Group
	log     *zap.Logger
}

// NewPool creates an empty pool.
func NewPool(log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		brains:  make(map[string]Brain),
		clients: make(map[string]*redis.Client),
		log:     log.Named("brain"),
	}
}

// Get returns the brain for spec, opening it on first use. Opening runs
// outside the pool lock; concurrent callers for one spec share one open.
func (p *Pool) Get(ctx context.Context, spec string) (Brain, error) {
	if b, ok := p.lookup(spec); ok {
		return b, nil
	}
	v, err, _ := p.opening.Do(spec, func() (any, error) {
		if b, ok := p.lookup(spec); ok {
			return b, nil
		}
		b, err := p.open(ctx, spec)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.brains[spec] = b
		p.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Brain), nil
}

func (p *Pool) lookup(spec string) (Brain, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.brains[spec]
	return b, ok
}

func (p *Pool) open(ctx context.Context, spec string) (Brain, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("brain %q: %w", spec, err)
	}

	var b Brain
	switch u.Scheme {
	case "memory":
		b = NewMarkov(NewMemoryStore())
	case "redis", "rediss":
		name := u.Query().Get("brain")
		if name == "" {
			name = "default"
		}
		q := u.Query()
		q.Del("brain")
		u.RawQuery = q.Encode()

		client, err := p.client(ctx, u.String())
		if err != nil {
			return nil, fmt.Errorf("brain %q: %w", spec, err)
		}
		b = NewMarkov(NewRedisStore(client, name))
	default:
		return nil, fmt.Errorf("brain %q: unsupported scheme %q", spec, u.Scheme)
	}

	p.log.Info("brain opened", zap.String("spec", redact(u)))
	return b, nil
}

// client returns a Redis connection shared by every brain on the same server.
func (p *Pool) client(ctx context.Context, addr string) (*redis.Client, error) {
	v, err, _ := p.dialing.Do(addr, func() (any, error) {
		p.mu.Lock()
		c, ok := p.clients[addr]
		p.mu.Unlock()
		if ok {
			return c, nil
		}
		c, err := redis.Open(ctx, redis.Config{URL: addr}, p.log)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.clients[addr] = c
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*redis.Client), nil
}

// Close releases every Redis connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for addr, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.clients, addr)
	}
	p.brains = make(map[string]Brain)
	return errors.Join(errs...)
}

func redact(u *url.URL) string {
	if u.User == nil {
		return u.String()
	}
	return strings.Replace(u.String(), u.User.String()+"@", "***@", 1)
}
