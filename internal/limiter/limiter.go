package limiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/cardforge/internal/metrics"
)

// Adaptive bounds concurrent provider calls with per-provider in-flight
// semaphores and a cooldown breaker with exponential backoff. Breaker state
// lives in redis when a URL is configured, so cooldowns survive restarts and
// are shared across replicas; otherwise it is process-local.
type Adaptive struct {
	state       breakerState
	maxInflight int

	mu  sync.Mutex
	sem map[string]chan struct{}
}

type Options struct {
	RedisURL    string // empty selects the in-memory breaker
	MaxInflight int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(opts Options) (*Adaptive, error) {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 2
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}

	var state breakerState
	if opts.RedisURL != "" {
		ro, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		c := redis.NewClient(ro)
		if err := c.Ping(context.Background()).Err(); err != nil {
			return nil, err
		}
		state = &redisBreaker{rdb: c, base: opts.BaseBackoff, max: opts.MaxBackoff}
	} else {
		state = &memoryBreaker{
			base:  opts.BaseBackoff,
			max:   opts.MaxBackoff,
			until: map[string]time.Time{},
			tries: map[string]int{},
		}
	}

	return &Adaptive{
		state:       state,
		maxInflight: opts.MaxInflight,
		sem:         map[string]chan struct{}{},
	}, nil
}

// Acquire reserves an in-flight slot for the provider, blocking until one is
// free or ctx is done. It fails fast while the provider is cooling down.
func (a *Adaptive) Acquire(ctx context.Context, provider string) (func(), error) {
	provider = strings.ToLower(provider)

	if a.state.isOpen(provider) {
		return nil, fmt.Errorf("provider %s cooling down", provider)
	}

	ch := a.semFor(provider)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Trip opens the cooldown for a provider, doubling the backoff on each
// consecutive trip up to the configured maximum.
func (a *Adaptive) Trip(provider string) {
	provider = strings.ToLower(provider)
	a.state.open(provider)
	metrics.BreakerOpened(provider)
}

// Clear resets cooldown state after a successful call.
func (a *Adaptive) Clear(provider string) {
	provider = strings.ToLower(provider)
	if a.state.clear(provider) {
		metrics.BreakerClosed(provider)
	}
}

func (a *Adaptive) semFor(provider string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.sem[provider]
	if !ok {
		ch = make(chan struct{}, a.maxInflight)
		a.sem[provider] = ch
	}
	return ch
}

// Close releases any backing connections.
func (a *Adaptive) Close() error { return a.state.close() }

// breakerState tracks cooldown windows per provider. clear reports whether
// an open window was actually removed.
type breakerState interface {
	isOpen(provider string) bool
	open(provider string)
	clear(provider string) bool
	close() error
}

type memoryBreaker struct {
	base, max time.Duration

	mu    sync.Mutex
	until map[string]time.Time
	tries map[string]int
}

func (m *memoryBreaker) isOpen(provider string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Now().Before(m.until[provider])
}

func (m *memoryBreaker) open(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tries[provider]++
	m.until[provider] = time.Now().Add(backoff(m.base, m.max, m.tries[provider]))
}

func (m *memoryBreaker) clear(provider string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, wasOpen := m.until[provider]
	delete(m.until, provider)
	delete(m.tries, provider)
	return wasOpen
}

func (m *memoryBreaker) close() error { return nil }

type redisBreaker struct {
	rdb       *redis.Client
	base, max time.Duration
}

func (r *redisBreaker) key(provider string) string { return "cb:" + provider }

func (r *redisBreaker) isOpen(provider string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ts, err := r.rdb.Get(ctx, r.key(provider)).Int64()
	if err != nil {
		return false
	}
	return time.Now().Unix() < ts
}

func (r *redisBreaker) open(provider string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	k := r.key(provider)
	attempts, _ := r.rdb.Incr(ctx, k+":attempts").Result()
	if attempts < 1 {
		attempts = 1
	}
	d := backoff(r.base, r.max, int(attempts))
	_ = r.rdb.Set(ctx, k, time.Now().Add(d).Unix(), d).Err()
}

func (r *redisBreaker) clear(provider string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	k := r.key(provider)
	n, _ := r.rdb.Del(ctx, k, k+":attempts").Result()
	return n > 0
}

func (r *redisBreaker) close() error { return r.rdb.Close() }

func backoff(base, max time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 16 {
		attempts = 16
	}
	d := base * (1 << (attempts - 1))
	if d > max {
		d = max
	}
	return d
}
