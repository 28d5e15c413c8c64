// ABOUTME: Thread-safe, size-limited failure counter for throttling login attempts
// ABOUTME: Keys expire a fixed window after their first failure; oldest keys are evicted first

package throttle

import (
	"container/list"
	"sync"
	"time"

	"github.com/2389/shelf-gateway/internal/clock"
)

// Defaults used when Config fields are zero.
const (
	DefaultMaxFailures = 5
	DefaultWindow      = 15 * time.Minute
	DefaultMaxKeys     = 10000
)

// Config controls a Limiter.
type Config struct {
	MaxFailures int           // failures allowed inside Window before the key is blocked
	Window      time.Duration // measured from the first failure
	MaxKeys     int
	Clock       clock.Clock
}

type entry struct {
	failures int
	first    time.Time
	element  *list.Element
}

// Limiter counts failures per key. A key is blocked once it reaches
// MaxFailures inside its window. Uses a doubly-linked list in insertion
// order for O(1) eviction when MaxKeys is reached.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // keys, oldest at front
	max     int
	window  time.Duration
	maxKeys int
	clock   clock.Clock
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Limiter{
		entries: make(map[string]*entry),
		order:   list.New(),
		max:     cfg.MaxFailures,
		window:  cfg.Window,
		maxKeys: cfg.MaxKeys,
		clock:   cfg.Clock,
	}
}

// Blocked reports whether key has used up its failures and, if so, how long
// until its window ends.
func (l *Limiter) Blocked(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.liveLocked(key)
	if e == nil || e.failures < l.max {
		return false, 0
	}
	return true, e.first.Add(l.window).Sub(l.clock.Now())
}

// Fail records a failure for key and returns the failures counted in the
// current window.
func (l *Limiter) Fail(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.liveLocked(key); e != nil {
		e.failures++
		return e.failures
	}

	if len(l.entries) >= l.maxKeys {
		l.evictOldestLocked()
	}
	l.entries[key] = &entry{
		failures: 1,
		first:    l.clock.Now(),
		element:  l.order.PushBack(key),
	}
	return 1
}

// Reset forgets key, typically after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(key)
}

// Len returns the number of tracked keys, expired ones included.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// liveLocked returns key's entry, dropping it if its window has passed.
func (l *Limiter) liveLocked(key string) *entry {
	e, ok := l.entries[key]
	if !ok {
		return nil
	}
	if l.clock.Now().Sub(e.first) >= l.window {
		l.removeLocked(key)
		return nil
	}
	return e
}

func (l *Limiter) removeLocked(key string) {
	if e, ok := l.entries[key]; ok {
		l.order.Remove(e.element)
		delete(l.entries, key)
	}
}

func (l *Limiter) evictOldestLocked() {
	front := l.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.entries, key)
}
