// Package query is the gateway's read cache: results keyed by resource
// identity, a staleness window, and mutations that invalidate what they touch.
package query

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrPending is returned when a mutation with the same key is still running.
var ErrPending = errors.New("request already in progress")

// maxRefetch bounds how often Fetch retries when invalidations keep racing it.
const maxRefetch = 3

// Key identifies a cached resource, e.g. Key{"user:42", "addresses"}.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// State is the observable read state of a key.
type State struct {
	Data      any
	Err       error
	IsLoading bool
	IsError   bool
	IsStale   bool
	UpdatedAt time.Time
}

// Hooks observe cache traffic.
type Hooks struct {
	Hit  func(Key)
	Miss func(Key)
}

type entry struct {
	key        Key
	data       any
	hasData    bool
	err        error
	stale      bool
	updatedAt  time.Time
	accessedAt time.Time
	generation uint64
	loading    int
	pending    bool
}

// Cache is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	group     singleflight.Group
	staleTime time.Duration
	hooks     Hooks
	now       func() time.Time
}

type Option func(*Cache)

// WithHooks installs hit/miss observers.
func WithHooks(h Hooks) Option {
	return func(c *Cache) { c.hooks = h }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns a cache whose entries go stale after staleTime.
func New(staleTime time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*entry),
		staleTime: staleTime,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	e.accessedAt = c.now()
	return e
}

func (c *Cache) freshLocked(e *entry) bool {
	return e.hasData && !e.stale && e.err == nil && c.now().Sub(e.updatedAt) < c.staleTime
}

// Fetch returns the cached value for key when fresh, otherwise calls fn.
// Concurrent fetches of one key share a single call. A result that started
// before an invalidation of key is never stored.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		e := c.entryLocked(key)
		if c.freshLocked(e) {
			data := e.data
			c.mu.Unlock()
			if c.hooks.Hit != nil {
				c.hooks.Hit(key)
			}
			if v, ok := data.(T); ok {
				return v, nil
			}
			return zero, nil
		}
		gen := e.generation
		e.loading++
		c.mu.Unlock()

		if c.hooks.Miss != nil && attempt == 0 {
			c.hooks.Miss(key)
		}

		flightKey := key.String() + "#" + strconv.FormatUint(gen, 10)
		v, err, _ := c.group.Do(flightKey, func() (any, error) {
			return fn(ctx)
		})

		c.mu.Lock()
		e = c.entryLocked(key)
		e.loading--
		superseded := e.generation != gen
		if !superseded {
			if err != nil {
				e.err = err
			} else {
				e.data = v
				e.hasData = true
				e.err = nil
				e.stale = false
				e.updatedAt = c.now()
			}
		}
		c.mu.Unlock()

		if err != nil {
			return zero, err
		}
		if superseded && attempt+1 < maxRefetch {
			continue
		}
		typed, _ := v.(T)
		return typed, nil
	}
}

// Peek returns cached data regardless of freshness.
func Peek[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return zero, false
	}
	v, ok := e.data.(T)
	return v, ok
}

// State reports the read state of key.
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{}
	}
	return State{
		Data:      e.data,
		Err:       e.err,
		IsLoading: e.loading > 0,
		IsError:   e.err != nil,
		IsStale:   !c.freshLocked(e),
		UpdatedAt: e.updatedAt,
	}
}

// Invalidate marks every key under prefix stale and supersedes in-flight fetches.
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.generation++
			e.stale = true
		}
	}
}

// Set stores data as the authoritative value of key, superseding any fetch
// still in flight.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	e.generation++
	e.data = data
	e.hasData = true
	e.err = nil
	e.stale = false
	e.updatedAt = c.now()
}

// Update rewrites cached data in place without touching freshness. An in-flight
// fetch still overwrites it on completion.
func Update[T any](c *Cache, key Key, fn func(current T, ok bool) T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	current, ok := e.data.(T)
	e.data = fn(current, ok && e.hasData)
	e.hasData = true
}

// Sweep drops entries nobody touched for idle and reports how many went.
func (c *Cache) Sweep(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-idle)
	removed := 0
	for id, e := range c.entries {
		if e.loading == 0 && !e.pending && e.accessedAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
