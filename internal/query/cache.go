// Package query is the in-memory read cache sitting between the presentation
// layer and the parts API. Reads are keyed, served stale-while-revalidate and
// de-duplicated per key; mutations invalidate keys instead of deleting them.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Fetcher func(ctx context.Context) (any, error)

type Options struct {
	// StaleTime is how long data counts as fresh. Zero means stale at once:
	// every read serves the cached value and refreshes it in the background.
	StaleTime time.Duration
}

// Snapshot is a point-in-time view of one cache entry.
type Snapshot struct {
	Key       Key
	Data      any
	HasData   bool
	Err       error
	UpdatedAt time.Time
	Stale     bool
}

type Listener func(Snapshot)

type entry struct {
	key         Key
	data        any
	hasData     bool
	err         error
	updatedAt   time.Time
	invalidated bool
	generation  uint64
	staleTime   time.Duration
	fetch       Fetcher
	listeners   map[int]Listener
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSub int

	group  singleflight.Group
	wg     sync.WaitGroup
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the cached value for key, loading it with fn when absent or
// invalidated. Data that is merely past its StaleTime is returned as-is while
// a background refresh runs.
func Fetch[T any](ctx context.Context, c *Cache, key Key, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, opts, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T", key, v)
	}
	return t, nil
}

// Peek reads an entry without fetching.
func Peek[T any](c *Cache, key Key) (T, bool) {
	var zero T
	snap, ok := c.Snapshot(key)
	if !ok || !snap.HasData {
		return zero, false
	}
	t, ok := snap.Data.(T)
	return t, ok
}

func (c *Cache) fetch(ctx context.Context, key Key, opts Options, fetcher Fetcher) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.fetch = fetcher
	e.staleTime = opts.StaleTime

	if e.hasData && !e.invalidated {
		data := e.data
		stale := c.staleLocked(e)
		c.mu.Unlock()

		if stale {
			c.logger.Debug("serving stale entry", zap.Stringer("key", key))
			c.refresh(context.WithoutCancel(ctx), key, fetcher)
		} else {
			c.logger.Debug("cache hit", zap.Stringer("key", key))
		}
		return data, nil
	}
	c.mu.Unlock()

	c.logger.Debug("cache miss", zap.Stringer("key", key))
	return c.wait(ctx, key, fetcher)
}

// wait joins or starts the single in-flight load for key. A caller that gives
// up via ctx abandons the result; the load itself still completes and lands
// in the cache.
func (c *Cache) wait(ctx context.Context, key Key, fetcher Fetcher) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.id(), func() (any, error) {
		return c.load(detached, key, fetcher)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) refresh(ctx context.Context, key Key, fetcher Fetcher) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := <-c.group.DoChan(key.id(), func() (any, error) {
			return c.load(ctx, key, fetcher)
		})
		if res.Err != nil {
			c.logger.Debug("background refresh failed", zap.Stringer("key", key), zap.Error(res.Err))
		}
	}()
}

func (c *Cache) load(ctx context.Context, key Key, fetcher Fetcher) (any, error) {
	c.mu.Lock()
	started := c.entryLocked(key)
	gen := started.generation
	c.mu.Unlock()

	v, err := fetcher(ctx)

	c.mu.Lock()
	e, ok := c.entries[key.id()]
	if !ok || e != started || e.generation != gen {
		// Invalidated or cleared while loading: the result predates the
		// mutation, so only the callers already waiting on it see it.
		c.mu.Unlock()
		c.logger.Debug("discarding superseded load", zap.Stringer("key", key))
		return v, err
	}
	if err != nil {
		e.err = err
	} else {
		e.data = v
		e.hasData = true
		e.err = nil
		e.updatedAt = c.now()
		e.invalidated = false
	}
	snap := c.snapshotLocked(e)
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return v, err
}

// Invalidate marks every entry under the given keys stale and refetches the
// ones somebody is subscribed to. Entries are never dropped. It returns the
// number of entries marked.
func (c *Cache) Invalidate(keys ...Key) int {
	type target struct {
		key   Key
		fetch Fetcher
	}
	var refetch []target
	marked := 0

	c.mu.Lock()
	for id, e := range c.entries {
		for _, k := range keys {
			if !e.key.HasPrefix(k) {
				continue
			}
			e.invalidated = true
			e.generation++
			c.group.Forget(id)
			marked++
			if len(e.listeners) > 0 && e.fetch != nil {
				refetch = append(refetch, target{e.key, e.fetch})
			}
			break
		}
	}
	c.mu.Unlock()

	for _, t := range refetch {
		c.refresh(context.Background(), t.key, t.fetch)
	}
	c.logger.Debug("invalidated cache entries", zap.Int("marked", marked), zap.Int("refetching", len(refetch)))
	return marked
}

// Subscribe registers l for every completed load of key, including refetches
// triggered by invalidation. The returned func unsubscribes.
func (c *Cache) Subscribe(key Key, l Listener) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	if e.listeners == nil {
		e.listeners = make(map[int]Listener)
	}
	c.nextSub++
	id := c.nextSub
	e.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[key.id()]; ok {
			delete(e.listeners, id)
		}
	}
}

func (c *Cache) Snapshot(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshotLocked(e), true
}

// Len reports how many keys the cache holds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops everything, as a full page reload would.
func (c *Cache) Clear() {
	c.mu.Lock()
	for id := range c.entries {
		c.group.Forget(id)
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Close waits for background refreshes to finish.
func (c *Cache) Close() {
	c.wg.Wait()
}

func (c *Cache) entryLocked(key Key) *entry {
	id := key.id()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	return e
}

func (c *Cache) staleLocked(e *entry) bool {
	return e.invalidated || c.now().Sub(e.updatedAt) >= e.staleTime
}

func (c *Cache) snapshotLocked(e *entry) Snapshot {
	return Snapshot{
		Key:       e.key,
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Stale:     e.hasData && c.staleLocked(e),
	}
}
