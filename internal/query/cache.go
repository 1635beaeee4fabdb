// Package query is a keyed cache of server data with request deduplication,
// explicit invalidation and local optimistic edits.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
)

// Default retention settings.
const (
	DefaultStaleTime = 30 * time.Second
	DefaultGCTime    = 5 * time.Minute
)

// FetchStatus is the network state of an entry.
type FetchStatus int

const (
	Idle FetchStatus = iota
	Fetching
	Error
)

func (s FetchStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Loader fetches the data for a key.
type Loader func(ctx context.Context) (any, error)

// Entry is a snapshot of one cache entry. Data must be treated as
// immutable; edits go through SetData.
type Entry struct {
	Key       Key
	Data      any
	HasData   bool
	Status    FetchStatus
	Err       error
	UpdatedAt time.Time
	Stale     bool
}

// Listener receives an entry snapshot after every change.
type Listener func(Entry)

// FetchOptions tunes a single Fetch.
type FetchOptions struct {
	// Force bypasses fresh data.
	Force bool
}

type entry struct {
	key       Key
	data      any
	hasData   bool
	status    FetchStatus
	err       error
	updatedAt time.Time
	stale     bool
	loader    Loader
	gen       uint64
	listeners map[int]Listener
	lastUsed  time.Time
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:       e.key,
		Data:      e.data,
		HasData:   e.hasData,
		Status:    e.status,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Stale:     e.stale,
	}
}

func (e *entry) listenerList() []Listener {
	out := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		out = append(out, l)
	}
	return out
}

// Cache is the query cache.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	flights   singleflight.Group
	nextSub   int
	seq       uint64
	staleTime time.Duration
	gcTime    time.Duration
	now       func() time.Time
	logger    *log.Logger
	metrics   *metrics.Metrics
	bg        sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime sets how long fetched data counts as fresh.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithGCTime sets how long unreferenced entries are retained.
func WithGCTime(d time.Duration) Option {
	return func(c *Cache) { c.gcTime = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records hits, misses and fetch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*entry),
		staleTime: DefaultStaleTime,
		gcTime:    DefaultGCTime,
		now:       time.Now,
		logger:    log.DefaultLogger(),
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
		c.seq++
		e = &entry{key: append(Key(nil), key...), gen: c.seq, listeners: make(map[int]Listener)}
		c.entries[id] = e
		c.metrics.SetCacheEntries(len(c.entries))
	}
	e.lastUsed = c.now()
	return e
}

func (c *Cache) freshLocked(e *entry) bool {
	if !e.hasData || e.stale {
		return false
	}
	if c.staleTime > 0 && c.now().Sub(e.updatedAt) >= c.staleTime {
		return false
	}
	return true
}

// Fetch returns fresh cached data for key or runs the loader. Concurrent
// callers for the same key share one load. The load is detached from ctx:
// a caller that gives up stops waiting, but the result still lands in the
// cache. A nil loader reuses the one last registered for key.
func (c *Cache) Fetch(ctx context.Context, key Key, loader Loader, opts FetchOptions) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if loader != nil {
		e.loader = loader
	}
	if !opts.Force && c.freshLocked(e) {
		data := e.data
		c.mu.Unlock()
		c.metrics.CacheHit(key.Root())
		return data, nil
	}
	if e.loader == nil {
		c.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrCodeUnexpected,
			fmt.Sprintf("no loader registered for %s", key))
	}

	// A forced fetch must observe server state from after the call, so it
	// never joins a load that is already running.
	if opts.Force && e.status == Fetching {
		c.supersedeLocked(e)
	}
	run := e.loader
	gen := e.gen
	changed := e.status != Fetching
	e.status = Fetching
	snap, listeners := e.snapshot(), e.listenerList()
	c.pruneLocked()
	c.mu.Unlock()

	c.metrics.CacheMiss(key.Root())
	if changed {
		notify(listeners, snap)
	}

	flight := fmt.Sprintf("%s#%d", key, gen)
	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(flight, func() (any, error) {
		start := c.now()
		data, err := safeLoad(detached, run)
		c.metrics.FetchFinished(key.Root(), string(apperrors.CodeOf(err)), c.now().Sub(start))
		c.settle(key, gen, data, err)
		return data, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.CacheDeduplicated(key.Root())
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func safeLoad(ctx context.Context, load Loader) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.ErrCodeUnexpected, fmt.Sprintf("loader panicked: %v", r))
		}
	}()
	return load(ctx)
}

// settle stores a fetch result unless the entry was cancelled after the
// fetch started.
func (c *Cache) settle(key Key, gen uint64, data any, err error) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || e.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded fetch", "key", key.String())
		return
	}
	if err != nil {
		e.status = Error
		e.err = err
	} else {
		e.status = Idle
		e.err = nil
		e.data = data
		e.hasData = true
		e.stale = false
		e.updatedAt = c.now()
	}
	snap, listeners := e.snapshot(), e.listenerList()
	c.mu.Unlock()

	if err != nil {
		c.logger.WithError(err).Debug("fetch failed", "key", key.String())
	}
	notify(listeners, snap)
}

// Peek returns the current entry for key without fetching.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// SetData replaces the data of key with updater's result. updater receives
// the current data (nil when absent) and must return a new value rather
// than modify it.
func (c *Cache) SetData(key Key, updater func(old any) any) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.data = updater(e.data)
	e.hasData = true
	e.updatedAt = c.now()
	snap, listeners := e.snapshot(), e.listenerList()
	c.mu.Unlock()

	notify(listeners, snap)
}

// Restore puts back the data captured in snap, including its absence.
func (c *Cache) Restore(snap Entry) {
	c.mu.Lock()
	e := c.entryLocked(snap.Key)
	e.data = snap.Data
	e.hasData = snap.HasData
	e.updatedAt = snap.UpdatedAt
	restored, listeners := e.snapshot(), e.listenerList()
	c.mu.Unlock()

	notify(listeners, restored)
}

// MarkStale marks exactly key stale without refetching.
func (c *Cache) MarkStale(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.stale = true
	snap, listeners := e.snapshot(), e.listenerList()
	c.mu.Unlock()

	notify(listeners, snap)
}

// Cancel discards the results of fetches for key that are in flight now.
func (c *Cache) Cancel(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return
	}
	c.supersedeLocked(e)
	if e.status == Fetching {
		e.status = Idle
	}
}

// supersedeLocked makes settle discard every load started before now.
func (c *Cache) supersedeLocked(e *entry) {
	c.seq++
	e.gen = c.seq
}

func (c *Cache) matchingLocked(prefix Key) []*entry {
	var out []*entry
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Invalidate marks every entry under prefix stale and refetches, in the
// background, those that currently have subscribers.
func (c *Cache) Invalidate(prefix Key) {
	type change struct {
		snap      Entry
		listeners []Listener
	}

	c.mu.Lock()
	var changes []change
	var refetch []Key
	for _, e := range c.matchingLocked(prefix) {
		e.stale = true
		if e.status == Fetching {
			// The running load may predate the change that made the entry stale.
			c.supersedeLocked(e)
			e.status = Idle
		}
		changes = append(changes, change{e.snapshot(), e.listenerList()})
		if len(e.listeners) > 0 && e.loader != nil {
			refetch = append(refetch, e.key)
		}
	}
	c.mu.Unlock()

	for _, ch := range changes {
		notify(ch.listeners, ch.snap)
	}
	for _, key := range refetch {
		c.bg.Add(1)
		go func(key Key) {
			defer c.bg.Done()
			_, _ = c.Fetch(context.Background(), key, nil, FetchOptions{Force: true})
		}(key)
	}
}

// Refetch reloads every entry under prefix that has a loader and waits for
// all of them. The first error is returned.
func (c *Cache) Refetch(ctx context.Context, prefix Key) error {
	c.mu.Lock()
	var keys []Key
	for _, e := range c.matchingLocked(prefix) {
		if e.loader != nil {
			keys = append(keys, e.key)
		}
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			_, err := c.Fetch(gctx, key, nil, FetchOptions{Force: true})
			return err
		})
	}
	return g.Wait()
}

// Subscribe registers interest in key. loader, when non-nil, becomes the
// key's loader for background refetches.
func (c *Cache) Subscribe(key Key, loader Loader, fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if loader != nil {
		e.loader = loader
	}
	c.nextSub++
	id := c.nextSub
	e.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if e, ok := c.entries[key.String()]; ok {
				delete(e.listeners, id)
				e.lastUsed = c.now()
			}
		})
	}
}

// Prune drops entries that have no subscribers, no fetch in flight and have
// not been used for the retention window. It returns the number removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

func (c *Cache) pruneLocked() int {
	if c.gcTime <= 0 {
		return 0
	}
	now := c.now()
	removed := 0
	for id, e := range c.entries {
		if len(e.listeners) > 0 || e.status == Fetching {
			continue
		}
		if now.Sub(e.lastUsed) >= c.gcTime {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.metrics.SetCacheEntries(len(c.entries))
	}
	return removed
}

// Reset drops every entry. Fetches in flight settle into nothing and
// subscriptions on dropped entries stop receiving updates.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.metrics.SetCacheEntries(0)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until background refetches started by Invalidate finish.
func (c *Cache) Wait() {
	c.bg.Wait()
}

func notify(listeners []Listener, snap Entry) {
	for _, l := range listeners {
		l(snap)
	}
}
