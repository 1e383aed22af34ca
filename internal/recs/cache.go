// Package recs caches the recommendation list of the current user.
//
// The list is expensive to compute on the backend, so a workspace fetches it
// at most once at a time and keeps the result until a rating mutation or a
// user switch invalidates it. The cache is all-or-nothing: it is either empty
// or holds a complete list, never a partial one.
package recs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"movie-recommender-web/internal/metrics"
	"movie-recommender-web/internal/models"
)

// Fetcher loads the recommendation list from the backend.
type Fetcher func(ctx context.Context) ([]models.MovieRecord, error)

// Cache is a single-flight memoized recommendation list. It is safe for
// concurrent use.
type Cache struct {
	fetch Fetcher

	mu     sync.Mutex
	items  []models.MovieRecord
	ready  bool
	flight *call
	gen    uint64
}

// call is one in-flight fetch. done is closed once items is set.
type call struct {
	gen   uint64
	done  chan struct{}
	items []models.MovieRecord
}

func New(fetch Fetcher) *Cache {
	return &Cache{fetch: fetch}
}

// GetCached returns the cached list without ever starting a fetch. The
// second result is false while nothing is cached.
func (c *Cache) GetCached() ([]models.MovieRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil, false
	}
	return c.items, true
}

// Ready reports whether a list is cached.
func (c *Cache) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Preload makes sure a list is cached or being fetched and returns
// immediately. Concurrent calls never start more than one fetch.
func (c *Cache) Preload(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready || c.flight != nil {
		return
	}
	c.startLocked(ctx)
}

// Get returns the cached list, joining the in-flight fetch or starting one
// when needed. If the flight it waited on was invalidated meanwhile, Get
// waits for a fresh fetch instead of returning the stale result. A failed
// fetch yields an empty list. The error is non-nil only when ctx ends first.
func (c *Cache) Get(ctx context.Context) ([]models.MovieRecord, error) {
	for {
		c.mu.Lock()
		if c.ready {
			items := c.items
			c.mu.Unlock()
			metrics.RecsCacheEvents.WithLabelValues("hit").Inc()
			return items, nil
		}
		fl := c.flight
		if fl == nil {
			fl = c.startLocked(ctx)
		} else {
			metrics.RecsCacheEvents.WithLabelValues("join").Inc()
		}
		c.mu.Unlock()

		select {
		case <-fl.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.mu.Lock()
		current := c.gen == fl.gen
		c.mu.Unlock()
		if current {
			return fl.items, nil
		}
	}
}

// Invalidate drops the cached list and forgets any in-flight fetch. The
// forgotten fetch still completes but its result is discarded.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items = nil
	c.ready = false
	c.flight = nil
	metrics.RecsCacheEvents.WithLabelValues("invalidate").Inc()
	slog.Debug("recommendation cache invalidated", "generation", c.gen)
}

// startLocked launches a fetch for the current generation. The fetch is
// detached from the caller's cancellation because other callers may join it.
func (c *Cache) startLocked(ctx context.Context) *call {
	fl := &call{gen: c.gen, done: make(chan struct{})}
	c.flight = fl
	metrics.RecsCacheEvents.WithLabelValues("miss").Inc()

	go c.run(context.WithoutCancel(ctx), fl)
	return fl
}

func (c *Cache) run(ctx context.Context, fl *call) {
	started := time.Now()
	items, err := c.fetch(ctx)
	if err != nil {
		slog.Warn("failed to load recommendations", "error", err)
		metrics.RecsCacheEvents.WithLabelValues("error").Inc()
		items = nil
	}
	if items == nil {
		items = []models.MovieRecord{}
	}

	c.mu.Lock()
	fl.items = items
	if c.gen == fl.gen {
		c.flight = nil
		if err == nil {
			c.items = items
			c.ready = true
			slog.Info("recommendations loaded", "count", len(items), "duration", time.Since(started))
		}
	} else {
		metrics.RecsCacheEvents.WithLabelValues("discard").Inc()
		slog.Debug("discarding recommendations from invalidated fetch", "generation", fl.gen)
	}
	c.mu.Unlock()
	close(fl.done)
}
