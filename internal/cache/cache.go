// Package cache implements the per-principal, bounded-staleness
// authorization cache in front of the privilege store.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lakeguard/domain"
)

// Snapshot is an immutable view of one principal's grant set at refresh
// time. Enforcement and visibility reads share snapshots freely; nothing
// mutates them after construction.
type Snapshot struct {
	principal   string
	privs       []domain.Privilege
	byEntity    map[string]map[domain.Action]bool // entity key -> held actions
	namespaces  map[string]bool                   // namespaces containing any held entity
	refreshedAt time.Time
}

func newSnapshot(principal string, privs []domain.Privilege, at time.Time) *Snapshot {
	s := &Snapshot{
		principal:   principal,
		privs:       privs,
		byEntity:    make(map[string]map[domain.Action]bool, len(privs)),
		namespaces:  make(map[string]bool),
		refreshedAt: at,
	}
	for _, p := range privs {
		key := p.Entity.Key()
		actions := s.byEntity[key]
		if actions == nil {
			actions = make(map[domain.Action]bool, 1)
			s.byEntity[key] = actions
		}
		actions[p.Action] = true
		if p.Entity.Namespace != "" {
			s.namespaces[p.Entity.Namespace] = true
		}
	}
	return s
}

// Has reports exact tuple membership: the principal holds this action on
// this entity. No aggregation across actions.
func (s *Snapshot) Has(entity domain.EntityRef, action domain.Action) bool {
	return s.byEntity[entity.Key()][action]
}

// HasAny reports whether the principal holds any action directly on the entity.
func (s *Snapshot) HasAny(entity domain.EntityRef) bool {
	return len(s.byEntity[entity.Key()]) > 0
}

// HasAnyUnder reports whether the principal holds any privilege on an
// entity nested beneath the given namespace.
func (s *Snapshot) HasAnyUnder(ns domain.EntityRef) bool {
	if ns.Kind != domain.KindNamespace {
		return false
	}
	return s.namespaces[ns.Name]
}

// Privileges returns the snapshot's grant set. Callers must not mutate it.
func (s *Snapshot) Privileges() []domain.Privilege { return s.privs }

// RefreshedAt returns the time the snapshot was read from the store.
func (s *Snapshot) RefreshedAt() time.Time { return s.refreshedAt }

// Cache is the read-through authorization cache. A snapshot older than
// the TTL is never served; concurrent misses for the same principal
// collapse into a single store read.
type Cache struct {
	store      domain.PrivilegeRepository
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Snapshot
	group   singleflight.Group

	stopOnce sync.Once
	stop     chan struct{}
}

func New(store domain.PrivilegeRepository, ttl time.Duration, maxEntries int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:      store,
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger,
		entries:    make(map[string]*Snapshot),
		stop:       make(chan struct{}),
	}
}

// TTL returns the configured staleness bound.
func (c *Cache) TTL() time.Duration { return c.ttl }

// PrivilegesFor returns a snapshot of the principal's grant set no older
// than the TTL, reading through to the store when needed. Waiters can
// abandon an in-flight refresh via ctx without cancelling the shared load.
func (c *Cache) PrivilegesFor(ctx context.Context, principal string) (*Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.entries[principal]
	c.mu.RUnlock()
	if ok && time.Since(snap.refreshedAt) < c.ttl {
		return snap, nil
	}

	ch := c.group.DoChan(principal, func() (any, error) {
		// The load outlives any single waiter.
		return c.refresh(context.WithoutCancel(ctx), principal)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate drops the principal's entry and forgets any in-flight
// refresh so the next read observes the store directly.
func (c *Cache) Invalidate(principal string) {
	c.group.Forget(principal)
	c.mu.Lock()
	delete(c.entries, principal)
	c.mu.Unlock()
}

// Len returns the number of cached principals.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) refresh(ctx context.Context, principal string) (*Snapshot, error) {
	// A caller that raced a just-completed refresh lands here with a
	// fresh entry already in place; serve it instead of re-reading.
	c.mu.RLock()
	snap, ok := c.entries[principal]
	c.mu.RUnlock()
	if ok && time.Since(snap.refreshedAt) < c.ttl {
		return snap, nil
	}

	// Stamp the snapshot with the time the read started: the store only
	// guarantees the data as of then, so read latency counts against the
	// entry's remaining freshness.
	start := time.Now()
	privs, err := c.store.ListForPrincipal(ctx, principal)
	if err != nil {
		return nil, err
	}
	fresh := newSnapshot(principal, privs, start)

	c.mu.Lock()
	c.entries[principal] = fresh
	if len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
	c.mu.Unlock()

	return fresh, nil
}

// evictOldestLocked drops the least recently refreshed entry. Caller holds mu.
func (c *Cache) evictOldestLocked() {
	var victim string
	var oldest time.Time
	for principal, snap := range c.entries {
		if victim == "" || snap.refreshedAt.Before(oldest) {
			victim = principal
			oldest = snap.refreshedAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// StartJanitor launches a background sweep that drops expired entries so
// idle principals do not pin memory. No-op when interval <= 0.
func (c *Cache) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// StopJanitor stops the background sweep. Safe to call more than once.
func (c *Cache) StopJanitor() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) sweep() {
	cutoff := time.Now().Add(-c.ttl)
	c.mu.Lock()
	removed := 0
	for principal, snap := range c.entries {
		if snap.refreshedAt.Before(cutoff) {
			delete(c.entries, principal)
			removed++
		}
	}
	c.mu.Unlock()
	if removed > 0 {
		c.logger.Debug("authz cache sweep", "removed", removed)
	}
}
