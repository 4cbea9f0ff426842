// Package enginecache bounds the number of concurrently-live rendering engine
// instances while keeping recently visited tabs instantly resumable.
//
// The cache is the only component besides the tab store owning a resource
// with real teardown cost. All mutation is funneled through the shell
// coordinator's run loop; the cache itself is not safe for concurrent use.
package enginecache

import (
	"log/slog"

	"github.com/dgnsrekt/tabdeck/internal/engine"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// DefaultMaxCount is the observed keep-alive bound.
const DefaultMaxCount = 10

type entry struct {
	id       tabs.TabID
	openerID tabs.TabID // weak relation, resolved against the cache on demand
	inst     engine.Instance
}

// Cache is an LRU keep-alive of live engine instances keyed by tab id.
// Entries are ordered least- to most-recently used.
type Cache struct {
	max     int
	entries []*entry
	current func() tabs.TabID
	onEvict func(tabs.TabID, engine.Instance)
}

// New creates a cache holding at most max entries. current reports the
// foregrounded tab id; it is consulted again at eviction time so a stale
// ordering can never evict the foreground tab's engine.
func New(max int, current func() tabs.TabID) *Cache {
	if max < 1 {
		max = 1
	}
	return &Cache{max: max, current: current}
}

// OnEvict registers a hook invoked with each evicted entry before its engine
// is torn down, while the instance is still usable. Explicit Remove and Close
// do not trigger it.
func (c *Cache) OnEvict(fn func(tabs.TabID, engine.Instance)) {
	c.onEvict = fn
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return len(c.entries) }

func (c *Cache) find(id tabs.TabID) int {
	for i, e := range c.entries {
		if e.id == id {
			return i
		}
	}
	return -1
}

// Insert adds a live instance for id, or marks the existing entry
// most-recently-used when one is already present. When the cache exceeds its
// bound the least-recently-used non-current entry is evicted: its engine is
// torn down silently, without touching any tab record.
func (c *Cache) Insert(id tabs.TabID, openerID tabs.TabID, inst engine.Instance) {
	if i := c.find(id); i >= 0 {
		e := c.entries[i]
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		c.entries = append(c.entries, e)
		return
	}
	c.entries = append(c.entries, &entry{id: id, openerID: openerID, inst: inst})
	c.evict()
}

// Touch marks an entry most-recently-used without inserting.
func (c *Cache) Touch(id tabs.TabID) {
	if i := c.find(id); i >= 0 {
		e := c.entries[i]
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		c.entries = append(c.entries, e)
	}
}

func (c *Cache) evict() {
	for len(c.entries) > c.max {
		cur := c.current()
		victim := -1
		for i, e := range c.entries {
			if e.id != cur {
				victim = i
				break
			}
		}
		if victim < 0 {
			return
		}
		e := c.entries[victim]
		c.entries = append(c.entries[:victim], c.entries[victim+1:]...)
		slog.Debug("engine evicted", "tab", e.id)
		if c.onEvict != nil {
			c.onEvict(e.id, e.inst)
		}
		if err := e.inst.Close(); err != nil {
			slog.Warn("engine teardown failed on eviction", "tab", e.id, "error", err)
		}
	}
}

// Lookup returns the live instance for id, or nil. Lookup does not affect
// recency order; only Insert and Touch do.
func (c *Cache) Lookup(id tabs.TabID) engine.Instance {
	if i := c.find(id); i >= 0 {
		return c.entries[i].inst
	}
	return nil
}

// Opener resolves the opener chain for id: the opener's live instance and id,
// if that entry is still alive. Absence is normal once the opener has been
// closed or evicted.
func (c *Cache) Opener(id tabs.TabID) (engine.Instance, tabs.TabID, bool) {
	i := c.find(id)
	if i < 0 || c.entries[i].openerID == "" {
		return nil, "", false
	}
	openerID := c.entries[i].openerID
	j := c.find(openerID)
	if j < 0 {
		return nil, "", false
	}
	return c.entries[j].inst, openerID, true
}

// Remove tears down the instance for id immediately. Used when a tab is
// closed; there is no deferred cleanup.
func (c *Cache) Remove(id tabs.TabID) {
	i := c.find(id)
	if i < 0 {
		return
	}
	e := c.entries[i]
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	if err := e.inst.Close(); err != nil {
		slog.Warn("engine teardown failed on close", "tab", e.id, "error", err)
	}
}

// Close tears down every live instance.
func (c *Cache) Close() {
	for _, e := range c.entries {
		if err := e.inst.Close(); err != nil {
			slog.Warn("engine teardown failed on shutdown", "tab", e.id, "error", err)
		}
	}
	c.entries = nil
}

// IDs returns the cached tab ids in LRU order, least recent first.
func (c *Cache) IDs() []tabs.TabID {
	out := make([]tabs.TabID, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.id
	}
	return out
}
