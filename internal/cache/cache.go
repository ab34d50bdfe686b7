// Package cache memoizes query and comparison results. Entries die on TTL,
// on LRU pressure, and the instant any city they were built from publishes a
// new grid generation.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Generations exposes the store's current generation stamp per city. The
// cache re-validates entries against it on every read, so even if an
// invalidation event is delayed, a stale entry is never served.
type Generations interface {
	Generation(cityID string) (time.Time, bool)
}

type Cache struct {
	gens       Generations
	clock      clockwork.Clock
	ttl        time.Duration
	maxEntries int

	// OnLookup, when set, is called with the outcome of every Get. Set it
	// before the cache is shared between goroutines.
	OnLookup func(hit bool)

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key     string
	value   any
	expires time.Time
	// stamps records the grid generation of every city the value was
	// computed from.
	stamps map[string]time.Time
	prev   *entry
	next   *entry
}

func New(gens Generations, ttl time.Duration, maxEntries int, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		gens:       gens,
		clock:      clock,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// Key builds a canonical cache key from an operation name, the cities it
// touches, and its normalized parameters. Order of cities and parameters
// does not matter.
func Key(op string, cities []string, params map[string]string) string {
	sorted := make([]string, len(cities))
	copy(sorted, cities)
	sort.Strings(sorted)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('|')
	b.WriteString(strings.Join(sorted, ","))
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}

// Get returns the cached value for key if it is still live: not expired, and
// every city it depends on is still at the generation it was computed from.
func (c *Cache) Get(key string) (any, bool) {
	value, ok := c.get(key)
	if c.OnLookup != nil {
		c.OnLookup(ok)
	}
	return value, ok
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expires) {
		c.removeEntry(e)
		return nil, false
	}
	for cityID, stamp := range e.stamps {
		// Generation reports the zero time for an unpublished city, matching
		// the zero stamp recorded at Put time. Any publish breaks equality.
		current, _ := c.gens.Generation(cityID)
		if !current.Equal(stamp) {
			c.removeEntry(e)
			return nil, false
		}
	}

	c.moveToFront(e)
	return e.value, true
}

// Put stores value under key, recording the current generation of every city
// it was derived from. A city with no published grid is stamped with the zero
// time, so the entry dies the moment that city first publishes.
func (c *Cache) Put(key string, value any, cities []string) {
	stamps := make(map[string]time.Time, len(cities))
	for _, cityID := range cities {
		gen, _ := c.gens.Generation(cityID)
		stamps[cityID] = gen
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = c.clock.Now().Add(c.ttl)
		e.stamps = stamps
		c.moveToFront(e)
		return
	}

	e := &entry{
		key:     key,
		value:   value,
		expires: c.clock.Now().Add(c.ttl),
		stamps:  stamps,
	}
	c.entries[key] = e
	c.addToFront(e)

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// InvalidateCity eagerly drops every entry that depends on the city. Reads
// would reject those entries anyway via the generation check; this just
// frees the memory promptly.
func (c *Cache) InvalidateCity(cityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if _, ok := e.stamps[cityID]; ok {
			c.removeEntry(e)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeEntry(e *entry) {
	delete(c.entries, e.key)
	c.unlink(e)
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}
	c.removeEntry(c.tail)
}
