package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGens is a controllable Generations source.
type fakeGens struct {
	mu   sync.Mutex
	gens map[string]time.Time
}

func newFakeGens() *fakeGens {
	return &fakeGens{gens: make(map[string]time.Time)}
}

func (f *fakeGens) Generation(cityID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gens[cityID]
	return g, ok
}

func (f *fakeGens) publish(cityID string, gen time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gens[cityID] = gen
}

func TestKey_Normalized(t *testing.T) {
	a := Key("query", []string{"b", "a"}, map[string]string{"limit": "5", "format": "json"})
	b := Key("query", []string{"a", "b"}, map[string]string{"format": "json", "limit": "5"})
	assert.Equal(t, a, b, "key must not depend on city or parameter order")

	c := Key("query", []string{"a", "b"}, map[string]string{"format": "geojson", "limit": "5"})
	assert.NotEqual(t, a, c, "different parameters must produce different keys")
}

func TestGetPut(t *testing.T) {
	gens := newFakeGens()
	gens.publish("los_angeles", time.Unix(100, 0))
	clock := clockwork.NewFakeClock()
	c := New(gens, time.Minute, 10, clock)

	key := Key("query", []string{"los_angeles"}, nil)
	_, ok := c.Get(key)
	assert.False(t, ok, "miss before Put")

	c.Put(key, "result", []string{"los_angeles"})
	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "result", v)
}

func TestTTLExpiry(t *testing.T) {
	gens := newFakeGens()
	gens.publish("los_angeles", time.Unix(100, 0))
	clock := clockwork.NewFakeClock()
	c := New(gens, time.Minute, 10, clock)

	key := Key("query", []string{"los_angeles"}, nil)
	c.Put(key, "result", []string{"los_angeles"})

	clock.Advance(59 * time.Second)
	_, ok := c.Get(key)
	assert.True(t, ok, "entry should survive inside the TTL")

	clock.Advance(2 * time.Second)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestRepublishInvalidatesOnRead(t *testing.T) {
	gens := newFakeGens()
	gens.publish("los_angeles", time.Unix(100, 0))
	c := New(gens, time.Hour, 10, clockwork.NewFakeClock())

	key := Key("query", []string{"los_angeles"}, nil)
	c.Put(key, "old", []string{"los_angeles"})

	// New generation published; no InvalidateCity call has run yet.
	gens.publish("los_angeles", time.Unix(200, 0))

	_, ok := c.Get(key)
	assert.False(t, ok, "entry built from a superseded generation must never be served")
}

func TestInvalidateCity(t *testing.T) {
	gens := newFakeGens()
	gens.publish("los_angeles", time.Unix(100, 0))
	gens.publish("chicago", time.Unix(100, 0))
	c := New(gens, time.Hour, 10, clockwork.NewFakeClock())

	laKey := Key("query", []string{"los_angeles"}, nil)
	bothKey := Key("compare", []string{"los_angeles", "chicago"}, nil)
	chiKey := Key("query", []string{"chicago"}, nil)
	c.Put(laKey, 1, []string{"los_angeles"})
	c.Put(bothKey, 2, []string{"los_angeles", "chicago"})
	c.Put(chiKey, 3, []string{"chicago"})

	c.InvalidateCity("los_angeles")

	_, ok := c.Get(laKey)
	assert.False(t, ok)
	_, ok = c.Get(bothKey)
	assert.False(t, ok, "multi-city entries referencing the city must be dropped")
	_, ok = c.Get(chiKey)
	assert.True(t, ok, "entries for other cities survive")
}

func TestFirstPublishInvalidatesNotReadyEntry(t *testing.T) {
	gens := newFakeGens()
	c := New(gens, time.Hour, 10, clockwork.NewFakeClock())

	// Cached while the city had no grid at all.
	key := Key("cities", []string{"denver"}, nil)
	c.Put(key, "not ready", []string{"denver"})

	_, ok := c.Get(key)
	assert.True(t, ok, "entry is valid while the city stays unpublished")

	gens.publish("denver", time.Unix(100, 0))
	_, ok = c.Get(key)
	assert.False(t, ok, "first publish must invalidate entries computed before it")
}

func TestLRUEviction(t *testing.T) {
	gens := newFakeGens()
	gens.publish("a", time.Unix(1, 0))
	c := New(gens, time.Hour, 2, clockwork.NewFakeClock())

	c.Put("k1", 1, []string{"a"})
	c.Put("k2", 2, []string{"a"})

	// Touch k1 so k2 becomes least recently used.
	_, _ = c.Get("k1")

	c.Put("k3", 3, []string{"a"})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("k2")
	assert.False(t, ok, "least recently used entry should have been evicted")
	_, ok = c.Get("k1")
	assert.True(t, ok)
	_, ok = c.Get("k3")
	assert.True(t, ok)
}
