package store

import (
	"sync"
	"sync/atomic"
	"time"
)

// PublishEvent announces that a new grid generation replaced the previous one
// for a city. Consumers use it to drop cached query results and write audit
// artifacts.
type PublishEvent struct {
	CityID      string
	GeneratedAt time.Time
}

// Broadcaster fans publish events out to subscribers. Sends never block the
// publisher; a subscriber that falls behind misses events, which is safe
// because consumers re-validate against the store's current generation.
type Broadcaster struct {
	subscribers map[uint64]chan PublishEvent
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan PublishEvent),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan PublishEvent) {
	id := b.nextID.Add(1)
	ch := make(chan PublishEvent, 64)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(ev PublishEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, letting consumer goroutines exit.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
