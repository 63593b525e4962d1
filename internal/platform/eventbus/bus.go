package eventbus

import (
	"sync"
	"sync/atomic"
)

// Topic names an event stream.
type Topic string

// Handler receives an event payload.
type Handler func(payload any)

type subscription struct {
	id      uint64
	handler Handler
	removed atomic.Bool
}

// Bus is a synchronous in-process pub/sub. A handler registered before
// Publish is called sees the event; a handler removed before it would be
// invoked does not.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]*subscription
}

func New() *Bus {
	return &Bus{subs: make(map[Topic][]*subscription)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, handler: h}
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, sub) })
	}
}

// Publish calls every current handler of topic in registration order.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	snapshot := append([]*subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		if sub.removed.Load() {
			continue
		}
		sub.handler(payload)
	}
}

func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.removed.Store(true)
		}
	}
	b.subs = make(map[Topic][]*subscription)
}

func (b *Bus) remove(topic Topic, target *subscription) {
	target.removed.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, sub := range subs {
		if sub.id == target.id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}
