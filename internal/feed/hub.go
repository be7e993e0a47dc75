// Package feed fans published snapshots out to registered callbacks.
package feed

import "sync"

// Hub delivers values published on a topic to that topic's subscribers.
// Callbacks run on the publishing goroutine and must not block.
type Hub[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string]map[uint64]func(T)
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{topics: make(map[string]map[uint64]func(T))}
}

// Subscribe registers fn for topic. The returned function unregisters it and
// is safe to call more than once.
func (h *Hub[T]) Subscribe(topic string, fn func(T)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	subscribers, ok := h.topics[topic]
	if !ok {
		subscribers = make(map[uint64]func(T))
		h.topics[topic] = subscribers
	}
	subscribers[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.topics[topic], id)
			if len(h.topics[topic]) == 0 {
				delete(h.topics, topic)
			}
		})
	}
}

func (h *Hub[T]) Publish(topic string, value T) {
	h.mu.RLock()
	callbacks := make([]func(T), 0, len(h.topics[topic]))
	for _, fn := range h.topics[topic] {
		callbacks = append(callbacks, fn)
	}
	h.mu.RUnlock()

	for _, fn := range callbacks {
		fn(value)
	}
}

// Count returns the number of subscribers on topic.
func (h *Hub[T]) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
