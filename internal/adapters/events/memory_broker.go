package events

import (
	"sync"

	"tour-planning-service/internal/domain"
)

// MemoryBroker fans transitions out to in-process subscribers. Slow
// subscribers miss events rather than block the publisher.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Transition]struct{} // topic -> set of channels
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[string]map[chan domain.Transition]struct{}{}}
}

func (b *MemoryBroker) Subscribe(topic string) chan domain.Transition {
	ch := make(chan domain.Transition, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan domain.Transition]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *MemoryBroker) Unsubscribe(topic string, ch chan domain.Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *MemoryBroker) Publish(topic string, t domain.Transition) {
	b.mu.Lock()
	for ch := range b.subs[topic] {
		select {
		case ch <- t:
		default:
		}
	}
	b.mu.Unlock()
}
