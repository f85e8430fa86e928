package events

import "sync"

// Bus is a small channel-based pub/sub broker. Publishing never blocks; a
// subscriber that falls behind loses messages rather than stalling the
// execution path.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]chan any
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a listener and returns its channel plus an unsubscribe
// function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, c := range b.subs[e] {
			if c == ch {
				close(c)
				b.subs[e] = append(b.subs[e][:i], b.subs[e][i+1:]...)
				return
			}
		}
	}
	return ch, unsub
}

// Publish fans the payload out to all subscribers of the event.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// slow subscriber; drop rather than block order flow
		}
	}
}
