package chatext

import (
	"sync"

	"github.com/ras0q/lazycompose/internal/chat"
)

type handler struct {
	id uint64
	fn func(chat.Event)
}

// Bus fans real-time events out to registered handlers. Handlers run synchronously on the
// emitting goroutine, outside the bus lock.
type Bus struct {
	mu       sync.Mutex
	handlers map[chat.EventType][]handler
	nextID   uint64
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[chat.EventType][]handler)}
}

func (b *Bus) On(eventType chat.EventType, fn func(chat.Event)) chat.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], handler{id: id, fn: fn})

	return chat.SubscriptionFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		hs := b.handlers[eventType]
		for i, h := range hs {
			if h.id == id {
				b.handlers[eventType] = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
	})
}

func (b *Bus) Emit(e chat.Event) {
	b.mu.Lock()
	hs := append([]handler(nil), b.handlers[e.Type]...)
	b.mu.Unlock()

	for _, h := range hs {
		h.fn(e)
	}
}

// HandlerCount returns the number of live handlers for eventType.
func (b *Bus) HandlerCount(eventType chat.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.handlers[eventType])
}
