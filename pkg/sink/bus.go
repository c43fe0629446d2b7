package sink

import (
	"sync"
	"sync/atomic"
)

type subscription struct {
	task    TaskID
	handler func(Update)
}

// Bus is an in-process pub/sub observer. Subscribers register for one task
// or, with an empty TaskID, for all of them. Handlers run synchronously on
// the publishing goroutine, so a slow subscriber must queue on its own side
// (see the websocket stream).
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]subscription)}
}

// Subscribe registers handler for updates of id ("" for every task). It
// returns an unsubscribe function.
func (b *Bus) Subscribe(id TaskID, handler func(Update)) (unsubscribe func()) {
	key := atomic.AddUint64(&b.nextID, 1)

	b.mu.Lock()
	b.subs[key] = subscription{task: id, handler: handler}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, key)
		b.mu.Unlock()
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) OnUpdate(u Update) {
	b.mu.RLock()
	handlers := make([]func(Update), 0, len(b.subs))
	for _, s := range b.subs {
		if s.task == "" || s.task == u.Task {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(u)
	}
}
