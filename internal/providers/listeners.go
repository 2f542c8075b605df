// Package providers holds helpers shared by recognizer adapters.
package providers

import (
	"sort"
	"sync"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

// Listeners is a registry of interim handlers. Publish delivers synchronously
// on the caller's goroutine, in registration order.
type Listeners struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]ports.InterimHandler
}

// Add registers handler and returns its subscription.
func (l *Listeners) Add(handler ports.InterimHandler) ports.Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handlers == nil {
		l.handlers = make(map[uint64]ports.InterimHandler)
	}
	l.next++
	id := l.next
	l.handlers[id] = handler
	return &subscription{listeners: l, id: id}
}

func (l *Listeners) Publish(result domain.InterimResult) {
	l.mu.Lock()
	ids := make([]uint64, 0, len(l.handlers))
	for id := range l.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]ports.InterimHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, l.handlers[id])
	}
	l.mu.Unlock()

	for _, handler := range handlers {
		handler(result)
	}
}

// Len is the number of registered handlers.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers)
}

func (l *Listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, id)
}

type subscription struct {
	listeners *Listeners
	id        uint64
	once      sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.listeners.remove(s.id) })
}
