package portfolio

import (
	"sync"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/logger"
)

// eventBus fans position events out to registered listeners
type eventBus struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]func(contracts.PositionEvent)
	logger    *logger.Logger
}

func newEventBus(log *logger.Logger) *eventBus {
	return &eventBus{
		listeners: make(map[int]func(contracts.PositionEvent)),
		logger:    log,
	}
}

func (b *eventBus) subscribe(fn func(contracts.PositionEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *eventBus) publish(ev contracts.PositionEvent) {
	b.mu.RLock()
	fns := make([]func(contracts.PositionEvent), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(fn, ev)
	}
}

func (b *eventBus) deliver(fn func(contracts.PositionEvent), ev contracts.PositionEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.WithField("panic", rec).Error("Position listener panicked")
		}
	}()
	fn(ev)
}

func (b *eventBus) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
