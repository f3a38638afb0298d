package app

import "sync"

// EventType identifies state changes the UI can subscribe to.
type EventType int

const (
	EventTargetChanged EventType = iota
	EventAnnotationChanged
	EventStyleChanged
	EventImageSizeChanged
	EventCursorChanged
	EventReviewChanged
	EventSaved
)

// Bus is a minimal listener registry. Emit calls listeners synchronously on
// the emitting goroutine.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventType][]func(data any)
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[EventType][]func(data any))}
}

func (b *Bus) On(t EventType, fn func(data any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[t] = append(b.listeners[t], fn)
}

func (b *Bus) Emit(t EventType, data any) {
	b.mu.RLock()
	fns := b.listeners[t]
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(data)
	}
}
