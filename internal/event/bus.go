// Package event provides the in-process event bus plugins use to react to
// each other without direct imports.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

type subscriber struct {
	id      uint64
	handler plugin.EventHandler
}

// Bus is a synchronous topic-based event bus. Handlers run on the
// publisher's goroutine for Publish and on a fresh goroutine for
// PublishAsync. A panicking handler is logged and does not stop delivery.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscriber
	all    []subscriber
	logger *zap.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]subscriber),
		logger: logger,
	}
}

// Publish delivers event to every matching subscriber before returning.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, s := range b.snapshot(event.Topic) {
		b.deliver(ctx, s, event)
	}
	return nil
}

// PublishAsync delivers event in the background.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	go func() {
		_ = b.Publish(context.WithoutCancel(ctx), event)
	}()
}

// Subscribe registers handler for a single topic.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.topics[topic] = remove(b.topics[topic], id)
	}
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

func (b *Bus) snapshot(topic string) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]subscriber, 0, len(b.topics[topic])+len(b.all))
	subs = append(subs, b.topics[topic]...)
	subs = append(subs, b.all...)
	return subs
}

func (b *Bus) deliver(ctx context.Context, s subscriber, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	s.handler(ctx, event)
}

func remove(subs []subscriber, id uint64) []subscriber {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
