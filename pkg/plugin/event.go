package plugin

import (
	"context"
	"time"
)

// Event topics published by core modules.
const (
	TopicSessionStarted = "auth.session.started"
	TopicSessionEnded   = "auth.session.ended"
)

// Event is a message published on the event bus.
type Event struct {
	Topic     string
	Source    string
	Timestamp time.Time
	Payload   any
}

// EventHandler processes a single event.
type EventHandler func(ctx context.Context, event Event)

// EventBus delivers events between plugins.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	PublishAsync(ctx context.Context, event Event)
	Subscribe(topic string, handler EventHandler) (unsubscribe func())
	SubscribeAll(handler EventHandler) (unsubscribe func())
}

// SessionEvent is the payload of the auth.session.* topics.
type SessionEvent struct {
	SessionID string
	UserID    string
}
