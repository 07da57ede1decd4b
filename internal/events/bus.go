package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Each Bus is an explicitly owned
// instance injected into the components that publish or subscribe; there is
// no package-level default. Subscriptions are multi-subscriber safe.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(SessionStateEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so unwrap the
	// interface with a type switch.
	switch e := ev.(type) {
	case SessionStateEvent:
		event.Publish(b.dispatcher, e)
	case RecordingSavedEvent:
		event.Publish(b.dispatcher, e)
	case ExportProgressEvent:
		event.Publish(b.dispatcher, e)
	case ExportDoneEvent:
		event.Publish(b.dispatcher, e)
	case ExportErrorEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler function. The handler's parameter type
// determines which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ExportProgressEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SessionStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecordingSavedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExportProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExportDoneEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExportErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
