// Package bus carries refresh notifications between the workflow core and
// whichever presentation adapter is running. Session changes and newly logged
// attendance must re-fetch any visible view, so the core publishes here and
// adapters subscribe.
package bus

import (
	"context"
	"sync"
)

// Event types published by the core.
const (
	SessionChanged   = "session_changed"
	AttendanceLogged = "attendance_logged"
	RosterChanged    = "roster_changed"
)

// Event names the thing that changed.
type Event struct {
	Type string
}

// Bus is a minimal in-process fan-out. Subscribers each get their own bounded
// channel; a slow subscriber drops events rather than blocking the core.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Publish delivers the event to every current subscriber.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel that receives events until ctx is done.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}
