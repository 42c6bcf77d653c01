// Package bus provides a small in-process publish/subscribe channel for
// session change notifications. Durable storage writes are visible to every
// context sharing the storage, but they do not by themselves wake listeners
// in the current process; the bus is that explicit signal.
//
// Subscribers are notified in registration order. No ordering guarantee
// exists beyond that, and a subscriber that cannot keep up has the signal
// dropped rather than blocking the publisher.
package bus

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// AuthChanged is the event published whenever the session store writes or
// clears the session. HasToken reflects the token state at publish time;
// handlers are still expected to re-read the store, since rapid successive
// changes may have landed since.
type AuthChanged struct {
	HasToken bool
}

// Bus fans AuthChanged events out to any number of subscribers.
// The zero value is not usable; call New.
type Bus struct {
	mu   sync.Mutex
	subs []chan AuthChanged
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a listener and returns its event channel together
// with an unsubscribe function. The channel is buffered so a pending
// signal survives a handler that is momentarily busy; it is closed by
// unsubscribe.
func (b *Bus) Subscribe() (<-chan AuthChanged, func()) {
	ch := make(chan AuthChanged, 8)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}

	return ch, unsubscribe
}

// Publish delivers the event to all current subscribers in registration
// order. A full subscriber channel drops the event for that subscriber.
func (b *Bus) Publish(event AuthChanged) {
	b.mu.Lock()
	subs := make([]chan AuthChanged, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			log.Warn().Bool("has_token", event.HasToken).Msg("Subscriber busy, auth signal dropped")
		}
	}
}
