package broker

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Subscriber is a live connection from the broker's point of view. Enqueue
// must never block: it returns false when the connection can no longer
// accept frames and should be dropped from all topics.
type Subscriber interface {
	// Enqueue hands a frame to the connection's outbound buffer. Droppable
	// frames (typing, presence, queue positions) may be discarded under
	// pressure; non-droppable frames force the connection closed instead of
	// being lost silently.
	Enqueue(env Envelope, droppable bool) bool

	// ID identifies the connection in logs.
	ID() string
}

type topic struct {
	mu   sync.RWMutex
	subs map[Subscriber]struct{}
}

// Broker is the process-local pub/sub layer. Durability lives in the session
// store; the broker only moves frames to currently connected subscribers.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]*topic
}

// New creates an empty broker
func New() *Broker {
	return &Broker{topics: make(map[string]*topic)}
}

// Subscribe adds a connection to a topic. Idempotent.
func (b *Broker) Subscribe(sub Subscriber, name string) {
	b.mu.Lock()
	t, ok := b.topics[name]
	if !ok {
		t = &topic{subs: make(map[Subscriber]struct{})}
		b.topics[name] = t
	}
	b.mu.Unlock()

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
}

// Unsubscribe removes a connection from a topic. Idempotent.
func (b *Broker) Unsubscribe(sub Subscriber, name string) {
	b.mu.RLock()
	t, ok := b.topics[name]
	b.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.Lock()
	delete(t.subs, sub)
	empty := len(t.subs) == 0
	t.mu.Unlock()

	if empty {
		b.reapTopic(name)
	}
}

// UnsubscribeAll removes a connection from every topic. Mandatory on
// disconnect.
func (b *Broker) UnsubscribeAll(sub Subscriber) {
	b.mu.RLock()
	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	b.mu.RUnlock()

	for _, name := range names {
		b.Unsubscribe(sub, name)
	}
}

// Publish fans an envelope out to every subscriber of the topic. Delivery is
// per-subscriber non-blocking; a slow consumer never stalls the others.
func (b *Broker) Publish(name string, env Envelope, droppable bool) {
	b.mu.RLock()
	t, ok := b.topics[name]
	b.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.RLock()
	subs := make([]Subscriber, 0, len(t.subs))
	for sub := range t.subs {
		subs = append(subs, sub)
	}
	t.mu.RUnlock()

	for _, sub := range subs {
		if !sub.Enqueue(env, droppable) {
			log.Debug().Str("conn", sub.ID()).Str("topic", name).Str("event", env.Event).
				Msg("dropping dead subscriber")
			b.UnsubscribeAll(sub)
		}
	}
}

// Subscribers reports the current subscriber count of a topic.
func (b *Broker) Subscribers(name string) int {
	b.mu.RLock()
	t, ok := b.topics[name]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// reapTopic removes a topic whose subscriber set went empty. Re-checked
// under the write lock because a subscribe may have raced in.
func (b *Broker) reapTopic(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		return
	}
	t.mu.RLock()
	empty := len(t.subs) == 0
	t.mu.RUnlock()
	if empty {
		delete(b.topics, name)
	}
}
