package broker

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// stubSubscriber records delivered envelopes; alive=false simulates a dead
// connection.
type stubSubscriber struct {
	id    string
	alive bool

	mu   sync.Mutex
	seen []Envelope
}

func newStub(alive bool) *stubSubscriber {
	return &stubSubscriber{id: uuid.New().String(), alive: alive}
}

func (s *stubSubscriber) Enqueue(env Envelope, droppable bool) bool {
	if !s.alive {
		return false
	}
	s.mu.Lock()
	s.seen = append(s.seen, env)
	s.mu.Unlock()
	return true
}

func (s *stubSubscriber) ID() string { return s.id }

func (s *stubSubscriber) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.seen))
	for i, e := range s.seen {
		out[i] = e.Event
	}
	return out
}

func TestBroker_PublishFansOut(t *testing.T) {
	b := New()
	a := newStub(true)
	c := newStub(true)
	other := newStub(true)

	b.Subscribe(a, "t1")
	b.Subscribe(c, "t1")
	b.Subscribe(other, "t2")

	b.Publish("t1", NewEnvelope("hello", nil), false)

	assert.Equal(t, []string{"hello"}, a.events())
	assert.Equal(t, []string{"hello"}, c.events())
	assert.Empty(t, other.events())
}

func TestBroker_PublishToMissingTopic(t *testing.T) {
	b := New()
	// Must not panic or create the topic.
	b.Publish("ghost", NewEnvelope("x", nil), true)
	assert.Equal(t, 0, b.Subscribers("ghost"))
}

func TestBroker_DeadSubscriberIsRemovedEverywhere(t *testing.T) {
	b := New()
	dead := newStub(false)
	live := newStub(true)

	b.Subscribe(dead, "t1")
	b.Subscribe(dead, "t2")
	b.Subscribe(live, "t1")

	b.Publish("t1", NewEnvelope("x", nil), false)

	assert.Equal(t, 1, b.Subscribers("t1"))
	assert.Equal(t, 0, b.Subscribers("t2"))
	assert.Equal(t, []string{"x"}, live.events())
}

func TestBroker_SubscribeIsIdempotent(t *testing.T) {
	b := New()
	s := newStub(true)

	b.Subscribe(s, "t")
	b.Subscribe(s, "t")
	assert.Equal(t, 1, b.Subscribers("t"))

	b.Publish("t", NewEnvelope("once", nil), false)
	assert.Equal(t, []string{"once"}, s.events())
}

func TestBroker_UnsubscribeReapsEmptyTopic(t *testing.T) {
	b := New()
	s := newStub(true)

	b.Subscribe(s, "t")
	b.Unsubscribe(s, "t")
	assert.Equal(t, 0, b.Subscribers("t"))

	// Unsubscribing twice is harmless.
	b.Unsubscribe(s, "t")
}

func TestBroker_UnsubscribeAll(t *testing.T) {
	b := New()
	s := newStub(true)

	for _, topic := range []string{"a", "b", "c"} {
		b.Subscribe(s, topic)
	}
	b.UnsubscribeAll(s)

	for _, topic := range []string{"a", "b", "c"} {
		assert.Equal(t, 0, b.Subscribers(topic))
	}
}

func TestBroker_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newStub(true)
			b.Subscribe(s, "hot")
			for j := 0; j < 100; j++ {
				b.Publish("hot", NewEnvelope("spin", nil), true)
			}
			b.Unsubscribe(s, "hot")
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.Subscribers("hot"))
}

func TestSessionAndAgentTopics(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "session:"+id.String(), SessionTopic(id))
	assert.Equal(t, "agent:"+id.String(), AgentTopic(id))
}

func TestEnvelope_WithRequestID(t *testing.T) {
	env := NewEnvelope("e", map[string]any{"k": "v"})
	assert.NotZero(t, env.Timestamp)
	assert.Empty(t, env.RequestID)

	tagged := env.WithRequestID("req-1")
	assert.Equal(t, "req-1", tagged.RequestID)
	assert.Empty(t, env.RequestID)
}
