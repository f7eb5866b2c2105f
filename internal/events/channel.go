package events

import (
	"log"
	"sync"
)

// Topics emitted by the tracking engine.
const (
	TopicSessionStarted = "session:started"
	TopicSessionPaused  = "session:paused"
	TopicSessionResumed = "session:resumed"
	TopicSessionStopped = "session:stopped"
	TopicPointAccepted  = "point:accepted"
	TopicPointRejected  = "point:rejected"
	TopicWaypointAdded  = "waypoint:added"
	TopicSourceError    = "source:error"
)

type Handler func(payload any)

type subscriber struct {
	id      uint64
	handler Handler
	once    bool
}

// Channel is a named-topic broadcast mechanism. Handlers for a topic run
// synchronously in subscription order; a panicking handler is recovered
// and logged so the remaining handlers still run. Channels are owned by
// whoever constructs them; there is no package-level instance.
type Channel struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string][]subscriber
}

func NewChannel() *Channel {
	return &Channel{topics: map[string][]subscriber{}}
}

// Subscribe registers handler for topic and returns an unsubscribe
// function. Unsubscribing twice is harmless.
func (c *Channel) Subscribe(topic string, handler Handler) func() {
	return c.add(topic, handler, false)
}

// SubscribeOnce registers a handler that is removed after its first
// invocation.
func (c *Channel) SubscribeOnce(topic string, handler Handler) func() {
	return c.add(topic, handler, true)
}

func (c *Channel) add(topic string, handler Handler, once bool) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.topics[topic] = append(c.topics[topic], subscriber{id: id, handler: handler, once: once})

	return func() { c.remove(topic, id) }
}

func (c *Channel) remove(topic string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.topics[topic]
	for i, sub := range subs {
		if sub.id == id {
			c.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish invokes every current subscriber of topic, in subscription
// order. Handlers registered during delivery do not receive this event.
func (c *Channel) Publish(topic string, payload any) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.topics[topic]))
	copy(subs, c.topics[topic])
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.once {
			c.remove(topic, sub.id)
		}
		invoke(topic, sub.handler, payload)
	}
}

func invoke(topic string, handler Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event handler panic on %s: %v", topic, r)
		}
	}()
	handler(payload)
}
