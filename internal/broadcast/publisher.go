package broadcast

import (
	"context"
	"encoding/json"
	"sync"
)

// Topic names are the fixed prefix joined with the entity id.
const (
	topicPrefix = "bustrackr"

	// TopicPositions and TopicArrivals are the per-entity topic families;
	// TopicStatus is a single system-wide topic.
	TopicPositions = topicPrefix + "/positions"
	TopicArrivals  = topicPrefix + "/arrivals"
	TopicStatus    = topicPrefix + "/system/status"
)

// PositionTopic returns the per-route position topic.
func PositionTopic(routeID string) string {
	return TopicPositions + "/" + routeID
}

// ArrivalTopic returns the per-stop arrival topic.
func ArrivalTopic(stopID string) string {
	return TopicArrivals + "/" + stopID
}

// Publisher pushes a payload to every subscriber of a topic. Delivery is
// best-effort at-most-once: implementations report errors for logging but
// never retry, and callers must not depend on delivery.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Message is a delivered broadcast as seen by in-process subscribers.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Bus is the in-process topic bus. It backs the websocket stream and tests;
// slow subscribers drop messages rather than blocking a sync tick.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	prefix string
	ch     chan Message
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe registers for every topic with the given prefix. An empty prefix
// receives everything. The returned cancel func releases the subscription.
func (b *Bus) Subscribe(prefix string, buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers to matching subscribers without blocking.
func (b *Bus) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := Message{Topic: topic, Payload: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.prefix != "" && !hasTopicPrefix(topic, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Subscriber is behind; the next snapshot supersedes this one.
		}
	}
	return nil
}

func hasTopicPrefix(topic, prefix string) bool {
	if len(topic) < len(prefix) || topic[:len(prefix)] != prefix {
		return false
	}
	return len(topic) == len(prefix) || topic[len(prefix)] == '/'
}

// Fanout publishes to several transports, keeping the first error for the
// caller's log line. A failed transport never stops the others.
type Fanout []Publisher

// Publish sends to every transport.
func (f Fanout) Publish(ctx context.Context, topic string, payload any) error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, topic, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
