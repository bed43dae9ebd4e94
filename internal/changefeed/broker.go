// File: internal/changefeed/broker.go
package changefeed

import (
	"sync"

	"go.uber.org/zap"
)

// Topics published by the SQL store.
const (
	TopicUsers     = "users"
	TopicRequests  = "requests"
	TopicMessages  = "messages"
	TopicDonations = "donations"
)

// Event announces that a document changed. Key is the document ID, or the
// parent document ID for sub-collection topics.
type Event struct {
	Topic string
	Key   string
}

// Subscription receives a wake-up after each batch of events on its topic.
// Wake-ups coalesce: a subscriber that is busy sees a single pending signal,
// and is expected to re-read the state it watches.
type Subscription struct {
	C <-chan struct{}

	c      chan struct{}
	topic  string
	id     uint64
	broker *Broker
	once   sync.Once
}

// Close detaches the subscription from its broker.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s.topic, s.id)
	})
}

// Broker is an in-process fan-out of change events.
type Broker struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
}

// NewBroker creates an empty broker.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		logger: logger.Named("changefeed"),
		subs:   make(map[string]map[uint64]*Subscription),
	}
}

// Subscribe registers interest in topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	c := make(chan struct{}, 1)
	sub := &Subscription{C: c, c: c, topic: topic, id: b.nextID, broker: b}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][sub.id] = sub
	b.logger.Debug("Subscriber added", zap.String("topic", topic), zap.Int("subscribers", len(b.subs[topic])))
	return sub
}

// Publish wakes every subscriber of the topics in events. It never blocks.
func (b *Broker) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	topics := make(map[string]struct{}, len(events))
	for _, e := range events {
		topics[e.Topic] = struct{}{}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for topic := range topics {
		for _, sub := range b.subs[topic] {
			select {
			case sub.c <- struct{}{}:
			default:
			}
		}
	}
}

func (b *Broker) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs[topic], id)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
