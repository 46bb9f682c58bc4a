// Package notification provides the notification manager for broadcasting
// radio events to the presentation layer.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// subscriberBuffer is the number of notifications queued per subscriber
// before new ones are dropped.
const subscriberBuffer = 64

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// Publisher accepts notifications. Publish must not block.
type Publisher interface {
	Publish(Notification)
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
	ch     chan *Notification
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// pump delivers queued notifications in order until the subscription closes.
func (s *subscription) pump(m *Manager) {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.ch:
			if err := s.stream.Send(n); err != nil {
				zlog.Debug().Msgf("notification: send failed, unsubscribing: id=%s, error=%v", s.id, err)
				m.Unsubscribe(s.id)
				return
			}
		}
	}
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	now           func() time.Time
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		now:           time.Now,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	sub := &subscription{
		id:     uuid.New().String(),
		stream: stream,
		ch:     make(chan *Notification, subscriberBuffer),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.subscriptions[sub.id] = sub
	m.mu.Unlock()

	go sub.pump(m)
	return sub.id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[subscriptionID]
	delete(m.subscriptions, subscriptionID)
	m.mu.Unlock()

	if ok {
		sub.close()
	}
}

// Publish stamps n with a sequence number and queues it for every subscriber.
// A subscriber whose queue is full misses the notification.
func (m *Manager) Publish(n Notification) {
	n.SequenceNo = m.NextSequenceNo()
	if n.Time.IsZero() {
		n.Time = m.now()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subscriptions {
		msg := n
		select {
		case sub.ch <- &msg:
		default:
			zlog.Warn().Msgf("notification: subscriber queue full, dropping: id=%s, type=%s", sub.id, n.Type)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
