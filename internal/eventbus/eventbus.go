// Package eventbus implements the process-wide typed broadcast of
// NeoTalkEvent variants described in spec §4.3: fire-and-forget, no
// delivery guarantee beyond in-order delivery to still-connected
// subscribers, and lossy under backpressure.
package eventbus

import (
	"sync"

	"github.com/neomind/edge/internal/mdl"
)

// EventType tags the NeoTalkEvent variant.
type EventType string

const (
	EventDeviceOnline  EventType = "DeviceOnline"
	EventDeviceOffline EventType = "DeviceOffline"
	EventDeviceMetric  EventType = "DeviceMetric"
	EventDiscovery     EventType = "Discovery"
	EventRuleTriggered EventType = "RuleTriggered"
)

// Event is the single NeoTalkEvent envelope; fields not relevant to
// EventType are left zero.
type Event struct {
	Type       EventType       `json:"type"`
	DeviceID   string          `json:"device_id,omitempty"`
	DeviceType string          `json:"device_type,omitempty"`
	Metric     string          `json:"metric,omitempty"`
	Value      mdl.MetricValue `json:"value,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	Quality    *int32          `json:"quality,omitempty"`
	RuleID     string          `json:"rule_id,omitempty"`
	Source     string          `json:"source,omitempty"`
}

const subscriberBuffer = 256

type subscriber struct {
	ch chan Event
}

// Bus is the process-wide broadcast channel. The zero value is not usable;
// construct with New.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

func New() *Bus {
	return &Bus{subs: map[int]*subscriber{}}
}

// Subscribe registers a new subscriber and returns its receive channel
// plus an unsubscribe function. The channel is buffered; a slow
// subscriber that falls behind silently misses events rather than
// blocking the publisher.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	b.subs[id] = sub
	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
}

// Publish is fire-and-forget: it delivers to every current subscriber
// without blocking on a full channel.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			// subscriber is behind; drop rather than block the publisher.
		}
	}
}

// PublishWithSource additionally records the emitting component.
func (b *Bus) PublishWithSource(e Event, source string) {
	e.Source = source
	b.Publish(e)
}

// SubscriberCount reports the number of live subscribers; used in tests
// and health checks.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
