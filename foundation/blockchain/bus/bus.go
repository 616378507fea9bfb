// Package bus defines the boundary to the host application's notification
// channel: a pub/sub bus between modules. The chain engine publishes
// events here (NEW_BLOCK, blocks:change, ...) and the Chain orchestrator
// answers module actions requested over it.
package bus

import (
	"fmt"

	eventbus "github.com/asaskevich/EventBus"
)

// Event is an immutable value published on the bus. Listeners never mutate
// it.
type Event struct {
	Topic string
	Data  any
}

// Handler receives published events for topics it subscribed to.
type Handler func(Event)

// Bus is the host application channel the chain publishes events on.
type Bus struct {
	eb eventbus.Bus
}

// New constructs a Bus backed by an in-process EventBus.
func New() *Bus {
	return &Bus{eb: eventbus.New()}
}

// Publish sends data to every subscriber of topic. Subscribers are invoked
// synchronously within the publishing task; a subscriber that needs to
// await should hand follow-up work to its own queue (Broadcaster, a
// channel publish) rather than block here.
func (b *Bus) Publish(topic string, data any) {
	b.eb.Publish(topic, Event{Topic: topic, Data: data})
}

// Subscription is the handle returned by Subscribe, used to unsubscribe the
// exact same underlying callback later.
type Subscription struct {
	topic string
	wrapped func(Event)
}

// Subscribe registers fn to be called for every event published on topic.
// The returned Subscription must be passed to Unsubscribe, since the bus
// matches registrations by the wrapped callback's identity, not by fn's.
func (b *Bus) Subscribe(topic string, fn Handler) (Subscription, error) {
	wrapped := func(ev Event) { fn(ev) }
	if err := b.eb.Subscribe(topic, wrapped); err != nil {
		return Subscription{}, err
	}
	return Subscription{topic: topic, wrapped: wrapped}, nil
}

// Unsubscribe removes sub's registration. Used during cleanup.
func (b *Bus) Unsubscribe(sub Subscription) error {
	return b.eb.Unsubscribe(sub.topic, sub.wrapped)
}

// TopicName builds the "{alias}:event" topic names used throughout.
func TopicName(alias, event string) string {
	return fmt.Sprintf("%s:%s", alias, event)
}
