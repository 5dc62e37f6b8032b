// Package notify fans out best-effort notifications to websocket
// subscribers. Delivery is fire-and-forget: a failed or slow subscriber is
// dropped and logged, never surfaced to the publishing caller.
package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// WildcardChannel subscribes to every published notification.
const WildcardChannel = "*"

const subscriberBuffer = 16

// ChannelKey builds the routing key for account-scoped notifications.
func ChannelKey(kind string, accountID string) string {
	return kind + ":" + accountID
}

// Subscription is one subscriber's delivery stream. Messages arrives as
// marshaled JSON; the channel closes when the hub shuts down or the
// subscriber is dropped.
type Subscription struct {
	channelKey string
	messages   chan []byte
}

// Messages returns the delivery stream.
func (subscription *Subscription) Messages() <-chan []byte {
	return subscription.messages
}

type envelope struct {
	channelKey string
	payload    []byte
}

// Hub routes published payloads to channel-keyed subscribers.
type Hub struct {
	logger      *zap.Logger
	register    chan *Subscription
	unregister  chan *Subscription
	deliveries  chan envelope
	subscribers map[string]map[*Subscription]struct{}
}

// NewHub returns an idle hub; call Run to start routing.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:      logger,
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		deliveries:  make(chan envelope, 64),
		subscribers: make(map[string]map[*Subscription]struct{}),
	}
}

// Run owns the subscriber map until the context ends.
func (hub *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, group := range hub.subscribers {
				for subscription := range group {
					close(subscription.messages)
				}
			}
			hub.subscribers = make(map[string]map[*Subscription]struct{})
			return
		case subscription := <-hub.register:
			group, ok := hub.subscribers[subscription.channelKey]
			if !ok {
				group = make(map[*Subscription]struct{})
				hub.subscribers[subscription.channelKey] = group
			}
			group[subscription] = struct{}{}
		case subscription := <-hub.unregister:
			hub.drop(subscription)
		case delivery := <-hub.deliveries:
			hub.fanOut(delivery)
		}
	}
}

// Subscribe registers a stream for one channel key.
func (hub *Hub) Subscribe(channelKey string) *Subscription {
	subscription := &Subscription{
		channelKey: channelKey,
		messages:   make(chan []byte, subscriberBuffer),
	}
	hub.register <- subscription
	return subscription
}

// Unsubscribe drops the stream and closes it.
func (hub *Hub) Unsubscribe(subscription *Subscription) {
	hub.unregister <- subscription
}

// Publish marshals the payload and queues it for the channel's subscribers
// plus wildcard listeners. Failures are logged, never returned.
func (hub *Hub) Publish(channelKey string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		hub.logger.Warn("notification payload marshal failed",
			zap.String("channel", channelKey),
			zap.Error(err))
		return
	}
	select {
	case hub.deliveries <- envelope{channelKey: channelKey, payload: raw}:
	default:
		hub.logger.Warn("notification queue full, dropping message",
			zap.String("channel", channelKey))
	}
}

func (hub *Hub) fanOut(delivery envelope) {
	hub.deliverTo(hub.subscribers[delivery.channelKey], delivery)
	if delivery.channelKey != WildcardChannel {
		hub.deliverTo(hub.subscribers[WildcardChannel], delivery)
	}
}

func (hub *Hub) deliverTo(group map[*Subscription]struct{}, delivery envelope) {
	for subscription := range group {
		select {
		case subscription.messages <- delivery.payload:
		default:
			// Slow consumer: drop it rather than stall the hub.
			hub.logger.Warn("dropping slow notification subscriber",
				zap.String("channel", subscription.channelKey))
			hub.drop(subscription)
		}
	}
}

func (hub *Hub) drop(subscription *Subscription) {
	group, ok := hub.subscribers[subscription.channelKey]
	if !ok {
		return
	}
	if _, member := group[subscription]; !member {
		return
	}
	delete(group, subscription)
	if len(group) == 0 {
		delete(hub.subscribers, subscription.channelKey)
	}
	close(subscription.messages)
}
