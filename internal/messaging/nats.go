// Package messaging provides a NATS client wrapper for pub/sub messaging
// between the triage bot, the gateway, and the platform bridge. It
// handles connection lifecycle, subject-based subscriptions, and
// convenience methods for the triage subjects.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across triage services.
const (
	SubjectDMInbound    = "dm.inbound"
	SubjectDMOutbound   = "dm.outbound"      // + .<user_id>
	SubjectGuildMessage = "guild.message"
	SubjectGuildEdit    = "guild.edit"
	SubjectFetch        = "platform.fetch"   // request/reply
	SubjectSend         = "platform.send"    // + .<channel_id>
	SubjectNotify       = "platform.notify"  // + .<user_id>
	SubjectMarker       = "platform.marker"
)

// DefaultRequestTimeout bounds platform.fetch request/reply round trips.
const DefaultRequestTimeout = 5 * time.Second

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "triage",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Request performs a request/reply round trip on the given subject.
func (c *NATSClient) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	msg, err := c.conn.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeInboundDM subscribes to direct messages sent to the bot.
func (c *NATSClient) SubscribeInboundDM(handler func(data []byte)) error {
	return c.Subscribe(SubjectDMInbound, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishInboundDM publishes a user's direct message to the bot.
func (c *NATSClient) PublishInboundDM(data []byte) error {
	return c.Publish(SubjectDMInbound, data)
}

// SubscribeOutboundDM subscribes to the bot's replies addressed to a
// specific user. The subscription is keyed by sessionID so multiple
// gateway connections for the same user don't overwrite each other.
func (c *NATSClient) SubscribeOutboundDM(userID, sessionID string, handler func(data []byte)) error {
	subject := SubjectDMOutbound + "." + userID
	key := "dmsub:" + sessionID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeOutboundDM unsubscribes a gateway session's DM subscription.
func (c *NATSClient) UnsubscribeOutboundDM(sessionID string) error {
	return c.unsubscribe("dmsub:" + sessionID)
}

// PublishOutboundDM publishes a bot reply to the user's DM subject.
func (c *NATSClient) PublishOutboundDM(userID string, data []byte) error {
	return c.Publish(SubjectDMOutbound+"."+userID, data)
}

// SubscribeGuildMessages subscribes to new messages in monitored channels.
func (c *NATSClient) SubscribeGuildMessages(handler func(data []byte)) error {
	return c.Subscribe(SubjectGuildMessage, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeGuildEdits subscribes to message edit events.
func (c *NATSClient) SubscribeGuildEdits(handler func(data []byte)) error {
	return c.Subscribe(SubjectGuildEdit, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// RequestFetch asks the platform bridge to resolve a message reference.
func (c *NATSClient) RequestFetch(data []byte, timeout time.Duration) ([]byte, error) {
	return c.Request(SubjectFetch, data, timeout)
}

// SubscribeFetch subscribes to fetch requests. The handler's return value
// is sent back as the reply. Used by the platform bridge.
func (c *NATSClient) SubscribeFetch(handler func(data []byte) []byte) error {
	return c.Subscribe(SubjectFetch, func(msg *nats.Msg) {
		if reply := handler(msg.Data); reply != nil {
			if err := msg.Respond(reply); err != nil {
				log.Printf("[nats] fetch reply: %v", err)
			}
		}
	})
}

// PublishChannelSend asks the bridge to post content to a channel.
func (c *NATSClient) PublishChannelSend(channelID string, data []byte) error {
	return c.Publish(SubjectSend+"."+channelID, data)
}

// SubscribeChannelSends subscribes to channel send requests for all
// channels. Used by the platform bridge.
func (c *NATSClient) SubscribeChannelSends(handler func(data []byte)) error {
	return c.Subscribe(SubjectSend+".*", func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishNotify asks the bridge to deliver a direct notification.
func (c *NATSClient) PublishNotify(userID string, data []byte) error {
	return c.Publish(SubjectNotify+"."+userID, data)
}

// SubscribeNotifies subscribes to notification requests for all users.
// Used by the platform bridge.
func (c *NATSClient) SubscribeNotifies(handler func(data []byte)) error {
	return c.Subscribe(SubjectNotify+".*", func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishMarker asks the bridge to apply a reaction marker to a message.
func (c *NATSClient) PublishMarker(data []byte) error {
	return c.Publish(SubjectMarker, data)
}

// SubscribeMarkers subscribes to marker requests. Used by the platform
// bridge.
func (c *NATSClient) SubscribeMarkers(handler func(data []byte)) error {
	return c.Subscribe(SubjectMarker, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
