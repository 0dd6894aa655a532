package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication between
// the API, the worker and any external consumers of run results.
// Backed by Go channels (single node) or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `yaml:"type" mapstructure:"type"`

	// Channel settings
	ChannelBufferSize int `yaml:"channel_buffer_size" mapstructure:"channel_buffer_size"`

	// NATS settings
	NATSUrl           string `yaml:"nats_url" mapstructure:"nats_url"`
	NATSToken         string `yaml:"nats_token" mapstructure:"nats_token"`
	NATSMaxReconnects int    `yaml:"nats_max_reconnects" mapstructure:"nats_max_reconnects"`
	NATSReconnectWait int    `yaml:"nats_reconnect_wait" mapstructure:"nats_reconnect_wait"` // seconds
}

// Standard topic names for the screening pipeline.
const (
	TopicRunRequested       = "premarket.run.requested"
	TopicRunCompleted       = "premarket.run.completed"
	TopicWatchlistPublished = "premarket.watchlist.published"
)
