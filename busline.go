// Copyright 2025 Busline Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package busline

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/busline/busline-go/config"
	"github.com/busline/busline-go/internal/rabbitmq"
	"github.com/busline/busline-go/packet"
	"github.com/busline/busline-go/topology"
	"github.com/busline/busline-go/transit"
)

// Client is the main entry point: it owns the shared broker connection and
// wires the subscriber, publisher and service-topology builder together for
// one node.
type Client struct {
	config     *config.Config
	logger     *slog.Logger
	namer      topology.Namer
	bindings   *topology.BindingRegistry
	manager    *rabbitmq.ConnectionManager
	subscriber *transit.Subscriber
	publisher  *transit.Publisher
	builder    *transit.TopologyBuilder
}

type clientOptions struct {
	logger     *slog.Logger
	handler    transit.Handler
	registry   transit.Registry
	serializer packet.Serializer
}

// ClientOption configures the client.
type ClientOption func(*clientOptions)

// WithClientLogger sets the logger used by every component.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithHandler sets the message handler inbound packets are forwarded to.
func WithHandler(handler transit.Handler) ClientOption {
	return func(o *clientOptions) {
		o.handler = handler
	}
}

// WithRegistry sets the service registry supplying the local action and
// event topology. Without one, no balanced service queues are declared.
func WithRegistry(registry transit.Registry) ClientOption {
	return func(o *clientOptions) {
		o.registry = registry
	}
}

// WithPacketSerializer sets the wire format. Defaults to JSON.
func WithPacketSerializer(s packet.Serializer) ClientOption {
	return func(o *clientOptions) {
		o.serializer = s
	}
}

// NewClient creates a client for the given configuration.
func NewClient(cfg *config.Config, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &clientOptions{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(opts)
	}
	if opts.handler == nil {
		// Packets still need somewhere to land before the caller installs
		// real routing; log and drop.
		logger := opts.logger
		opts.handler = func(ctx context.Context, category packet.Category, body []byte) error {
			logger.Debug("unhandled packet", "category", category, "bytes", len(body))
			return nil
		}
	}

	namer := topology.NewNamer(cfg.Prefix)
	policy := topology.Policy{EventTTL: cfg.EventTTL}
	bindings := topology.NewBindingRegistry()

	manager := rabbitmq.NewConnectionManager(cfg.URL, bindings,
		rabbitmq.WithLogger(opts.logger),
		rabbitmq.WithPrefetch(cfg.PrefetchCount),
		rabbitmq.WithConnectTimeout(cfg.ConnectTimeout),
	)

	channels := channelSource{manager: manager}

	subscriber, err := transit.NewSubscriber(channels, namer, policy, bindings, cfg.NodeID, opts.handler,
		transit.WithSubscriberLogger(opts.logger),
		transit.WithQueueArguments(amqp.Table(cfg.QueueArguments)),
		transit.WithExchangeArguments(amqp.Table(cfg.ExchangeArguments)),
		transit.WithConsumeArguments(amqp.Table(cfg.ConsumeArguments)),
	)
	if err != nil {
		return nil, fmt.Errorf("busline: create subscriber: %w", err)
	}

	builder := transit.NewTopologyBuilder(subscriber, opts.registry, namer, policy, opts.logger)

	publisher := transit.NewPublisher(channels, namer,
		transit.WithPublisherLogger(opts.logger),
		transit.WithSerializer(opts.serializer),
		transit.WithPublishHeaders(amqp.Table(cfg.PublishHeaders)),
		transit.WithAnnounceHook(builder.DeclareServiceQueues),
	)

	return &Client{
		config:     cfg,
		logger:     opts.logger,
		namer:      namer,
		bindings:   bindings,
		manager:    manager,
		subscriber: subscriber,
		publisher:  publisher,
		builder:    builder,
	}, nil
}

// channelSource adapts the connection manager to transit.ChannelProvider.
type channelSource struct {
	manager *rabbitmq.ConnectionManager
}

func (s channelSource) Channel() (transit.Channel, bool) {
	ch, ok := s.manager.Channel()
	if !ok {
		return nil, false
	}
	return ch, true
}

// Connect establishes the shared connection and channel and sets up the
// fixed category subscriptions. Balanced action and event queues are declared
// later, when the first topology announcement is published.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.manager.Connect(ctx); err != nil {
		return err
	}

	for _, sub := range c.subscriptions() {
		if err := c.subscriber.Subscribe(ctx, sub.category, sub.nodeID); err != nil {
			return fmt.Errorf("busline: subscribe %s: %w", sub.category, err)
		}
	}

	return nil
}

type subscription struct {
	category packet.Category
	nodeID   string
}

// subscriptions lists the fixed category set every node consumes.
//
// Node-addressed queues carry unicast traffic (responses, targeted requests,
// pong replies). Broadcast categories bind this node's own queue to the
// category fanout exchange; unicast sends to the same queue arrive through
// the default exchange, so one consumer covers both paths.
func (c *Client) subscriptions() []subscription {
	self := c.config.NodeID
	subs := []subscription{
		{packet.CategoryRequest, self},
		{packet.CategoryResponse, self},
		{packet.CategoryPong, self},
	}
	for _, category := range packet.BroadcastCategories {
		subs = append(subs, subscription{category, ""})
	}
	return subs
}

// Disconnect unbinds every recorded binding, closes the channel, then the
// connection. Safe to call when already disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.manager.Disconnect(ctx)
}

// Publish routes one outgoing packet.
func (c *Client) Publish(ctx context.Context, pkt *packet.Packet) error {
	if pkt.Sender == "" {
		pkt.Sender = c.config.NodeID
	}
	return c.publisher.Publish(ctx, pkt)
}

// Publisher returns the packet publisher.
func (c *Client) Publisher() *transit.Publisher {
	return c.publisher
}

// IsConnected reports the broker connection status.
func (c *Client) IsConnected() bool {
	return c.manager.IsConnected()
}

// NodeID returns this node's identity.
func (c *Client) NodeID() string {
	return c.config.NodeID
}

// AddStateListener registers for connection lifecycle notifications.
func (c *Client) AddStateListener(listener rabbitmq.ConnectionStateListener) {
	c.manager.AddStateListener(listener)
}
