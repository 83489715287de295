package transit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/busline/busline-go/packet"
	"github.com/busline/busline-go/topology"
)

// Subscriber declares the per-category queues, exchanges and bindings and
// forwards inbound deliveries to the injected handler with the correct
// acknowledgment mode.
type Subscriber struct {
	channels     ChannelProvider
	namer        topology.Namer
	policy       topology.Policy
	bindings     *topology.BindingRegistry
	nodeID       string
	handler      Handler
	logger       *slog.Logger
	queueArgs    amqp.Table
	exchangeArgs amqp.Table
	consumeArgs  amqp.Table
}

// SubscriberOption configures the subscriber.
type SubscriberOption func(*Subscriber)

// WithSubscriberLogger sets the logger.
func WithSubscriberLogger(logger *slog.Logger) SubscriberOption {
	return func(s *Subscriber) {
		s.logger = logger
	}
}

// WithQueueArguments merges extra broker arguments on top of the per-category
// computed queue arguments. Caller values win on key collision.
func WithQueueArguments(args amqp.Table) SubscriberOption {
	return func(s *Subscriber) {
		s.queueArgs = args
	}
}

// WithExchangeArguments merges extra broker arguments into every exchange
// declaration. Caller values win on key collision.
func WithExchangeArguments(args amqp.Table) SubscriberOption {
	return func(s *Subscriber) {
		s.exchangeArgs = args
	}
}

// WithConsumeArguments merges extra broker arguments into every consumer
// registration. Caller values win on key collision.
func WithConsumeArguments(args amqp.Table) SubscriberOption {
	return func(s *Subscriber) {
		s.consumeArgs = args
	}
}

// NewSubscriber creates a subscriber for one node identity.
func NewSubscriber(
	channels ChannelProvider,
	namer topology.Namer,
	policy topology.Policy,
	bindings *topology.BindingRegistry,
	nodeID string,
	handler Handler,
	options ...SubscriberOption,
) (*Subscriber, error) {
	if handler == nil {
		return nil, ErrNoHandler
	}

	s := &Subscriber{
		channels: channels,
		namer:    namer,
		policy:   policy,
		bindings: bindings,
		nodeID:   nodeID,
		handler:  handler,
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Subscribe sets up consumption for one packet category.
//
// With a non-empty nodeID it declares that node's dedicated queue and
// consumes fire-and-forget: losing a response is acceptable because the
// caller times out and retries at a higher layer.
//
// With an empty nodeID it declares the category's fanout exchange plus this
// node's own queue, binds them with an empty routing key, records the binding
// for disconnect-time teardown, and consumes fire-and-forget.
//
// Balanced REQUEST queues are deliberately not declared here: action names
// are unknown until the service topology is announced. See TopologyBuilder.
//
// A missing channel makes Subscribe a successful no-op.
func (s *Subscriber) Subscribe(ctx context.Context, category packet.Category, nodeID string) error {
	ch, ok := s.channels.Channel()
	if !ok {
		return nil
	}

	opts := s.policy.OptionsFor(category)
	args := topology.MergeArguments(opts.Arguments(), s.queueArgs)

	if nodeID != "" {
		queue := s.namer.NodeQueue(category, nodeID)
		if _, err := ch.QueueDeclare(queue, opts.Durable, opts.AutoDelete, false, false, args); err != nil {
			return &TopologyError{Component: "queue", Name: queue, Op: "declare", Err: err, Timestamp: time.Now()}
		}
		return s.consume(ch, queue, category, false)
	}

	exchange := s.namer.Exchange(category)
	if err := ch.ExchangeDeclare(exchange, "fanout", opts.Durable, opts.AutoDelete, false, false, topology.MergeArguments(nil, s.exchangeArgs)); err != nil {
		return &TopologyError{Component: "exchange", Name: exchange, Op: "declare", Err: err, Timestamp: time.Now()}
	}

	queue := s.namer.NodeQueue(category, s.nodeID)
	if _, err := ch.QueueDeclare(queue, opts.Durable, opts.AutoDelete, false, false, args); err != nil {
		return &TopologyError{Component: "queue", Name: queue, Op: "declare", Err: err, Timestamp: time.Now()}
	}

	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return &TopologyError{Component: "binding", Name: queue, Op: "declare", Err: err, Timestamp: time.Now()}
	}
	s.bindings.Record(topology.Binding{Queue: queue, Exchange: exchange, RoutingKey: ""})

	return s.consume(ch, queue, category, false)
}

// consume registers a consumer on the queue and starts the dispatch loop.
// needAck selects ack-guarded redelivery; without it the broker acknowledges
// on delivery and never redelivers.
func (s *Subscriber) consume(ch Channel, queue string, category packet.Category, needAck bool) error {
	tag := fmt.Sprintf("%s.%s", s.nodeID, uuid.New().String())

	deliveries, err := ch.Consume(queue, tag, !needAck, false, false, false, topology.MergeArguments(nil, s.consumeArgs))
	if err != nil {
		return &ConsumerError{Queue: queue, Op: "consume", Err: err, Timestamp: time.Now()}
	}

	go s.dispatch(queue, deliveries, s.consumeHandler(category, needAck))

	s.logger.Info("subscribed",
		"queue", queue,
		"category", category,
		"needAck", needAck)

	return nil
}

// dispatch forwards deliveries until the broker closes the stream. Each
// delivery runs in its own goroutine; the channel prefetch limit bounds how
// many unacknowledged deliveries are in flight at once.
func (s *Subscriber) dispatch(queue string, deliveries <-chan amqp.Delivery, fn func(amqp.Delivery)) {
	for delivery := range deliveries {
		go fn(delivery)
	}
	s.logger.Info("consumer stopped", "queue", queue)
}

// consumeHandler wraps the injected handler with the category's
// acknowledgment mode.
//
// With needAck, the delivery is acknowledged only after the handler completes
// successfully and negatively acknowledged (redeliver-eligible) when it fails
// or panics; a worker dying mid-message therefore never silently loses it.
// If the channel has gone away by the time the completion fires, the ack/nack
// is skipped silently, it is moot. Without needAck the handler is simply
// invoked; failures are logged and the packet is gone.
func (s *Subscriber) consumeHandler(category packet.Category, needAck bool) func(amqp.Delivery) {
	return func(delivery amqp.Delivery) {
		err := s.invoke(category, delivery.Body)

		if !needAck {
			if err != nil {
				s.logger.Error("handler failed",
					"category", category,
					"error", err)
			}
			return
		}

		if err != nil {
			s.logger.Error("handler failed, requeueing",
				"category", category,
				"error", err)
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				s.logger.Debug("nack skipped, channel gone", "error", nackErr)
			}
			return
		}

		if ackErr := delivery.Ack(false); ackErr != nil {
			s.logger.Debug("ack skipped, channel gone", "error", ackErr)
		}
	}
}

// invoke runs the handler with panic containment so a misbehaving handler
// converts to a negative acknowledgment instead of crashing the process.
func (s *Subscriber) invoke(category packet.Category, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transit: handler panic: %v", r)
		}
	}()
	return s.handler(context.Background(), category, body)
}
