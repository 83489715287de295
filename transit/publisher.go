package transit

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/busline/busline-go/packet"
	"github.com/busline/busline-go/topology"
)

// AnnounceHook runs after a topology announcement (INFO broadcast) has been
// published. The publisher uses it to trigger service queue declaration: the
// announcement is the one reliable point at which the local action and event
// set is known to be ready.
type AnnounceHook func(ctx context.Context) error

// Publisher routes outgoing packets to their destination queue or exchange.
type Publisher struct {
	channels   ChannelProvider
	namer      topology.Namer
	serializer packet.Serializer
	logger     *slog.Logger
	onAnnounce AnnounceHook
	headers    amqp.Table
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAnnounceHook installs the topology announcement side effect.
func WithAnnounceHook(hook AnnounceHook) PublisherOption {
	return func(p *Publisher) {
		p.onAnnounce = hook
	}
}

// WithSerializer sets the wire format.
func WithSerializer(s packet.Serializer) PublisherOption {
	return func(p *Publisher) {
		if s != nil {
			p.serializer = s
		}
	}
}

// WithPublishHeaders merges extra headers into every outgoing message.
// Caller values win on key collision.
func WithPublishHeaders(headers amqp.Table) PublisherOption {
	return func(p *Publisher) {
		p.headers = headers
	}
}

// NewPublisher creates a publisher. A nil serializer falls back to JSON.
func NewPublisher(channels ChannelProvider, namer topology.Namer, options ...PublisherOption) *Publisher {
	p := &Publisher{
		channels:   channels,
		namer:      namer,
		serializer: packet.NewJSONSerializer(),
		logger:     slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish routes one packet. Routing order:
//
//  1. no channel: succeed trivially, nobody can receive the delivery anyway
//  2. EVENT with groups and no target: one direct send per group to that
//     group's balanced queue, with the payload's groups rewritten to the
//     single group so a consumer in several groups never handles it twice;
//     the fanout exchange is not touched
//  3. REQUEST with no target: the shared action queue, any capable worker
//     pulls from it
//  4. explicit target: that node's dedicated queue
//  5. otherwise: the category's fanout exchange, empty routing key
//
// Publishing an INFO broadcast additionally fires the announce hook so the
// balanced action/event queues get (re)declared.
//
// Whether a target combined with groups should narrow group delivery is an
// open protocol question; groups currently require an empty target, matching
// the broadcast-suppression behavior other implementations ship.
func (p *Publisher) Publish(ctx context.Context, pkt *packet.Packet) error {
	ch, ok := p.channels.Channel()
	if !ok {
		return nil
	}

	if pkt.Category == packet.CategoryEvent && pkt.Target == "" && len(pkt.Payload.Groups) > 0 {
		return p.publishGrouped(ctx, ch, pkt)
	}

	if pkt.Category == packet.CategoryRequest && pkt.Target == "" {
		if pkt.Payload.Action == "" {
			return ErrMissingAction
		}
		return p.sendToQueue(ctx, ch, p.namer.ActionQueue(pkt.Payload.Action), pkt)
	}

	if pkt.Target != "" {
		return p.sendToQueue(ctx, ch, p.namer.NodeQueue(pkt.Category, pkt.Target), pkt)
	}

	if err := p.publishToExchange(ctx, ch, pkt); err != nil {
		return err
	}

	if pkt.Category == packet.CategoryInfo && p.onAnnounce != nil {
		if err := p.onAnnounce(ctx); err != nil {
			return err
		}
	}

	return nil
}

// publishGrouped sends one copy per consumer group to that group's balanced
// queue. The broker load-balances competing consumers on each queue.
func (p *Publisher) publishGrouped(ctx context.Context, ch Channel, pkt *packet.Packet) error {
	if pkt.Payload.Event == "" {
		return ErrMissingEvent
	}

	for _, group := range pkt.Payload.Groups {
		single := *pkt
		single.Payload.Groups = []string{group}

		queue := p.namer.GroupedEventQueue(group, pkt.Payload.Event)
		if err := p.send(ctx, ch, queue, &single, true); err != nil {
			return err
		}
	}

	return nil
}

// sendToQueue publishes directly to a queue through the default exchange.
func (p *Publisher) sendToQueue(ctx context.Context, ch Channel, queue string, pkt *packet.Packet) error {
	return p.send(ctx, ch, queue, pkt, pkt.Category.IsPointToPoint())
}

func (p *Publisher) send(ctx context.Context, ch Channel, queue string, pkt *packet.Packet, persistent bool) error {
	body, err := p.serializer.Marshal(pkt)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, p.publishing(pkt, body, persistent)); err != nil {
		return &PublishError{RoutingKey: queue, Err: err, Timestamp: time.Now()}
	}

	p.logger.Debug("packet sent",
		"category", pkt.Category,
		"queue", queue)

	return nil
}

// publishToExchange fans the packet out to every bound node queue.
func (p *Publisher) publishToExchange(ctx context.Context, ch Channel, pkt *packet.Packet) error {
	body, err := p.serializer.Marshal(pkt)
	if err != nil {
		return err
	}

	exchange := p.namer.Exchange(pkt.Category)
	if err := ch.PublishWithContext(ctx, exchange, "", false, false, p.publishing(pkt, body, false)); err != nil {
		return &PublishError{Exchange: exchange, Err: err, Timestamp: time.Now()}
	}

	p.logger.Debug("packet broadcast",
		"category", pkt.Category,
		"exchange", exchange)

	return nil
}

// publishing assembles the broker message. Point-to-point traffic is marked
// persistent so it survives a broker restart alongside its durable queue.
func (p *Publisher) publishing(pkt *packet.Packet, body []byte, persistent bool) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    pkt.ID,
		Type:         pkt.Category.String(),
		DeliveryMode: amqp.Transient,
		Headers:      topology.MergeArguments(nil, p.headers),
		Body:         body,
	}
	if persistent {
		msg.DeliveryMode = amqp.Persistent
	}
	return msg
}
