package transit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/busline/busline-go/packet"
)

// Channel is the subset of broker channel operations the transit layer uses.
// *amqp.Channel satisfies it; tests substitute mocks.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// ChannelProvider hands out the live shared channel, or reports that none is
// available. Callers re-fetch on every operation instead of caching, so a
// closure created before a disconnect can never hold a stale handle.
type ChannelProvider interface {
	Channel() (Channel, bool)
}

// Handler is the injected message handler packets are forwarded to. The raw
// body is passed through undecoded; deserialization belongs to the layer
// above.
type Handler func(ctx context.Context, category packet.Category, body []byte) error

// ChannelProviderFunc adapts a function to the ChannelProvider interface.
type ChannelProviderFunc func() (Channel, bool)

// Channel calls the wrapped function.
func (f ChannelProviderFunc) Channel() (Channel, bool) {
	return f()
}
