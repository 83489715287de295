package transit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

// mockChannel mocks the broker channel operations.
type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	a := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return a.Get(0).(amqp.Queue), a.Error(1)
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	a := m.Called(name, kind, durable, autoDelete, internal, noWait, args)
	return a.Error(0)
}

func (m *mockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	a := m.Called(name, key, exchange, noWait, args)
	return a.Error(0)
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	a := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	if ch := a.Get(0); ch != nil {
		return ch.(chan amqp.Delivery), a.Error(1)
	}
	return nil, a.Error(1)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	a := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return a.Error(0)
}

// provider returns a ChannelProvider that always hands out ch.
func provider(ch Channel) ChannelProvider {
	return ChannelProviderFunc(func() (Channel, bool) {
		return ch, true
	})
}

// noProvider simulates the disconnected state.
func noProvider() ChannelProvider {
	return ChannelProviderFunc(func() (Channel, bool) {
		return nil, false
	})
}

// mockAcknowledger mocks delivery acknowledgment.
type mockAcknowledger struct {
	mock.Mock
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	a := m.Called(tag, multiple)
	return a.Error(0)
}

func (m *mockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a := m.Called(tag, multiple, requeue)
	return a.Error(0)
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	a := m.Called(tag, requeue)
	return a.Error(0)
}
