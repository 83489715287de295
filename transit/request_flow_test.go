package transit

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/busline/busline-go/packet"
	"github.com/busline/busline-go/topology"
)

// Full request/response exchange: node B calls action "sum" hosted on node A.
func TestRequestResponseFlow(t *testing.T) {
	serializer := packet.NewJSONSerializer()

	// Node B publishes an untargeted request; it must land on the shared
	// action queue.
	senderCh := &mockChannel{}
	var requestBody []byte
	senderCh.On("PublishWithContext", mock.Anything, "", "BUS.REQUEST-LB.sum", false, false, mock.Anything).
		Run(func(args mock.Arguments) {
			requestBody = args.Get(5).(amqp.Publishing).Body
		}).Return(nil)

	sender := NewPublisher(provider(senderCh), topology.NewNamer("BUS"))
	request := packet.New(packet.CategoryRequest, "", packet.Payload{Action: "sum"})
	request.Sender = "node-b"

	require.NoError(t, sender.Publish(context.Background(), request))
	senderCh.AssertNumberOfCalls(t, "PublishWithContext", 1)
	require.NotEmpty(t, requestBody)

	// Node A consumes it ack-guarded, handles it, and responds to node B.
	workerCh := &mockChannel{}
	var responseMsg amqp.Publishing
	workerCh.On("PublishWithContext", mock.Anything, "", "BUS.RESPONSE.node-b", false, false, mock.Anything).
		Run(func(args mock.Arguments) {
			responseMsg = args.Get(5).(amqp.Publishing)
		}).Return(nil)

	worker := NewPublisher(provider(workerCh), topology.NewNamer("BUS"))

	handler := func(ctx context.Context, category packet.Category, body []byte) error {
		in, err := serializer.Unmarshal(body)
		require.NoError(t, err)
		require.Equal(t, packet.CategoryRequest, in.Category)
		require.Equal(t, "sum", in.Payload.Action)

		response := packet.New(packet.CategoryResponse, in.Sender, packet.Payload{})
		response.Sender = "node-a"
		return worker.Publish(ctx, response)
	}

	s, _ := newTestSubscriber(t, provider(workerCh), handler)

	acker := &mockAcknowledger{}
	acker.On("Ack", uint64(11), false).Return(nil)

	s.consumeHandler(packet.CategoryRequest, true)(amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  11,
		Body:         requestBody,
	})

	// The request was acknowledged exactly once and the response reached
	// node B's dedicated queue.
	acker.AssertExpectations(t)
	acker.AssertNotCalled(t, "Nack")
	workerCh.AssertNumberOfCalls(t, "PublishWithContext", 1)

	out, err := serializer.Unmarshal(responseMsg.Body)
	require.NoError(t, err)
	assert.Equal(t, packet.CategoryResponse, out.Category)
	assert.Equal(t, "node-b", out.Target)
	assert.Equal(t, uint8(amqp.Persistent), responseMsg.DeliveryMode)
}
