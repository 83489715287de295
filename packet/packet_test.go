package packet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	t.Run("known categories parse to themselves", func(t *testing.T) {
		for _, category := range Categories {
			if category == CategoryUnknown {
				continue
			}
			assert.Equal(t, category, ParseCategory(string(category)))
		}
	})

	t.Run("anything else maps to UNKNOWN", func(t *testing.T) {
		assert.Equal(t, CategoryUnknown, ParseCategory("GOSSIP"))
		assert.Equal(t, CategoryUnknown, ParseCategory(""))
		assert.Equal(t, CategoryUnknown, ParseCategory("request"))
	})

	t.Run("load-balanced keys are not packet categories", func(t *testing.T) {
		assert.Equal(t, CategoryUnknown, ParseCategory("REQUEST-LB"))
		assert.Equal(t, CategoryUnknown, ParseCategory("EVENT-LB"))
	})
}

func TestIsPointToPoint(t *testing.T) {
	assert.True(t, CategoryRequest.IsPointToPoint())
	assert.True(t, CategoryResponse.IsPointToPoint())
	assert.True(t, CategoryRequestLB.IsPointToPoint())
	assert.True(t, CategoryEventLB.IsPointToPoint())
	assert.False(t, CategoryEvent.IsPointToPoint())
	assert.False(t, CategoryHeartbeat.IsPointToPoint())
}

func TestNew(t *testing.T) {
	t.Run("mints unique IDs", func(t *testing.T) {
		a := New(CategoryRequest, "", Payload{Action: "sum"})
		b := New(CategoryRequest, "", Payload{Action: "sum"})

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("broadcast detection", func(t *testing.T) {
		assert.True(t, New(CategoryHeartbeat, "", Payload{}).IsBroadcast())
		assert.False(t, New(CategoryHeartbeat, "node-2", Payload{}).IsBroadcast())
		assert.False(t, New(CategoryRequest, "", Payload{}).IsBroadcast())
	})
}

func TestJSONSerializer(t *testing.T) {
	s := NewJSONSerializer()

	t.Run("round trip preserves every field", func(t *testing.T) {
		in := &Packet{
			ID:       "p-1",
			Category: CategoryEvent,
			Sender:   "node-a",
			Target:   "node-b",
			Payload: Payload{
				Event:  "user.created",
				Groups: []string{"g1"},
				Data:   json.RawMessage(`{"name":"ada"}`),
			},
		}

		data, err := s.Marshal(in)
		require.NoError(t, err)

		out, err := s.Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("nil packet is rejected", func(t *testing.T) {
		_, err := s.Marshal(nil)
		assert.ErrorIs(t, err, ErrNilPacket)
	})

	t.Run("empty payload is rejected", func(t *testing.T) {
		_, err := s.Unmarshal(nil)
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})

	t.Run("malformed bytes wrap into SerializationError", func(t *testing.T) {
		_, err := s.Unmarshal([]byte("{not json"))

		var serErr *SerializationError
		require.ErrorAs(t, err, &serErr)
		assert.Equal(t, "unmarshal", serErr.Op)
	})

	t.Run("foreign categories degrade to UNKNOWN", func(t *testing.T) {
		out, err := s.Unmarshal([]byte(`{"id":"p-2","category":"GOSSIP"}`))
		require.NoError(t, err)
		assert.Equal(t, CategoryUnknown, out.Category)
	})
}
