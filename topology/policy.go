package topology

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/busline/busline-go/packet"
)

// DefaultControlTTL is how long control/broadcast packets stay queued for an
// absent node before the broker drops them. Stale discovery or heartbeat
// traffic is worthless, so the window is short.
const DefaultControlTTL = 5000 * time.Millisecond

// QueueOptions is the computed lifetime policy for one queue.
//
// A zero MessageTTL means messages never expire. Point-to-point queues
// (REQUEST, RESPONSE and the load-balanced group queues) are durable and
// permanent; everything else auto-deletes and expires.
type QueueOptions struct {
	MessageTTL time.Duration
	AutoDelete bool
	Durable    bool
}

// Policy derives queue options per packet category. It is pure and total over
// the protocol categories plus the two synthetic load-balanced keys.
type Policy struct {
	// EventTTL bounds how long un-consumed broadcast EVENT packets survive.
	// Zero falls back to DefaultControlTTL.
	EventTTL time.Duration
}

// OptionsFor returns the lifetime policy for a category. Passing a category
// outside the protocol is a programmer error and panics.
func (p Policy) OptionsFor(category packet.Category) QueueOptions {
	switch category {
	case packet.CategoryRequest, packet.CategoryResponse,
		packet.CategoryRequestLB, packet.CategoryEventLB:
		return QueueOptions{Durable: true}

	case packet.CategoryEvent:
		ttl := p.EventTTL
		if ttl <= 0 {
			ttl = DefaultControlTTL
		}
		return QueueOptions{MessageTTL: ttl, AutoDelete: true}

	case packet.CategoryDiscover, packet.CategoryInfo, packet.CategoryDisconnect,
		packet.CategoryHeartbeat, packet.CategoryPing, packet.CategoryPong,
		packet.CategoryUnknown:
		return QueueOptions{MessageTTL: DefaultControlTTL, AutoDelete: true}
	}
	panic(fmt.Sprintf("topology: no policy for category %q", category))
}

// Arguments renders the policy as broker queue arguments.
func (o QueueOptions) Arguments() amqp.Table {
	if o.MessageTTL <= 0 {
		return nil
	}
	return amqp.Table{"x-message-ttl": o.MessageTTL.Milliseconds()}
}

// MergeArguments layers caller overrides on top of the computed queue
// arguments. Caller values win on key collision.
func MergeArguments(computed amqp.Table, overrides amqp.Table) amqp.Table {
	if len(overrides) == 0 {
		return computed
	}
	merged := amqp.Table{}
	for k, v := range computed {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
