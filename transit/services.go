package transit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/busline/busline-go/packet"
	"github.com/busline/busline-go/topology"
)

// DefaultEventGroup is used for locally hosted events whose registry entry
// does not name a consumer group.
const DefaultEventGroup = "default"

// ServiceTopology is a read-only snapshot of the local service set: the
// actions this node can execute and the events it handles, keyed by event
// name with the consumer group as value.
type ServiceTopology struct {
	Actions []string
	Events  map[string]string
}

// Registry supplies the local service topology. It is an external
// collaborator; this layer only reads snapshots from it.
type Registry interface {
	LocalTopology() ServiceTopology
}

// RegistryFunc adapts a function to the Registry interface.
type RegistryFunc func() ServiceTopology

// LocalTopology calls the wrapped function.
func (f RegistryFunc) LocalTopology() ServiceTopology {
	return f()
}

// TopologyBuilder declares the balanced action and grouped event queues that
// the Subscriber cannot declare up front: their names are only known once the
// local service definitions are. It runs on every topology announcement, and
// since broker declares are idempotent the repeats are safe.
type TopologyBuilder struct {
	subscriber *Subscriber
	registry   Registry
	namer      topology.Namer
	policy     topology.Policy
	logger     *slog.Logger

	mu       sync.Mutex
	consumed map[string]bool
}

// NewTopologyBuilder creates a builder that attaches consumers through the
// given subscriber.
func NewTopologyBuilder(subscriber *Subscriber, registry Registry, namer topology.Namer, policy topology.Policy, logger *slog.Logger) *TopologyBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopologyBuilder{
		subscriber: subscriber,
		registry:   registry,
		namer:      namer,
		policy:     policy,
		logger:     logger,
		consumed:   make(map[string]bool),
	}
}

// DeclareServiceQueues declares one shared queue per local action and one
// queue per grouped local event, each with an acknowledgment-requiring
// consumer. These are the only ack-guarded consumers in the transit layer:
// balanced REQUEST and grouped EVENT delivery must be retried when a worker
// dies mid-message, while every other category tolerates loss.
//
// A missing channel or registry makes this a successful no-op.
func (b *TopologyBuilder) DeclareServiceQueues(ctx context.Context) error {
	if b.registry == nil {
		return nil
	}

	ch, ok := b.subscriber.channels.Channel()
	if !ok {
		return nil
	}

	local := b.registry.LocalTopology()

	for _, action := range local.Actions {
		queue := b.namer.ActionQueue(action)
		if err := b.declareBalanced(ch, queue, packet.CategoryRequestLB, packet.CategoryRequest); err != nil {
			return err
		}
	}

	for event, group := range local.Events {
		if group == "" {
			group = DefaultEventGroup
		}
		queue := b.namer.GroupedEventQueue(group, event)
		if err := b.declareBalanced(ch, queue, packet.CategoryEventLB, packet.CategoryEvent); err != nil {
			return err
		}
	}

	return nil
}

// declareBalanced idempotently declares one load-balanced queue and attaches
// a needAck consumer exactly once per queue, so repeated announcements never
// stack duplicate consumers.
func (b *TopologyBuilder) declareBalanced(ch Channel, queue string, policyKey, category packet.Category) error {
	opts := b.policy.OptionsFor(policyKey)
	if _, err := ch.QueueDeclare(queue, opts.Durable, opts.AutoDelete, false, false, opts.Arguments()); err != nil {
		return &TopologyError{Component: "queue", Name: queue, Op: "declare", Err: err, Timestamp: time.Now()}
	}

	b.mu.Lock()
	already := b.consumed[queue]
	if !already {
		b.consumed[queue] = true
	}
	b.mu.Unlock()

	if already {
		return nil
	}

	if err := b.subscriber.consume(ch, queue, category, true); err != nil {
		b.mu.Lock()
		delete(b.consumed, queue)
		b.mu.Unlock()
		return err
	}

	b.logger.Info("service queue ready", "queue", queue)

	return nil
}
